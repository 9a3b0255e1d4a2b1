// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bm25 provides relevance-ranked search using the Okapi BM25
// algorithm over documents with named, weighted text fields.
//
// Field weighting repeats each field's tokens in proportion to its
// weight. The tokenizer is pluggable so callers can index with the
// same rule they use elsewhere; the path index passes its path
// segment tokenizer so that ranked search and full-text search agree
// on what a term is.
//
// The index is built once and is immutable thereafter.
package bm25
