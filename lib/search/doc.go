// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package search holds the query semantics shared by the catalog store
// and the in-memory path index: shell globs, the full-text token rule
// and its boolean query language, duplicate grouping, and fuzzy
// ranking.
//
// Every matcher here is a pure function of its inputs. The catalog
// store registers [Match] as a SQL function and renders [Expr.FTS5]
// into FTS5 MATCH clauses, so a glob or full-text query returns the
// same paths whether it runs against SQLite or against a path index
// held in memory.
//
// # Glob syntax
//
// A glob is matched against the whole path, case-insensitively after
// Unicode case folding and NFC normalization:
//
//	*       any run of characters, including '/'
//	?       exactly one character
//	[abc]   one character from the set; ranges like [a-z]; a leading
//	        '!' or '^' negates
//	\x      the literal character x
//
// A pattern with no '/' is also tried against the final path segment,
// so "*.mov" finds movies in any directory.
//
// # Full-text tokens
//
// [Tokenize] is the single definition of a term: the text is NFC
// normalized and case folded, then split on every rune that is neither
// a letter nor a digit. Path separators, dots, underscores and hyphens
// therefore all separate terms, and a path is findable by any token of
// any of its segments. The catalog indexes the output of Tokenize
// itself, not the raw path, so a stored path and a query are always
// split and folded by this one function.
//
// A query is a sequence of terms. Adjacent terms (or terms joined by
// AND) must all match; OR separates alternatives and binds looser than
// AND. A term that tokenizes to several tokens is a phrase, and a
// trailing '*' turns a term into a prefix match.
//
// # Engine
//
// [Engine] evaluates a one-line query with an optional prefix
// (glob:, fts:, hash:, dupes:, fuzzy:) against a [Backend], the
// read interface the catalog store implements. Bare text is a glob.
package search
