// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashlist reads and writes Media Hash List (MHL 1.1) files,
// the XML manifests written alongside archived media that record each
// file's size, modification time and XXH64 digest.
//
// The catalog imports hash lists to attach content hashes to files,
// which is what makes duplicate detection and hash lookup possible;
// LTFS indexes alone carry no digests. [HashFile] computes the same
// digest for a local file so it can be looked up in the catalog.
package hashlist
