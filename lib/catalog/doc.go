// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the persistent cross-tape file catalog: one
// SQLite database recording every file on every tape, searchable
// without any tape mounted.
//
// # Schema
//
// tapes holds one row per tape with denormalized totals (file_count,
// total_bytes) that every ingest recomputes. files holds one row per
// (tape_name, path); re-ingesting a path updates its row in place,
// and deleting a tape cascades to its files. files_fts is a
// contentless FTS5 table holding the [search.Tokenize] terms of each
// path, maintained by triggers through the tapecat_terms SQL
// function, so the index and the query parser cannot disagree on
// what a term is. Hashes are stored in lower case. Times are INTEGER
// Unix nanoseconds, NULL when unknown.
//
// # Writes
//
// [Store.Ingest] writes a whole batch in one IMMEDIATE transaction.
// Batches for the same tape are serialized by a per-tape lock;
// batches for different tapes do not wait on each other in this
// package (SQLite still admits one writer at a time, bounded by the
// pool's busy timeout). A row whose content changes is updated
// last-write-wins and reported in [IngestResult.Collisions]. An
// ingest never clears a known hash or modification time with an
// unknown one, so importing an LTFS index after a hash list keeps the
// hashes.
//
// # Errors
//
// Every SQLite failure is returned as a [*StorageError] naming the
// operation; nothing is retried here. Lookups of absent tapes return
// [ErrNotFound].
package catalog
