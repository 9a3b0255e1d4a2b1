// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// tape catalog.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with fixed pragmas
// and a small migration runner. Callers [Pool.Take] a connection,
// work, and [Pool.Put] it back, or use [Pool.Do] for the same thing
// in one call. Connections are not safe for concurrent use.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the writer and the writer
//     never blocks readers, so searches run during ingestion.
//   - synchronous=NORMAL: commits survive a process crash. A power
//     failure can lose the last transactions; the catalog can be
//     re-ingested from the index snapshots and hash lists it came
//     from.
//   - busy_timeout: wait for the write lock instead of failing at
//     once (Config.BusyTimeout, 5s by default).
//   - foreign_keys=ON: declared references are enforced, and
//     ON DELETE CASCADE removes child rows.
//   - cache_size=-8192, mmap_size=268435456, temp_store=MEMORY.
//
// # Migrations
//
// Config.Migrations is an ordered list of SQL scripts. The current
// level lives in a one-row schema_version table; Open applies every
// script past that level, each in an IMMEDIATE transaction with its
// version bump, and refuses a database whose level is newer than the
// list.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:       filepath.Join(root, "catalog.db"),
//	    Migrations: []string{schemaV1},
//	    OnConnect:  registerFunctions,
//	})
package sqlitepool
