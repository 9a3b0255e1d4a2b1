// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/tapecat/lib/search"
	"github.com/bureau-foundation/tapecat/lib/sqlitepool"
)

func TestFilesReferenceTapes(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	err = store.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO files (tape_name, path, size) VALUES ('NOWHERE', 'a.txt', 1)", nil)
	})
	if err == nil {
		t.Fatal("file row for an unknown tape was accepted")
	}

	if _, err := store.UpsertFile(ctx, search.Entry{Tape: "LTO001", Path: "clips/a.mov", Size: 10}); err != nil {
		t.Fatal(err)
	}
	err = store.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM tapes WHERE name = 'LTO001'", nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary != (Summary{}) {
		t.Errorf("summary after deleting the tape row = %+v, want empty", summary)
	}
	entries, err := store.SearchFullText(ctx, "clips", search.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("full-text still finds %d entries", len(entries))
	}
}

// A catalog written before files_fts indexed Tokenize terms must be
// upgraded in place: rows keep their ids, orphaned files gain a tape
// row, and stored hashes are lower-cased.
func TestMigrationRebuildsFilesAndIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	old, err := sqlitepool.Open(sqlitepool.Config{Path: path, Migrations: migrations[:1]})
	if err != nil {
		t.Fatal(err)
	}
	err = old.Do(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			INSERT INTO tapes (name) VALUES ('LTO001');
			INSERT INTO files (id, tape_name, path, size, xxhash) VALUES
				(7, 'LTO001', 'Docs/Straße/plan.txt', 20, 'ABCDEF0123456789'),
				(9, 'LOST01', 'misc/left.bin', 5, NULL);
		`, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := old.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open after migration: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	entries, err := store.SearchFullText(ctx, "STRASSE", search.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "Docs/Straße/plan.txt" {
		t.Errorf("SearchFullText = %+v", entries)
	}
	entries, err = store.FindByHash(ctx, "abcdef0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("FindByHash = %+v, want the migrated row", entries)
	}

	removed, err := store.DeleteTape(ctx, "LOST01")
	if err != nil {
		t.Fatalf("DeleteTape of a tape known only from its files: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.DeleteTape(ctx, "LOST01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	// New rows continue past the migrated ids.
	if _, err := store.UpsertFile(ctx, search.Entry{Tape: "LTO001", Path: "new.txt", Size: 1}); err != nil {
		t.Fatal(err)
	}
	var id int64
	err = store.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id FROM files WHERE path = 'new.txt'",
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				return nil
			}})
	})
	if err != nil {
		t.Fatal(err)
	}
	if id <= 9 {
		t.Errorf("new id = %d, want past 9", id)
	}
}
