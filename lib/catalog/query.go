// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/tapecat/lib/search"
)

// Search returns the entries whose path matches the shell glob
// pattern, ordered by path then tape.
func (s *Store) Search(ctx context.Context, pattern string, options search.SearchOptions) ([]search.Entry, error) {
	if _, err := search.CompileGlob(pattern); err != nil {
		return nil, err
	}
	return s.selectEntries(ctx, "search",
		"SELECT "+entryColumns+` FROM files
		WHERE `+globFunction+`(?1, path) AND (?2 = '' OR tape_name = ?2)
		ORDER BY path, tape_name
		LIMIT ?3`,
		pattern, options.Tape, limitArg(options.Limit))
}

// SearchFullText evaluates a boolean token query against the path
// index, best matches first.
func (s *Store) SearchFullText(ctx context.Context, query string, options search.SearchOptions) ([]search.Entry, error) {
	expr, err := search.ParseFullText(query)
	if err != nil {
		return nil, err
	}
	return s.selectEntries(ctx, "full-text search",
		`SELECT f.tape_name, f.path, f.size, f.mtime, f.xxhash, f.archived_at
		FROM files_fts
		JOIN files f ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?1 AND (?2 = '' OR f.tape_name = ?2)
		ORDER BY files_fts.rank, f.path, f.tape_name
		LIMIT ?3`,
		expr.FTS5(), options.Tape, limitArg(options.Limit))
}

// FindByHash returns every copy of the content with the given XXH64
// digest across all tapes.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]search.Entry, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return nil, search.ErrEmptyQuery
	}
	return s.selectEntries(ctx, "find by hash",
		"SELECT "+entryColumns+" FROM files WHERE xxhash = ?1 ORDER BY tape_name, path",
		hash)
}

// FindDuplicates groups entries of at least minSize bytes by content
// hash. The size filter applies to each entry before grouping.
func (s *Store) FindDuplicates(ctx context.Context, minSize int64) ([]search.DuplicateGroup, error) {
	entries, err := s.selectEntries(ctx, "find duplicates",
		"SELECT "+entryColumns+` FROM files
		WHERE xxhash IS NOT NULL AND size >= ?1 AND xxhash IN (
			SELECT xxhash FROM files
			WHERE xxhash IS NOT NULL AND size >= ?1
			GROUP BY xxhash HAVING COUNT(*) > 1
		)`,
		minSize)
	if err != nil {
		return nil, err
	}
	return search.GroupDuplicates(entries, minSize), nil
}

// Entries streams the files of one tape, or of every tape when tape
// is empty, ordered by tape then path. Returning an error from fn
// stops the iteration and is returned unwrapped.
func (s *Store) Entries(ctx context.Context, tape string, fn func(search.Entry) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return storageError("entries", err)
	}
	defer s.pool.Put(conn)

	var callbackErr error
	err = sqlitex.Execute(conn,
		"SELECT "+entryColumns+" FROM files WHERE ?1 = '' OR tape_name = ?1 ORDER BY tape_name, path",
		&sqlitex.ExecOptions{
			Args: []any{tape},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if callbackErr = fn(scanEntry(stmt)); callbackErr != nil {
					return callbackErr
				}
				return ctx.Err()
			},
		})
	if callbackErr != nil {
		return callbackErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return storageError("entries", err)
}

func (s *Store) selectEntries(ctx context.Context, op, query string, args ...any) ([]search.Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, storageError(op, err)
	}
	defer s.pool.Put(conn)

	var entries []search.Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, scanEntry(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, storageError(op, err)
	}
	return entries, nil
}
