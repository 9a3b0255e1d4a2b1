// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// TapeStats aggregates one tape's files.
type TapeStats struct {
	Tape       Tape
	FileCount  int64
	TotalBytes int64
	// OldestFile and NewestFile bound the modification times of the
	// tape's files; zero when no file has one.
	OldestFile time.Time
	NewestFile time.Time
}

// Summary aggregates the whole catalog.
type Summary struct {
	Tapes int64
	Files int64
	Bytes int64
}

const tapeColumns = "name, volume_uuid, barcode, created_at, total_bytes, file_count"

func scanTape(stmt *sqlite.Stmt) Tape {
	return Tape{
		Name:       stmt.ColumnText(0),
		VolumeUUID: stmt.ColumnText(1),
		Barcode:    stmt.ColumnText(2),
		CreatedAt:  timeColumn(stmt, 3),
		TotalBytes: stmt.ColumnInt64(4),
		FileCount:  stmt.ColumnInt64(5),
	}
}

// TapeStats computes statistics for the named tape from its files.
func (s *Store) TapeStats(ctx context.Context, name string) (TapeStats, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return TapeStats{}, storageError("tape stats", err)
	}
	defer s.pool.Put(conn)

	var (
		stats TapeStats
		found bool
	)
	err = sqlitex.Execute(conn, `
		SELECT t.name, t.volume_uuid, t.barcode, t.created_at, t.total_bytes, t.file_count,
			COUNT(f.id), COALESCE(SUM(f.size), 0), MIN(f.mtime), MAX(f.mtime)
		FROM tapes t
		LEFT JOIN files f ON f.tape_name = t.name
		WHERE t.name = ?1
		GROUP BY t.name`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				stats = TapeStats{
					Tape:       scanTape(stmt),
					FileCount:  stmt.ColumnInt64(6),
					TotalBytes: stmt.ColumnInt64(7),
					OldestFile: timeColumn(stmt, 8),
					NewestFile: timeColumn(stmt, 9),
				}
				return nil
			},
		})
	if err != nil {
		return TapeStats{}, storageError("tape stats", err)
	}
	if !found {
		return TapeStats{}, fmt.Errorf("tape %q: %w", name, ErrNotFound)
	}
	return stats, nil
}

// ListTapes returns every tape ordered by name.
func (s *Store) ListTapes(ctx context.Context) ([]Tape, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, storageError("list tapes", err)
	}
	defer s.pool.Put(conn)

	var tapes []Tape
	err = sqlitex.Execute(conn, "SELECT "+tapeColumns+" FROM tapes ORDER BY name",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tapes = append(tapes, scanTape(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, storageError("list tapes", err)
	}
	return tapes, nil
}

// DeleteTape removes a tape and, by cascade, all of its files. It
// returns the number of files removed.
func (s *Store) DeleteTape(ctx context.Context, name string) (removed int, err error) {
	unlock := s.tapeLocks.Lock(name)
	defer unlock()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, storageError("delete tape", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, storageError("delete tape: begin", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM files WHERE tape_name = ?1",
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				removed = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, storageError("delete tape: count", err)
	}
	// Files go with the tape row through the foreign key.
	if err = sqlitex.Execute(conn, "DELETE FROM tapes WHERE name = ?1",
		&sqlitex.ExecOptions{Args: []any{name}}); err != nil {
		return 0, storageError("delete tape", err)
	}
	if conn.Changes() == 0 {
		err = fmt.Errorf("tape %q: %w", name, ErrNotFound)
		return 0, err
	}
	s.logger.Info("tape deleted from catalog", "tape", name, "files", removed)
	return removed, nil
}

// Summary counts tapes, files and bytes across the catalog.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Summary{}, storageError("summary", err)
	}
	defer s.pool.Put(conn)

	var summary Summary
	err = sqlitex.Execute(conn, `
		SELECT (SELECT COUNT(*) FROM tapes), COUNT(*), COALESCE(SUM(size), 0) FROM files`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				summary = Summary{
					Tapes: stmt.ColumnInt64(0),
					Files: stmt.ColumnInt64(1),
					Bytes: stmt.ColumnInt64(2),
				}
				return nil
			},
		})
	if err != nil {
		return Summary{}, storageError("summary", err)
	}
	return summary, nil
}

// LabelFor returns the name of the tape recorded with volumeUUID.
// It satisfies pathindex.Labeler; lookup failures report no label.
func (s *Store) LabelFor(volumeUUID string) (string, bool) {
	if volumeUUID == "" {
		return "", false
	}
	var name string
	err := s.pool.Do(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT name FROM tapes WHERE lower(volume_uuid) = ?1 ORDER BY name LIMIT 1",
			&sqlitex.ExecOptions{
				Args: []any{strings.ToLower(volumeUUID)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					name = stmt.ColumnText(0)
					return nil
				},
			})
	})
	if err != nil {
		s.logger.Warn("tape label lookup failed", "volume_uuid", volumeUUID, "error", err)
		return "", false
	}
	return name, name != ""
}
