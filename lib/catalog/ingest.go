// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/tapecat/lib/hashlist"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/search"
)

// Tape is one row of the tapes table. On upsert, empty fields leave
// the stored value alone.
type Tape struct {
	Name       string
	VolumeUUID string
	Barcode    string
	CreatedAt  time.Time

	// TotalBytes and FileCount are maintained by the store and
	// ignored on upsert.
	TotalBytes int64
	FileCount  int64
}

// Batch is a set of files written to one tape in one transaction.
type Batch struct {
	Tape    Tape
	Entries []search.Entry
	// ArchivedAt stamps every row; zero means now.
	ArchivedAt time.Time
}

// IngestResult counts what an ingest did.
type IngestResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	// Collisions lists every existing row whose content the ingest
	// replaced.
	Collisions []*DuplicateKeyError
}

func (r IngestResult) String() string {
	return fmt.Sprintf("%d inserted, %d updated, %d unchanged", r.Inserted, r.Updated, r.Unchanged)
}

// UpsertTape creates or merges a tape row.
func (s *Store) UpsertTape(ctx context.Context, tape Tape) error {
	if tape.Name == "" {
		return fmt.Errorf("catalog: tape name is required")
	}
	unlock := s.tapeLocks.Lock(tape.Name)
	defer unlock()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return storageError("upsert tape", err)
	}
	defer s.pool.Put(conn)
	return storageError("upsert tape", upsertTape(conn, tape))
}

func upsertTape(conn *sqlite.Conn, tape Tape) error {
	return sqlitex.Execute(conn, `
		INSERT INTO tapes (name, volume_uuid, barcode, created_at)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (name) DO UPDATE SET
			volume_uuid = COALESCE(excluded.volume_uuid, tapes.volume_uuid),
			barcode = COALESCE(excluded.barcode, tapes.barcode),
			created_at = COALESCE(excluded.created_at, tapes.created_at)`,
		&sqlitex.ExecOptions{Args: []any{tape.Name, textArg(tape.VolumeUUID), textArg(tape.Barcode), timeArg(tape.CreatedAt)}})
}

// UpsertFile ingests a single entry; entry.Tape names the tape.
func (s *Store) UpsertFile(ctx context.Context, entry search.Entry) (IngestResult, error) {
	return s.Ingest(ctx, Batch{Tape: Tape{Name: entry.Tape}, Entries: []search.Entry{entry}, ArchivedAt: entry.ArchivedAt})
}

// Ingest writes batch in a single transaction. Paths are normalized
// to NFC and hashes to lower case; entry.Tape is ignored in favour of
// batch.Tape.Name.
func (s *Store) Ingest(ctx context.Context, batch Batch) (result IngestResult, err error) {
	if batch.Tape.Name == "" {
		return IngestResult{}, fmt.Errorf("catalog: tape name is required")
	}
	archivedAt := batch.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = s.clock.Now()
	}

	unlock := s.tapeLocks.Lock(batch.Tape.Name)
	defer unlock()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return IngestResult{}, storageError("ingest", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return IngestResult{}, storageError("ingest: begin", err)
	}
	defer endTransaction(&err)

	if err := upsertTape(conn, batch.Tape); err != nil {
		return IngestResult{}, storageError("ingest: tape", err)
	}

	for _, entry := range batch.Entries {
		if err := ctx.Err(); err != nil {
			return IngestResult{}, err
		}
		entry.Tape = batch.Tape.Name
		entry.Path = norm.NFC.String(entry.Path)
		if entry.Path == "" {
			return IngestResult{}, fmt.Errorf("catalog: entry with empty path on tape %s", entry.Tape)
		}
		entry.Hash = strings.ToLower(strings.TrimSpace(entry.Hash))
		entry.ArchivedAt = archivedAt
		if err := ingestEntry(conn, entry, &result); err != nil {
			return IngestResult{}, storageError("ingest: "+entry.Tape+":"+entry.Path, err)
		}
	}

	if err := recomputeTotals(conn, batch.Tape.Name); err != nil {
		return IngestResult{}, storageError("ingest: totals", err)
	}

	s.logger.Debug("catalog batch ingested",
		"tape", batch.Tape.Name,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
	)
	return result, nil
}

func ingestEntry(conn *sqlite.Conn, entry search.Entry, result *IngestResult) error {
	var (
		found    bool
		id       int64
		existing search.Entry
	)
	err := sqlitex.Execute(conn,
		"SELECT id, "+entryColumns+" FROM files WHERE tape_name = ?1 AND path = ?2",
		&sqlitex.ExecOptions{
			Args: []any{entry.Tape, entry.Path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				id = stmt.ColumnInt64(0)
				existing = search.Entry{
					Tape:       stmt.ColumnText(1),
					Path:       stmt.ColumnText(2),
					Size:       stmt.ColumnInt64(3),
					ModifyTime: timeColumn(stmt, 4),
					Hash:       stmt.ColumnText(5),
					ArchivedAt: timeColumn(stmt, 6),
				}
				return nil
			},
		})
	if err != nil {
		return err
	}

	if !found {
		result.Inserted++
		return sqlitex.Execute(conn, `
			INSERT INTO files (tape_name, path, size, mtime, xxhash, archived_at)
			VALUES (?1, ?2, ?3, ?4, ?5, ?6)`,
			&sqlitex.ExecOptions{Args: []any{
				entry.Tape, entry.Path, entry.Size, timeArg(entry.ModifyTime), textArg(entry.Hash), timeArg(entry.ArchivedAt),
			}})
	}

	// Unknown values never erase known ones.
	merged := entry
	if merged.Hash == "" {
		merged.Hash = existing.Hash
	}
	if merged.ModifyTime.IsZero() {
		merged.ModifyTime = existing.ModifyTime
	}
	if merged.Size == existing.Size && merged.Hash == existing.Hash && merged.ModifyTime.Equal(existing.ModifyTime) {
		result.Unchanged++
		return nil
	}

	result.Updated++
	result.Collisions = append(result.Collisions, &DuplicateKeyError{
		Tape: entry.Tape,
		Path: entry.Path,
		Old:  existing,
		New:  merged,
	})
	return sqlitex.Execute(conn, `
		UPDATE files SET size = ?2, mtime = ?3, xxhash = ?4, archived_at = ?5
		WHERE id = ?1`,
		&sqlitex.ExecOptions{Args: []any{
			id, merged.Size, timeArg(merged.ModifyTime), textArg(merged.Hash), timeArg(merged.ArchivedAt),
		}})
}

func recomputeTotals(conn *sqlite.Conn, tape string) error {
	return sqlitex.Execute(conn, `
		UPDATE tapes SET
			file_count = (SELECT COUNT(*) FROM files WHERE tape_name = tapes.name),
			total_bytes = (SELECT COALESCE(SUM(size), 0) FROM files WHERE tape_name = tapes.name)
		WHERE ?1 = '' OR name = ?1`,
		&sqlitex.ExecOptions{Args: []any{tape}})
}

// RecomputeTotals rebuilds the denormalized totals of one tape, or of
// every tape when tape is empty.
func (s *Store) RecomputeTotals(ctx context.Context, tape string) error {
	if tape != "" {
		unlock := s.tapeLocks.Lock(tape)
		defer unlock()
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return storageError("recompute totals", err)
	}
	defer s.pool.Put(conn)
	return storageError("recompute totals", recomputeTotals(conn, tape))
}

// ImportHashList ingests the hash list at path. tape overrides the
// tape name; when empty the name comes from the list or its file
// name. It returns the tape name used.
func (s *Store) ImportHashList(ctx context.Context, path, tape string) (string, IngestResult, error) {
	list, err := hashlist.Load(path)
	if err != nil {
		return "", IngestResult{}, err
	}
	tape = list.TapeName(tape, path)
	if tape == "" {
		return "", IngestResult{}, fmt.Errorf("catalog: cannot determine a tape name for %s", path)
	}

	batch := Batch{
		Tape:       Tape{Name: tape},
		Entries:    make([]search.Entry, 0, len(list.Entries)),
		ArchivedAt: list.Creator.FinishDate,
	}
	if list.Tape != nil {
		batch.Tape.Barcode = list.Tape.Serial
	}
	for _, entry := range list.Entries {
		batch.Entries = append(batch.Entries, search.Entry{
			Path:       entry.File,
			Size:       entry.Size,
			ModifyTime: entry.LastModification,
			Hash:       entry.XXHash64BE,
		})
	}
	result, err := s.Ingest(ctx, batch)
	return tape, result, err
}

// IngestSnapshot catalogs every file of an LTFS snapshot under tape.
func (s *Store) IngestSnapshot(ctx context.Context, tape string, snapshot *ltfsindex.Snapshot) (IngestResult, error) {
	batch := Batch{
		Tape: Tape{Name: tape, VolumeUUID: snapshot.Header.VolumeUUID},
	}
	if created := snapshot.Root().Creation; created != nil {
		batch.Tape.CreatedAt = *created
	}
	files := snapshot.Files()
	batch.Entries = make([]search.Entry, 0, len(files))
	for _, file := range files {
		entry := search.Entry{Path: file.Path, Size: int64(file.Size)}
		if file.Modify != nil {
			entry.ModifyTime = *file.Modify
		}
		batch.Entries = append(batch.Entries, entry)
	}
	return s.Ingest(ctx, batch)
}
