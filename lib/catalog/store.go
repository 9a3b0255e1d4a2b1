// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"log/slog"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/tapecat/lib/clock"
	"github.com/bureau-foundation/tapecat/lib/search"
	"github.com/bureau-foundation/tapecat/lib/sqlitepool"
)

// Config holds the parameters for opening a catalog.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the number of SQLite connections. Defaults to 4.
	PoolSize int

	// Clock stamps archived_at when a batch does not. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is the catalog database. It is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	tapeLocks keyedMutex
}

var _ search.Backend = (*Store)(nil)

// Open opens (creating and migrating as needed) the catalog at
// cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       cfg.Path,
		PoolSize:   poolSize,
		Migrations: migrations,
		Logger:     logger,
		OnConnect:  registerFunctions,
	})
	if err != nil {
		return nil, storageError("open", err)
	}
	return &Store{
		pool:   pool,
		clock:  clk,
		logger: logger,
	}, nil
}

// Close closes the database, waiting for in-flight operations.
func (s *Store) Close() error {
	return storageError("close", s.pool.Close())
}

// Path returns the database file path.
func (s *Store) Path() string { return s.pool.Path() }

// keyedMutex hands out one mutex per key and forgets keys nobody
// holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	holders int
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	lock := k.locks[key]
	if lock == nil {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.holders++
	k.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		k.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func textArg(text string) any {
	if text == "" {
		return nil
	}
	return text
}

func timeColumn(stmt *sqlite.Stmt, column int) time.Time {
	if stmt.ColumnIsNull(column) {
		return time.Time{}
	}
	return time.Unix(0, stmt.ColumnInt64(column)).UTC()
}

// entryColumns is the select list scanEntry expects.
const entryColumns = "tape_name, path, size, mtime, xxhash, archived_at"

func scanEntry(stmt *sqlite.Stmt) search.Entry {
	return search.Entry{
		Tape:       stmt.ColumnText(0),
		Path:       stmt.ColumnText(1),
		Size:       stmt.ColumnInt64(2),
		ModifyTime: timeColumn(stmt, 3),
		Hash:       stmt.ColumnText(4),
		ArchivedAt: timeColumn(stmt, 5),
	}
}

func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
