// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a SQLite connection pool.
// Path is required; all other fields have defaults.
type Config struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist; the file is created if missing.
	Path string

	// PoolSize is the number of connections. Zero or negative
	// defaults to max(runtime.NumCPU(), 4). SQLite serializes writers
	// regardless; extra connections serve concurrent readers.
	PoolSize int

	// BusyTimeout bounds how long a connection waits for the write
	// lock before failing with SQLITE_BUSY. Defaults to 5s.
	BusyTimeout time.Duration

	// Migrations are applied in order when the pool opens. Entry i
	// upgrades the schema from version i to version i+1; versions
	// already applied are skipped. Each entry runs in its own
	// transaction together with the version bump.
	Migrations []string

	// Logger receives pool lifecycle and migration messages. If nil,
	// a no-op logger is used.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas,
	// for per-connection state such as SQL functions. An error
	// discards the connection and is returned from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections with the standard
// pragmas applied. Pool is safe for concurrent use; connections are
// not, so each goroutine takes its own and puts it back.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool, applies pending migrations, and returns it.
// The caller must Close the pool.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, busyTimeout, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	pool := &Pool{
		inner:  inner,
		logger: logger,
		path:   cfg.Path,
	}

	if len(cfg.Migrations) > 0 {
		if err := pool.migrate(cfg.Migrations); err != nil {
			inner.Close()
			return nil, err
		}
	}

	logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"pool_size", poolSize,
	)
	return pool, nil
}

// Path returns the database file path.
func (p *Pool) Path() string { return p.path }

// Take borrows a connection, blocking until one is free or ctx is
// done. The caller must Put it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Do runs fn with a borrowed connection.
func (p *Pool) Do(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close closes every connection, blocking until borrowed connections
// are returned. Take fails afterwards.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error",
			"path", p.path,
			"error", err,
		)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// SchemaVersion reports the migration level of the database.
func (p *Pool) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := p.Do(ctx, func(conn *sqlite.Conn) error {
		var err error
		version, err = schemaVersion(conn)
		return err
	})
	return version, err
}

func (p *Pool) migrate(migrations []string) error {
	conn, err := p.Take(context.Background())
	if err != nil {
		return err
	}
	defer p.Put(conn)

	if err := sqlitex.ExecuteTransient(conn,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)", nil); err != nil {
		return fmt.Errorf("sqlitepool: creating schema_version: %w", err)
	}

	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("sqlitepool: %s has schema version %d, newer than this binary supports (%d)",
			p.path, current, len(migrations))
	}

	for version := current; version < len(migrations); version++ {
		if err := applyMigration(conn, version, migrations[version]); err != nil {
			return fmt.Errorf("sqlitepool: migrating %s to version %d: %w", p.path, version+1, err)
		}
		p.logger.Info("sqlite schema migrated", "path", p.path, "version", version+1)
	}
	return nil
}

func applyMigration(conn *sqlite.Conn, from int, script string) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		return err
	}
	if err := sqlitex.ExecuteTransient(conn, "DELETE FROM schema_version", nil); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(conn, "INSERT INTO schema_version (version) VALUES (?)",
		&sqlitex.ExecOptions{Args: []any{from + 1}})
}

func schemaVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "SELECT COALESCE(MAX(version), 0) FROM schema_version",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("sqlitepool: reading schema version: %w", err)
	}
	return version, nil
}

// prepareConnection applies the standard pragmas and then the
// optional OnConnect callback, once per connection.
func prepareConnection(conn *sqlite.Conn, busyTimeout time.Duration, onConnect func(*sqlite.Conn) error) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-8192",
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}
