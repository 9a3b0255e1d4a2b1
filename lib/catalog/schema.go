// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"strings"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/tapecat/lib/search"
)

// migrations are applied by sqlitepool in order; entry i moves the
// schema from version i to i+1. Never edit an entry once released.
var migrations = []string{
	`
CREATE TABLE tapes (
	name        TEXT PRIMARY KEY,
	volume_uuid TEXT,
	barcode     TEXT,
	created_at  INTEGER,
	total_bytes INTEGER NOT NULL DEFAULT 0,
	file_count  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_tapes_volume_uuid ON tapes(volume_uuid);

CREATE TABLE files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tape_name   TEXT NOT NULL,
	path        TEXT NOT NULL,
	size        INTEGER NOT NULL,
	mtime       INTEGER,
	xxhash      TEXT,
	archived_at INTEGER,
	UNIQUE (tape_name, path)
);

CREATE INDEX idx_files_path ON files(path);
CREATE INDEX idx_files_xxhash ON files(xxhash);
CREATE INDEX idx_files_tape ON files(tape_name);

CREATE VIRTUAL TABLE files_fts USING fts5(
	path,
	content = 'files',
	content_rowid = 'id',
	tokenize = "unicode61 remove_diacritics 0 separators '/._-'"
);

CREATE TRIGGER files_ai AFTER INSERT ON files BEGIN
	INSERT INTO files_fts (rowid, path) VALUES (new.id, new.path);
END;

CREATE TRIGGER files_ad AFTER DELETE ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, path) VALUES ('delete', old.id, old.path);
END;

CREATE TRIGGER files_au AFTER UPDATE OF path ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, path) VALUES ('delete', old.id, old.path);
	INSERT INTO files_fts (rowid, path) VALUES (new.id, new.path);
END;
`,
	// files_fts indexes search.Tokenize output rather than raw paths
	// so the index and the query parser share one token rule, and
	// files.tape_name becomes a foreign key that cascades deletes.
	`
DROP TRIGGER files_ai;
DROP TRIGGER files_ad;
DROP TRIGGER files_au;
DROP TABLE files_fts;

INSERT OR IGNORE INTO tapes (name) SELECT DISTINCT tape_name FROM files;

CREATE TABLE files_new (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tape_name   TEXT NOT NULL REFERENCES tapes(name) ON DELETE CASCADE,
	path        TEXT NOT NULL,
	size        INTEGER NOT NULL,
	mtime       INTEGER,
	xxhash      TEXT,
	archived_at INTEGER,
	UNIQUE (tape_name, path)
);

INSERT INTO files_new (id, tape_name, path, size, mtime, xxhash, archived_at)
	SELECT id, tape_name, path, size, mtime, lower(trim(xxhash)), archived_at FROM files;

DROP TABLE files;
ALTER TABLE files_new RENAME TO files;

CREATE INDEX idx_files_path ON files(path);
CREATE INDEX idx_files_xxhash ON files(xxhash);
CREATE INDEX idx_files_tape ON files(tape_name);

CREATE VIRTUAL TABLE files_fts USING fts5(
	terms,
	content = '',
	tokenize = 'ascii'
);

INSERT INTO files_fts (rowid, terms) SELECT id, tapecat_terms(path) FROM files;

CREATE TRIGGER files_ai AFTER INSERT ON files BEGIN
	INSERT INTO files_fts (rowid, terms) VALUES (new.id, tapecat_terms(new.path));
END;

CREATE TRIGGER files_ad AFTER DELETE ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, terms) VALUES ('delete', old.id, tapecat_terms(old.path));
END;

CREATE TRIGGER files_au AFTER UPDATE OF path ON files BEGIN
	INSERT INTO files_fts (files_fts, rowid, terms) VALUES ('delete', old.id, tapecat_terms(old.path));
	INSERT INTO files_fts (rowid, terms) VALUES (new.id, tapecat_terms(new.path));
END;
`,
}

// SQL names of the catalog's functions. The schema refers to
// termsFunction from triggers, so every connection must have it.
const (
	globFunction  = "tapecat_glob"
	termsFunction = "tapecat_terms"
)

// registerFunctions installs the catalog's SQL functions on a new
// connection.
func registerFunctions(conn *sqlite.Conn) error {
	err := conn.CreateFunction(globFunction, &sqlite.FunctionImpl{
		NArgs:         2,
		Deterministic: true,
		Scalar: func(ctx sqlite.Context, args []sqlite.Value) (sqlite.Value, error) {
			matched, err := search.Match(args[0].Text(), args[1].Text())
			if err != nil {
				return sqlite.Value{}, err
			}
			if matched {
				return sqlite.IntegerValue(1), nil
			}
			return sqlite.IntegerValue(0), nil
		},
	})
	if err != nil {
		return err
	}
	// Terms are letters and digits joined by spaces, already folded,
	// which the FTS5 ascii tokenizer splits back apart unchanged.
	return conn.CreateFunction(termsFunction, &sqlite.FunctionImpl{
		NArgs:         1,
		Deterministic: true,
		AllowIndirect: true,
		Scalar: func(ctx sqlite.Context, args []sqlite.Value) (sqlite.Value, error) {
			return sqlite.TextValue(strings.Join(search.Tokenize(args[0].Text()), " ")), nil
		},
	})
}
