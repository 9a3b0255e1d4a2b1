// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/catalog"
)

// Command returns the "catalog" subcommand group. Results are written
// to out.
func Command(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Summary: "Ingest, search and administer the tape catalog",
		Description: `Manage the catalog database of archived files.

The catalog records every file written to tape with its size,
modification time and, when a hash list was imported, its XXH64
content hash. It answers searches without any tape loaded.

Files enter the catalog from LTFS index snapshots (ingest-index) or
from MHL hash lists written at archive time (import).`,
		Subcommands: []*cli.Command{
			ingestIndexCommand(out),
			importCommand(out),
			searchCommand(out),
			fullTextCommand(out),
			fuzzyCommand(out),
			hashCommand(out),
			dupesCommand(out),
			queryCommand(out),
			tapesCommand(out),
			statsCommand(out),
			summaryCommand(out),
			exportCommand(out),
			deleteCommand(out),
		},
		Examples: []cli.Example{
			{
				Description: "Catalog the newest snapshot of every volume in the index directory",
				Command:     "tapecat catalog ingest-index",
			},
			{
				Description: "Find every QuickTime file on LTO003",
				Command:     "tapecat catalog search '*.mov' --tape LTO003",
			},
			{
				Description: "List duplicate files of at least 100 MB",
				Command:     "tapecat catalog dupes --min-size 100MB",
			},
		},
	}
}

// openCatalog opens the configuration and the catalog database. The
// returned close function releases both.
func openCatalog(archive *cli.Archive, command string) (*cli.Environment, *catalog.Store, func() error, error) {
	environment, err := archive.Open(os.Stderr, command)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := environment.Catalog()
	if err != nil {
		environment.Close()
		return nil, nil, nil, err
	}
	return environment, store, environment.Close, nil
}

// closeWith closes the environment and joins any error into *err.
func closeWith(err *error, closer func() error) {
	if closeErr := closer(); closeErr != nil {
		*err = errors.Join(*err, closeErr)
	}
}

// queryError classifies a query failure for the exit code. Errors
// that are neither storage failures nor a missing tape come from
// parsing the query text.
func queryError(err error) error {
	var storageErr *catalog.StorageError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, catalog.ErrNotFound):
		return &cli.CommandError{Category: cli.CategoryNotFound, Err: err}
	case errors.As(err, &storageErr):
		return &cli.CommandError{Category: cli.CategoryInternal, Err: err}
	}
	return &cli.CommandError{Category: cli.CategoryValidation, Err: err}
}
