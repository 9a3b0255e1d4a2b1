// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/catalog"
	"github.com/bureau-foundation/tapecat/lib/generation"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/pathindex"
)

// ingestOutput is the JSON form of one ingested snapshot or hash list.
type ingestOutput struct {
	Source     string `json:"source"`
	Tape       string `json:"tape"`
	Inserted   int    `json:"inserted"`
	Updated    int    `json:"updated"`
	Unchanged  int    `json:"unchanged"`
	Collisions int    `json:"collisions"`
	// Problems counts nodes excluded from a snapshot by validation.
	Problems int `json:"problems,omitempty"`
}

func newIngestOutput(source, tape string, result catalog.IngestResult) ingestOutput {
	return ingestOutput{
		Source:     source,
		Tape:       tape,
		Inserted:   result.Inserted,
		Updated:    result.Updated,
		Unchanged:  result.Unchanged,
		Collisions: len(result.Collisions),
	}
}

func writeIngested(out io.Writer, output *cli.JSONOutput, results []ingestOutput) error {
	if done, err := output.EmitJSON(out, results); done {
		return err
	}
	for _, result := range results {
		fmt.Fprintf(out, "%s: %d inserted, %d updated, %d unchanged (%s)\n",
			result.Tape, result.Inserted, result.Updated, result.Unchanged, filepath.Base(result.Source))
		if result.Collisions > 0 {
			fmt.Fprintf(out, "  %s replaced with different content\n", plural(result.Collisions, "existing entry", "existing entries"))
		}
		if result.Problems > 0 {
			fmt.Fprintf(out, "  %s excluded as malformed\n", plural(result.Problems, "node", "nodes"))
		}
	}
	return nil
}

// logCollisions reports each replaced row. A collision is an audit
// event, not a failure.
func logCollisions(logger *slog.Logger, result catalog.IngestResult) {
	for _, collision := range result.Collisions {
		logger.Warn("cataloged file replaced",
			"tape", collision.Tape,
			"path", collision.Path,
			"old_size", collision.Old.Size,
			"new_size", collision.New.Size,
			"old_hash", collision.Old.Hash,
			"new_hash", collision.New.Hash,
		)
	}
}

// --- ingest-index ---

type ingestIndexParams struct {
	cli.Archive
	cli.JSONOutput
	Tape string `json:"tape" flag:"tape,t" desc:"tape name (default: configured label, catalog, volume name, then UUID)"`
}

func ingestIndexCommand(out io.Writer) *cli.Command {
	var params ingestIndexParams

	return &cli.Command{
		Name:    "ingest-index",
		Summary: "Catalog the files of LTFS index snapshots",
		Description: `Add every file of an LTFS index snapshot to the catalog under its
tape. Re-ingesting the same snapshot changes nothing; a newer
generation updates sizes and times in place.

With no arguments, the index directory (paths.indexes) is resolved
and the authoritative generation of every volume is ingested. Volumes
whose newest generation is contested are skipped and reported.

The tape name is --tape when given (single snapshot only), else the
configured label for the volume UUID, else the name the catalog
already records for it, else the volume name in the index, else the
first eight hex digits of the UUID.`,
		Usage: "tapecat catalog ingest-index [snapshot.xml...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Ingest the authoritative generation of every volume",
				Command:     "tapecat catalog ingest-index",
			},
			{
				Description: "Ingest one capture under an explicit tape name",
				Command:     "tapecat catalog ingest-index captures/LTO007_gen42_b.xml.zst --tape LTO007",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if params.Tape != "" && len(args) != 1 {
				return cli.Validation("--tape requires exactly one snapshot file")
			}
			environment, store, closer, err := openCatalog(&params.Archive, "catalog ingest-index")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)
			logger := environment.Logger

			var snapshots []*ltfsindex.Snapshot
			if len(args) == 0 {
				snapshots, err = authoritativeSnapshots(ctx, environment)
			} else {
				snapshots, err = openSnapshots(args)
			}
			if err != nil {
				return err
			}

			labeler := environment.Labeler(store)
			var results []ingestOutput
			for _, snapshot := range snapshots {
				tape := params.Tape
				if tape == "" {
					tape = snapshotLabel(labeler, snapshot)
				}
				for _, problem := range snapshot.Problems {
					logger.Warn("snapshot node excluded", "source", snapshot.Source, "path", problem.Path, "reason", problem.Reason)
				}
				result, err := store.IngestSnapshot(ctx, tape, snapshot)
				if err != nil {
					return cli.Internal("ingesting %s: %w", snapshot.Source, err)
				}
				logCollisions(logger, result)
				logger.Info("snapshot ingested",
					"source", snapshot.Source,
					"tape", tape,
					"volume_uuid", snapshot.Header.VolumeUUID,
					"generation", snapshot.Header.Generation,
					"result", result.String(),
				)
				output := newIngestOutput(snapshot.Source, tape, result)
				output.Problems = len(snapshot.Problems)
				results = append(results, output)
			}
			return writeIngested(out, &params.JSONOutput, results)
		},
	}
}

// snapshotLabel names the tape of snapshot: labeler first, then the
// index's volume name, then the UUID fallback.
func snapshotLabel(labeler pathindex.Labeler, snapshot *ltfsindex.Snapshot) string {
	return pathindex.ResolveLabel(pathindex.ChainLabelers(labeler,
		pathindex.LabelerFunc(func(string) (string, bool) {
			name := snapshot.Root().Name
			return name, name != ""
		}),
	), snapshot.Header.VolumeUUID)
}

func openSnapshots(paths []string) ([]*ltfsindex.Snapshot, error) {
	snapshots := make([]*ltfsindex.Snapshot, 0, len(paths))
	for _, path := range paths {
		snapshot, err := ltfsindex.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, cli.NotFound("%w", err)
			}
			return nil, cli.Validation("%w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// authoritativeSnapshots resolves the configured index directory. Scan
// failures and contested volumes are logged; the rest is returned in
// volume order.
func authoritativeSnapshots(ctx context.Context, environment *cli.Environment) ([]*ltfsindex.Snapshot, error) {
	directory := environment.Config.Paths.Indexes
	logger := environment.Logger
	cache := generation.LoadCache(filepath.Join(directory, generation.CacheFileName), logger)
	scan, err := generation.NewScanner(directory, cache, logger).Scan(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("index directory %s does not exist", directory)
		}
		return nil, cli.Internal("scanning %s: %w", directory, err)
	}
	if err := cache.Save(); err != nil {
		logger.Warn("saving snapshot header cache failed", "error", err)
	}
	for _, failure := range scan.Failures {
		logger.Warn("snapshot skipped", "source", failure.Source, "error", failure.Err)
	}
	for _, conflict := range scan.Result.Conflicts {
		logger.Warn("conflicting snapshots", "error", conflict)
	}
	for _, volume := range scan.Result.Withheld {
		logger.Warn("volume not ingested: newest generation is contested", "volume_uuid", volume)
	}

	volumes := make([]string, 0, len(scan.Snapshots))
	for volume := range scan.Snapshots {
		volumes = append(volumes, volume)
	}
	slices.Sort(volumes)
	snapshots := make([]*ltfsindex.Snapshot, len(volumes))
	for i, volume := range volumes {
		snapshots[i] = scan.Snapshots[volume]
	}
	return snapshots, nil
}

// --- import ---

type importParams struct {
	cli.Archive
	cli.JSONOutput
	Tape string `json:"tape" flag:"tape,t" desc:"tape name (default: the list's tapeinfo, then the file name before the first _)"`
}

func importCommand(out io.Writer) *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Import MHL hash lists",
		Description: `Add the files of MHL hash lists to the catalog, with their XXH64
content hashes. Hashes are what hash lookups and duplicate detection
work from.

With no arguments, every .mhl file in the hash list directory
(paths.hash_lists) is imported. Importing a list again changes
nothing.`,
		Usage: "tapecat catalog import [list.mhl...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Import every hash list in the archive",
				Command:     "tapecat catalog import",
			},
			{
				Description: "Import a list written for LTO005",
				Command:     "tapecat catalog import LTO005_projects_20250301.mhl",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if params.Tape != "" && len(args) != 1 {
				return cli.Validation("--tape requires exactly one hash list")
			}
			environment, store, closer, err := openCatalog(&params.Archive, "catalog import")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)
			logger := environment.Logger

			paths := args
			if len(paths) == 0 {
				paths, err = hashListsIn(environment.Config.Paths.HashLists)
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					logger.Info("no hash lists found", "directory", environment.Config.Paths.HashLists)
				}
			}

			var results []ingestOutput
			for _, path := range paths {
				tape, result, err := store.ImportHashList(ctx, path, params.Tape)
				if err != nil {
					var storageErr *catalog.StorageError
					if errors.As(err, &storageErr) {
						return cli.Internal("importing %s: %w", path, err)
					}
					if errors.Is(err, fs.ErrNotExist) {
						return cli.NotFound("%w", err)
					}
					return cli.Validation("importing %s: %w", path, err)
				}
				logCollisions(logger, result)
				logger.Info("hash list imported", "source", path, "tape", tape, "result", result.String())
				results = append(results, newIngestOutput(path, tape, result))
			}
			return writeIngested(out, &params.JSONOutput, results)
		},
	}
}

func hashListsIn(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("hash list directory %s does not exist", directory)
		}
		return nil, cli.Internal("reading %s: %w", directory, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".mhl") {
			paths = append(paths, filepath.Join(directory, entry.Name()))
		}
	}
	return paths, nil
}
