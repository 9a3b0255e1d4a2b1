// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/hashlist"
	"github.com/bureau-foundation/tapecat/lib/search"
	"github.com/bureau-foundation/tapecat/lib/version"
)

type exportParams struct {
	cli.Archive
	cli.JSONOutput
	Output string `json:"output" flag:"output,o" desc:"destination file, or - for standard output (default: <paths.catalogs>/<tape>.mhl)"`
}

type exportOutput struct {
	Tape    string `json:"tape"`
	Path    string `json:"path"`
	Written int    `json:"written"`
	// Skipped counts files without a content hash, which a hash list
	// cannot carry.
	Skipped int `json:"skipped"`
}

func exportCommand(out io.Writer) *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Write a tape's hashed files as an MHL hash list",
		Description: `Write the cataloged files of one tape that carry a content hash as an
MHL hash list. The list can be imported into another catalog or used
to verify a restore.

Files without a hash (those known only from LTFS index snapshots) are
skipped and counted.`,
		Usage: "tapecat catalog export <tape> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export LTO003 into the catalogs directory",
				Command:     "tapecat catalog export LTO003",
			},
			{
				Description: "Print the hash list instead",
				Command:     "tapecat catalog export LTO003 --output -",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 1 {
				return cli.Validation("expected one tape name, got %d arguments", len(args))
			}
			if params.Output == "-" && params.OutputJSON {
				return cli.Validation("--json cannot be combined with --output -")
			}
			tape := args[0]
			environment, store, closer, err := openCatalog(&params.Archive, "catalog export")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			stats, err := store.TapeStats(ctx, tape)
			if err != nil {
				return queryError(err)
			}

			now := time.Now()
			list := &hashlist.List{
				Version: hashlist.Version,
				Creator: hashlist.CreatorInfo{
					Tool:       "tapecat " + version.Short(),
					StartDate:  now,
					FinishDate: now,
				},
				Tape: &hashlist.TapeInfo{Name: tape, Serial: stats.Tape.Barcode},
			}
			if hostname, err := os.Hostname(); err == nil {
				list.Creator.Hostname = hostname
			}
			result := exportOutput{Tape: tape}
			err = store.Entries(ctx, tape, func(entry search.Entry) error {
				if entry.Hash == "" {
					result.Skipped++
					return nil
				}
				list.Entries = append(list.Entries, hashlist.Entry{
					File:             entry.Path,
					Size:             entry.Size,
					LastModification: entry.ModifyTime,
					XXHash64BE:       entry.Hash,
					HashDate:         entry.ArchivedAt,
				})
				return nil
			})
			if err != nil {
				return queryError(err)
			}
			result.Written = len(list.Entries)

			if params.Output == "-" {
				return list.WriteXML(out)
			}
			result.Path = params.Output
			if result.Path == "" {
				result.Path = filepath.Join(environment.Config.Paths.Catalogs, tape+".mhl")
			}
			if err := writeFileAtomic(result.Path, list.WriteXML); err != nil {
				return cli.Internal("writing %s: %w", result.Path, err)
			}
			environment.Logger.Info("hash list exported", "tape", tape, "path", result.Path,
				"written", result.Written, "skipped", result.Skipped)

			if done, err := params.EmitJSON(out, result); done {
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %s written to %s, %s without a hash skipped\n",
				tape, plural(result.Written, "file", "files"), result.Path, plural(result.Skipped, "file", "files"))
			return err
		},
	}
}

// writeFileAtomic writes through a temporary file in the destination
// directory and renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}
	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Chmod(0o644); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
