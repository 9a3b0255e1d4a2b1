// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/catalog"
)

// tapeOutput is the JSON form of one tape.
type tapeOutput struct {
	Name       string     `json:"name"`
	VolumeUUID string     `json:"volume_uuid,omitempty"`
	Barcode    string     `json:"barcode,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	FileCount  int64      `json:"file_count"`
	TotalBytes int64      `json:"total_bytes"`
}

func toTapeOutput(tape catalog.Tape) tapeOutput {
	return tapeOutput{
		Name:       tape.Name,
		VolumeUUID: tape.VolumeUUID,
		Barcode:    tape.Barcode,
		CreatedAt:  timeOrNil(tape.CreatedAt),
		FileCount:  tape.FileCount,
		TotalBytes: tape.TotalBytes,
	}
}

type tapeParams struct {
	cli.Archive
	cli.JSONOutput
}

// --- tapes ---

func tapesCommand(out io.Writer) *cli.Command {
	var params tapeParams

	return &cli.Command{
		Name:    "tapes",
		Summary: "List cataloged tapes",
		Description: `List every tape in the catalog with its volume UUID, file count and
total size.`,
		Usage:  "tapecat catalog tapes [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 0 {
				return cli.Validation("unexpected arguments: %s", strings.Join(args, " "))
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog tapes")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			tapes, err := store.ListTapes(ctx)
			if err != nil {
				return queryError(err)
			}
			outputs := make([]tapeOutput, len(tapes))
			for i, tape := range tapes {
				outputs[i] = toTapeOutput(tape)
			}
			if done, err := params.EmitJSON(out, outputs); done {
				return err
			}
			if len(tapes) == 0 {
				_, err := fmt.Fprintln(out, "No tapes cataloged")
				return err
			}

			writer := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "TAPE\tFILES\tSIZE\tVOLUME\n")
			for _, tape := range tapes {
				volume := tape.VolumeUUID
				if volume == "" {
					volume = "-"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					tape.Name, humanize.Comma(tape.FileCount), formatSize(tape.TotalBytes), volume)
			}
			return writer.Flush()
		},
	}
}

// --- stats ---

type statsOutput struct {
	tapeOutput
	OldestFile *time.Time `json:"oldest_file,omitempty"`
	NewestFile *time.Time `json:"newest_file,omitempty"`
}

func statsCommand(out io.Writer) *cli.Command {
	var params tapeParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Show statistics for one tape",
		Description: `Show a tape's file count, total size and the range of modification
times of its files, computed from the cataloged files.`,
		Usage: "tapecat catalog stats <tape> [flags]",
		Examples: []cli.Example{
			{
				Description: "Statistics for LTO001",
				Command:     "tapecat catalog stats LTO001",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 1 {
				return cli.Validation("expected one tape name, got %d arguments", len(args))
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog stats")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			stats, err := store.TapeStats(ctx, args[0])
			if err != nil {
				return queryError(err)
			}
			output := statsOutput{
				tapeOutput: toTapeOutput(stats.Tape),
				OldestFile: timeOrNil(stats.OldestFile),
				NewestFile: timeOrNil(stats.NewestFile),
			}
			output.FileCount = stats.FileCount
			output.TotalBytes = stats.TotalBytes
			if done, err := params.EmitJSON(out, output); done {
				return err
			}

			writer := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "Tape:\t%s\n", stats.Tape.Name)
			if stats.Tape.VolumeUUID != "" {
				fmt.Fprintf(writer, "Volume:\t%s\n", stats.Tape.VolumeUUID)
			}
			if stats.Tape.Barcode != "" {
				fmt.Fprintf(writer, "Barcode:\t%s\n", stats.Tape.Barcode)
			}
			fmt.Fprintf(writer, "Files:\t%s\n", humanize.Comma(stats.FileCount))
			fmt.Fprintf(writer, "Size:\t%s (%s bytes)\n", formatSize(stats.TotalBytes), humanize.Comma(stats.TotalBytes))
			fmt.Fprintf(writer, "Oldest:\t%s\n", formatDate(stats.OldestFile))
			fmt.Fprintf(writer, "Newest:\t%s\n", formatDate(stats.NewestFile))
			return writer.Flush()
		},
	}
}

// --- summary ---

type summaryOutput struct {
	Tapes int64 `json:"tapes"`
	Files int64 `json:"files"`
	Bytes int64 `json:"bytes"`
}

func summaryCommand(out io.Writer) *cli.Command {
	var params tapeParams

	return &cli.Command{
		Name:    "summary",
		Summary: "Show catalog totals",
		Usage:   "tapecat catalog summary [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 0 {
				return cli.Validation("unexpected arguments: %s", strings.Join(args, " "))
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog summary")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			summary, err := store.Summary(ctx)
			if err != nil {
				return queryError(err)
			}
			if done, err := params.EmitJSON(out, summaryOutput(summary)); done {
				return err
			}
			_, err = fmt.Fprintf(out, "%s, %s, %s\n",
				plural(int(summary.Tapes), "tape", "tapes"),
				plural(int(summary.Files), "file", "files"),
				formatSize(summary.Bytes))
			return err
		},
	}
}

// --- delete ---

type deleteParams struct {
	cli.Archive
	cli.JSONOutput
	Yes bool `json:"yes" flag:"yes,y" desc:"confirm removal of the tape and all its files"`
}

type deleteOutput struct {
	Tape    string `json:"tape"`
	Removed int    `json:"removed"`
}

func deleteCommand(out io.Writer) *cli.Command {
	var params deleteParams

	return &cli.Command{
		Name:    "delete",
		Summary: "Remove a tape and its files from the catalog",
		Description: `Remove a tape and every file cataloged under it. Catalog rows are
otherwise permanent; this is the only way to drop them, for example
after a tape is erased and reused.

Requires --yes.`,
		Usage: "tapecat catalog delete <tape> --yes",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 1 {
				return cli.Validation("expected one tape name, got %d arguments", len(args))
			}
			if !params.Yes {
				return cli.Validation("refusing to delete %s without --yes", args[0])
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog delete")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			removed, err := store.DeleteTape(ctx, args[0])
			if err != nil {
				return queryError(err)
			}
			if done, err := params.EmitJSON(out, deleteOutput{Tape: args[0], Removed: removed}); done {
				return err
			}
			_, err = fmt.Fprintf(out, "Deleted %s (%s)\n", args[0], plural(removed, "file", "files"))
			return err
		},
	}
}
