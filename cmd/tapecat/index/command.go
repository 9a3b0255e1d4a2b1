// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

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
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/generation"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// Command returns the "index" subcommand group. Results are written
// to out.
func Command(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "index",
		Summary: "Inspect LTFS index snapshots",
		Description: `Inspect LTFS index snapshots captured from tapes.

A snapshot is the index XML an LTFS volume writes to its partitions,
optionally compressed with gzip, zstd or lz4. A volume accumulates
generations; for each volume the highest generation wins, and on a
tie the copy written to the data partition wins.`,
		Subcommands: []*cli.Command{
			showCommand(out),
			resolveCommand(out),
			diffCommand(out),
		},
	}
}

func openSnapshot(path string) (*ltfsindex.Snapshot, error) {
	snapshot, err := ltfsindex.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("%w", err)
		}
		return nil, cli.Validation("%w", err)
	}
	return snapshot, nil
}

func timeOrNil(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}

// --- show ---

type showParams struct {
	cli.JSONOutput
	XML bool `json:"xml" flag:"xml" desc:"write the decoded snapshot back out as canonical index XML"`
}

type problemOutput struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type showOutput struct {
	Source      string          `json:"source"`
	Format      string          `json:"format_version,omitempty"`
	VolumeUUID  string          `json:"volume_uuid"`
	VolumeName  string          `json:"volume_name,omitempty"`
	Generation  uint64          `json:"generation"`
	Partition   string          `json:"partition"`
	UpdateTime  *time.Time      `json:"update_time,omitempty"`
	Creator     string          `json:"creator,omitempty"`
	Files       int             `json:"files"`
	Directories int             `json:"directories"`
	TotalBytes  uint64          `json:"total_bytes"`
	TreeHash    string          `json:"tree_hash"`
	Problems    []problemOutput `json:"problems,omitempty"`
}

func showCommand(out io.Writer) *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Describe one snapshot",
		Description: `Decode one snapshot and print its header, counts and tree hash.

The tree hash covers the directory tree only, not the header, so two
captures of the same generation hash alike even when their update
times differ. Nodes that violate the tree rules (duplicate names,
extents that do not cover the file) are listed as problems.

With --xml the decoded snapshot is written back out as index XML in a
canonical layout.`,
		Usage: "tapecat index show <snapshot> [flags]",
		Examples: []cli.Example{
			{
				Description: "Describe a compressed capture",
				Command:     "tapecat index show LTO004_gen31_b.xml.zst",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("expected one snapshot file, got %d arguments", len(args))
			}
			if params.XML && params.OutputJSON {
				return cli.Validation("--xml and --json are mutually exclusive")
			}
			snapshot, err := openSnapshot(args[0])
			if err != nil {
				return err
			}
			if params.XML {
				return snapshot.WriteXML(out)
			}

			header := snapshot.Header
			output := showOutput{
				Source:      snapshot.Source,
				Format:      header.Version,
				VolumeUUID:  header.VolumeUUID,
				VolumeName:  snapshot.Root().Name,
				Generation:  header.Generation,
				Partition:   header.Location.String(),
				UpdateTime:  timeOrNil(header.UpdateTime),
				Creator:     header.Creator,
				Files:       snapshot.FileCount(),
				Directories: snapshot.DirectoryCount(),
				TotalBytes:  snapshot.TotalBytes(),
				TreeHash:    ltfsindex.FormatTreeHash(snapshot.TreeHash()),
			}
			for _, problem := range snapshot.Problems {
				output.Problems = append(output.Problems, problemOutput{Path: problem.Path, Reason: problem.Reason})
			}
			if done, err := params.EmitJSON(out, output); done {
				return err
			}

			writer := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "Volume:\t%s\n", output.VolumeUUID)
			if output.VolumeName != "" {
				fmt.Fprintf(writer, "Name:\t%s\n", output.VolumeName)
			}
			fmt.Fprintf(writer, "Generation:\t%d (partition %s)\n", output.Generation, output.Partition)
			if output.UpdateTime != nil {
				fmt.Fprintf(writer, "Updated:\t%s\n", output.UpdateTime.Format(time.RFC3339))
			}
			if output.Creator != "" {
				fmt.Fprintf(writer, "Creator:\t%s\n", output.Creator)
			}
			fmt.Fprintf(writer, "Files:\t%s\n", humanize.Comma(int64(output.Files)))
			fmt.Fprintf(writer, "Directories:\t%s\n", humanize.Comma(int64(output.Directories)))
			fmt.Fprintf(writer, "Size:\t%s\n", humanize.IBytes(output.TotalBytes))
			fmt.Fprintf(writer, "Tree hash:\t%s\n", output.TreeHash)
			if err := writer.Flush(); err != nil {
				return err
			}
			if len(output.Problems) > 0 {
				fmt.Fprintf(out, "\n%d excluded nodes:\n", len(output.Problems))
				for _, problem := range output.Problems {
					fmt.Fprintf(out, "  %s: %s\n", problem.Path, problem.Reason)
				}
			}
			return nil
		},
	}
}

// --- resolve ---

type resolveParams struct {
	cli.Archive
	cli.JSONOutput
}

type volumeOutput struct {
	VolumeUUID string `json:"volume_uuid"`
	Generation uint64 `json:"generation"`
	Partition  string `json:"partition"`
	Source     string `json:"source"`
	TreeHash   string `json:"tree_hash"`
}

type conflictOutput struct {
	VolumeUUID string   `json:"volume_uuid"`
	Generation uint64   `json:"generation"`
	Partition  string   `json:"partition"`
	Sources    []string `json:"sources"`
}

type failureOutput struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type resolveOutput struct {
	Directory     string           `json:"directory"`
	Files         int              `json:"files"`
	Authoritative []volumeOutput   `json:"authoritative"`
	Conflicts     []conflictOutput `json:"conflicts,omitempty"`
	Withheld      []string         `json:"withheld,omitempty"`
	Failures      []failureOutput  `json:"failures,omitempty"`
}

func resolveCommand(out io.Writer) *cli.Command {
	var params resolveParams

	return &cli.Command{
		Name:    "resolve",
		Summary: "Pick the authoritative generation of every volume",
		Description: `Scan a directory of snapshots and report, for every volume, which
capture is authoritative: the highest generation, with the data
partition winning a tie.

Two captures of the same generation and partition whose trees differ
are a conflict. When the conflict is at a volume's newest generation
the volume is withheld: nothing is served for it until the conflict is
resolved. Files that cannot be decoded are listed as failures, and
resolution falls back to the next newest capture.

The directory defaults to paths.indexes. Exits with status 1 when any
conflict or failure is found.`,
		Usage: "tapecat index resolve [directory] [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) > 1 {
				return cli.Validation("expected at most one directory, got %d arguments", len(args))
			}
			environment, err := params.Open(os.Stderr, "index resolve")
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := environment.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			directory := environment.Config.Paths.Indexes
			if len(args) == 1 {
				directory = args[0]
			}
			cache := generation.LoadCache(filepath.Join(directory, generation.CacheFileName), environment.Logger)
			scan, err := generation.NewScanner(directory, cache, environment.Logger).Scan(ctx)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return cli.NotFound("index directory %s does not exist", directory)
				}
				return cli.Internal("scanning %s: %w", directory, err)
			}
			if err := cache.Save(); err != nil {
				environment.Logger.Warn("saving snapshot header cache failed", "error", err)
			}

			output := resolveOutput{
				Directory:     directory,
				Files:         scan.Files,
				Authoritative: []volumeOutput{},
				Withheld:      scan.Result.Withheld,
			}
			volumes := make([]string, 0, len(scan.Result.Authoritative))
			for volume := range scan.Result.Authoritative {
				volumes = append(volumes, volume)
			}
			slices.Sort(volumes)
			for _, volume := range volumes {
				candidate := scan.Result.Authoritative[volume]
				output.Authoritative = append(output.Authoritative, volumeOutput{
					VolumeUUID: volume,
					Generation: candidate.Header.Generation,
					Partition:  candidate.Header.Location.String(),
					Source:     filepath.Base(candidate.Source),
					TreeHash:   ltfsindex.FormatTreeHash(candidate.TreeHash),
				})
			}
			for _, conflict := range scan.Result.Conflicts {
				sources := make([]string, len(conflict.Sources))
				for i, source := range conflict.Sources {
					sources[i] = filepath.Base(source)
				}
				output.Conflicts = append(output.Conflicts, conflictOutput{
					VolumeUUID: conflict.Key.Volume,
					Generation: conflict.Key.Number,
					Partition:  conflict.Key.Partition.String(),
					Sources:    sources,
				})
			}
			for _, failure := range scan.Failures {
				output.Failures = append(output.Failures, failureOutput{
					Source: filepath.Base(failure.Source),
					Error:  failure.Err.Error(),
				})
			}

			done, err := params.EmitJSON(out, output)
			if err != nil {
				return err
			}
			if !done {
				if err := writeResolve(out, output); err != nil {
					return err
				}
			}
			if len(output.Conflicts) > 0 || len(output.Failures) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func writeResolve(out io.Writer, output resolveOutput) error {
	fmt.Fprintf(out, "%s: %d snapshot files, %d volumes\n\n", output.Directory, output.Files, len(output.Authoritative))
	writer := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "VOLUME\tGENERATION\tSOURCE\tTREE\n")
	for _, volume := range output.Authoritative {
		fmt.Fprintf(writer, "%s\t%d%s\t%s\t%s\n",
			volume.VolumeUUID, volume.Generation, volume.Partition, volume.Source, volume.TreeHash[:12])
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	for _, volume := range output.Withheld {
		fmt.Fprintf(out, "\nwithheld: %s (newest generation is contested)", volume)
	}
	for _, conflict := range output.Conflicts {
		fmt.Fprintf(out, "\nconflict: %s generation %d%s: %v", conflict.VolumeUUID, conflict.Generation, conflict.Partition, conflict.Sources)
	}
	for _, failure := range output.Failures {
		fmt.Fprintf(out, "\nfailed: %s: %s", failure.Source, failure.Error)
	}
	if len(output.Withheld)+len(output.Conflicts)+len(output.Failures) > 0 {
		fmt.Fprintln(out)
	}
	return nil
}

// --- diff ---

type diffParams struct {
	cli.JSONOutput
}

type diffOutput struct {
	Old     uint64   `json:"old_generation"`
	New     uint64   `json:"new_generation"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

func diffCommand(out io.Writer) *cli.Command {
	var params diffParams

	return &cli.Command{
		Name:    "diff",
		Summary: "List paths added and removed between two snapshots",
		Description: `Compare the file paths of two snapshots of the same volume. Paths
present only in the newer snapshot are added; paths present only in
the older one were deleted or overwritten by a later write session.`,
		Usage: "tapecat index diff <old> <new> [flags]",
		Examples: []cli.Example{
			{
				Description: "What changed between generations 30 and 31",
				Command:     "tapecat index diff LTO004_gen30_b.xml LTO004_gen31_b.xml",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return cli.Validation("expected two snapshot files, got %d arguments", len(args))
			}
			previous, err := openSnapshot(args[0])
			if err != nil {
				return err
			}
			current, err := openSnapshot(args[1])
			if err != nil {
				return err
			}
			if previous.Header.VolumeUUID != current.Header.VolumeUUID {
				logger.Warn("snapshots belong to different volumes",
					"old", previous.Header.VolumeUUID, "new", current.Header.VolumeUUID)
			}

			output := diffOutput{
				Old:     previous.Header.Generation,
				New:     current.Header.Generation,
				Added:   generation.Removed(current, previous),
				Removed: generation.Removed(previous, current),
			}
			if output.Added == nil {
				output.Added = []string{}
			}
			if output.Removed == nil {
				output.Removed = []string{}
			}
			if done, err := params.EmitJSON(out, output); done {
				return err
			}
			for _, path := range output.Added {
				fmt.Fprintf(out, "+ %s\n", path)
			}
			for _, path := range output.Removed {
				fmt.Fprintf(out, "- %s\n", path)
			}
			_, err = fmt.Fprintf(out, "generation %d -> %d: %d added, %d removed\n",
				output.Old, output.New, len(output.Added), len(output.Removed))
			return err
		},
	}
}
