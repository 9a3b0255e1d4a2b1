// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete tapecat command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	catalogcmd "github.com/bureau-foundation/tapecat/cmd/tapecat/catalog"
	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	indexcmd "github.com/bureau-foundation/tapecat/cmd/tapecat/index"
	mountcmd "github.com/bureau-foundation/tapecat/cmd/tapecat/mount"
	"github.com/bureau-foundation/tapecat/lib/version"
)

// Root builds the tapecat command tree. Command results go to out;
// logs and errors go to stderr.
func Root(out io.Writer) *cli.Command {
	return &cli.Command{
		Name: "tapecat",
		Description: `tapecat: catalog and browse an LTFS tape archive.

Record what every tape holds from LTFS index snapshots and MHL hash
lists, search it without loading a tape, and mount the whole archive
as a read-only filesystem.

Configuration is read from --config or $TAPECAT_CONFIG. Without
either, the archive lives under $LTFS_ARCHIVE_BASE (default
~/ltfs-archives).`,
		Subcommands: []*cli.Command{
			catalogcmd.Command(out),
			indexcmd.Command(out),
			mountcmd.Command(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if len(args) != 0 {
						return cli.Validation("version takes no arguments")
					}
					_, err := fmt.Fprintf(out, "tapecat %s\n", version.Full())
					return err
				},
			},
		},
	}
}
