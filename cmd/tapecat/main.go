// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tapecat catalogs LTFS tapes, searches the catalog and mounts the
// archive as a read-only filesystem.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/cmd/tapecat/commands"
	"github.com/bureau-foundation/tapecat/lib/config"
	"github.com/bureau-foundation/tapecat/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Commands that open the archive build their own logger from the
	// configuration; this one covers everything before that.
	logger, closer, err := cli.NewCommandLogger(os.Stderr, config.Default().Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	return commands.Root(os.Stdout).Execute(ctx, os.Args[1:], logger)
}
