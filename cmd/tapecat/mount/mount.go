// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount implements "tapecat mount", which serves the archive
// as a read-only FUSE filesystem with one top-level directory per tape.
package mount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/catalogfs"
	"github.com/bureau-foundation/tapecat/lib/clock"
	"github.com/bureau-foundation/tapecat/lib/config"
	"github.com/bureau-foundation/tapecat/lib/generation"
	"github.com/bureau-foundation/tapecat/lib/indexwatch"
)

type mountParams struct {
	cli.Archive
	Source          string        `json:"source"           flag:"source,s"         desc:"what to serve: snapshots or catalog (default: mount.source)"`
	AllowOther      bool          `json:"allow_other"      flag:"allow-other"      desc:"let other users read the mount (needs user_allow_other in /etc/fuse.conf)"`
	RefreshInterval time.Duration `json:"refresh_interval" flag:"refresh-interval" desc:"also rebuild on this interval (default: mount.refresh_interval)"`
	SettleDelay     time.Duration `json:"settle_delay"     flag:"settle-delay"     desc:"quiet period before a snapshot change triggers a rebuild (default: mount.settle_delay)"`
}

// settings is the effective mount configuration: flags over config.
type settings struct {
	Mountpoint      string
	Source          config.Source
	Directory       string
	AllowOther      bool
	RefreshInterval time.Duration
	SettleDelay     time.Duration
	EntryTimeout    time.Duration
	AttrTimeout     time.Duration
}

func resolveSettings(cfg *config.Config, params *mountParams, args []string) (settings, error) {
	if len(args) > 1 {
		return settings{}, cli.Validation("expected at most one mountpoint, got %d arguments", len(args))
	}
	resolved := settings{
		Mountpoint:      cfg.Mount.Mountpoint,
		Source:          cfg.Mount.Source,
		Directory:       cfg.Paths.Indexes,
		AllowOther:      cfg.Mount.AllowOther || params.AllowOther,
		RefreshInterval: cfg.Mount.RefreshInterval,
		SettleDelay:     cfg.Mount.SettleDelay,
		EntryTimeout:    cfg.Mount.EntryTimeout,
		AttrTimeout:     cfg.Mount.AttrTimeout,
	}
	if len(args) == 1 {
		mountpoint, err := filepath.Abs(args[0])
		if err != nil {
			return settings{}, cli.Validation("mountpoint %s: %w", args[0], err)
		}
		resolved.Mountpoint = mountpoint
	}
	if params.Source != "" {
		resolved.Source = config.Source(params.Source)
	}
	if resolved.Source != config.SourceSnapshots && resolved.Source != config.SourceCatalog {
		return settings{}, cli.Validation("--source must be %q or %q, got %q",
			config.SourceSnapshots, config.SourceCatalog, resolved.Source)
	}
	if params.RefreshInterval < 0 || params.SettleDelay < 0 {
		return settings{}, cli.Validation("--refresh-interval and --settle-delay must not be negative")
	}
	if params.RefreshInterval > 0 {
		resolved.RefreshInterval = params.RefreshInterval
	}
	if params.SettleDelay > 0 {
		resolved.SettleDelay = params.SettleDelay
	}
	if resolved.Mountpoint == "" {
		return settings{}, cli.Validation("no mountpoint: pass one or set mount.mountpoint")
	}
	return resolved, nil
}

// Command returns the "mount" command. Status lines are written to out.
func Command(out io.Writer) *cli.Command {
	var params mountParams

	return &cli.Command{
		Name:    "mount",
		Summary: "Serve the archive as a read-only filesystem",
		Description: `Mount the archive as a read-only FUSE filesystem with one top-level
directory per tape. Files show their cataloged size and times; reading
one returns a short placeholder naming the tape to load, since the
data itself lives on tape.

With source "snapshots" the tree is built from the authoritative
generation of every volume in paths.indexes, and the mount rebuilds
whenever a snapshot lands there. With source "catalog" it is built from
the catalog database. A rebuild that fails leaves the served tree in
place, and a volume whose new snapshots are unusable keeps its previous
tree.

Runs in the foreground until interrupted, then unmounts.`,
		Usage: "tapecat mount [mountpoint] [flags]",
		Examples: []cli.Example{
			{
				Description: "Mount at the configured mountpoint",
				Command:     "tapecat mount",
			},
			{
				Description: "Serve the catalog, shared with other users",
				Command:     "tapecat mount /mnt/tapes --source catalog --allow-other",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			environment, err := params.Open(os.Stderr, "mount")
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := environment.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			resolved, err := resolveSettings(environment.Config, &params, args)
			if err != nil {
				return err
			}
			logger := environment.Logger

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			// Watch before the first scan so no capture falls between them.
			var events <-chan indexwatch.Event
			if resolved.Source == config.SourceSnapshots {
				if err := os.MkdirAll(resolved.Directory, 0o755); err != nil {
					return cli.Internal("creating %s: %w", resolved.Directory, err)
				}
				events, err = indexwatch.Watch(ctx, resolved.Directory)
				if err != nil {
					return cli.Internal("watching %s: %w", resolved.Directory, err)
				}
			}

			loader, err := newLoader(environment, resolved)
			if err != nil {
				return err
			}
			instance := catalogfs.NewInstance(catalogfs.InstanceConfig{Loader: loader, Logger: logger})
			report, err := instance.Load(ctx)
			if err != nil {
				return cli.Internal("building the filesystem: %w", err)
			}
			logReport(logger, report)

			server, err := catalogfs.Mount(catalogfs.MountOptions{
				Mountpoint:   resolved.Mountpoint,
				FS:           instance.FS(),
				AllowOther:   resolved.AllowOther,
				EntryTimeout: resolved.EntryTimeout,
				AttrTimeout:  resolved.AttrTimeout,
				Logger:       logger,
			})
			if err != nil {
				<-instance.Close()
				return cli.Internal("mounting at %s: %w", resolved.Mountpoint, err)
			}
			logger.Info("mounted", "mountpoint", resolved.Mountpoint, "source", resolved.Source,
				"tapes", report.Summary.Tapes, "files", report.Summary.Files)
			fmt.Fprintf(out, "Serving %d tapes (%d files) at %s\n",
				report.Summary.Tapes, report.Summary.Files, resolved.Mountpoint)

			var batches <-chan []indexwatch.Event
			if events != nil {
				batches = indexwatch.Settle(ctx, events, resolved.SettleDelay, clock.Real())
			}
			serve(ctx, instance, batches, resolved.RefreshInterval, logger)

			logger.Info("unmounting", "mountpoint", resolved.Mountpoint)
			unmountErr := server.Unmount()
			<-instance.Close()
			if unmountErr != nil {
				return cli.Internal("unmounting %s: %w", resolved.Mountpoint, unmountErr)
			}
			return nil
		},
	}
}

// newLoader builds the loader for the configured source. In snapshot
// mode the catalog only supplies tape labels, and only when the
// database already exists: mounting never creates one.
func newLoader(environment *cli.Environment, resolved settings) (catalogfs.Loader, error) {
	if resolved.Source == config.SourceCatalog {
		store, err := environment.Catalog()
		if err != nil {
			return nil, err
		}
		return &catalogfs.CatalogLoader{Store: store, Logger: environment.Logger}, nil
	}

	labeler := environment.Labeler(nil)
	if _, err := os.Stat(environment.Config.Paths.Database); err == nil {
		store, err := environment.Catalog()
		if err != nil {
			return nil, err
		}
		labeler = environment.Labeler(store)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, cli.Internal("checking catalog: %w", err)
	}
	return &catalogfs.SnapshotLoader{
		Directory: resolved.Directory,
		Cache:     generation.LoadCache(filepath.Join(resolved.Directory, generation.CacheFileName), environment.Logger),
		Labeler:   labeler,
		Logger:    environment.Logger,
	}, nil
}

// serve refreshes instance on every settled batch of snapshot changes
// and every interval, until ctx is done. A nil batches channel or a
// zero interval disables that trigger.
func serve(ctx context.Context, instance *catalogfs.Instance, batches <-chan []indexwatch.Event, interval time.Duration, logger *slog.Logger) {
	var wg sync.WaitGroup
	if interval > 0 {
		wg.Go(func() {
			instance.RefreshEvery(ctx, interval)
		})
	}
	if batches != nil {
		wg.Go(func() {
			refreshOnChange(ctx, instance, batches, logger)
		})
	}
	<-ctx.Done()
	wg.Wait()
}

// refreshOnChange rebuilds once per batch until batches is closed.
func refreshOnChange(ctx context.Context, instance *catalogfs.Instance, batches <-chan []indexwatch.Event, logger *slog.Logger) {
	for batch := range batches {
		names := make([]string, len(batch))
		for i, event := range batch {
			if event.Name == "" {
				names[i] = "watch queue overflowed"
				continue
			}
			names[i] = event.Op.String() + " " + event.Name
		}
		logger.Info("snapshots changed", "events", names)
		report, err := instance.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("refresh after snapshot change failed", "error", err)
			continue
		}
		logReport(logger, report)
	}
}

func logReport(logger *slog.Logger, report *catalogfs.LoadReport) {
	for _, failure := range report.Failures {
		logger.Warn("snapshot skipped", "source", failure.Source, "error", failure.Err)
	}
	for _, conflict := range report.Conflicts {
		logger.Warn("conflicting snapshots", "error", conflict)
	}
	if len(report.CarriedOver) > 0 {
		logger.Warn("serving previous trees", "tapes", report.CarriedOver)
	}
}
