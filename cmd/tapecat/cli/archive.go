// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tapecat/lib/catalog"
	"github.com/bureau-foundation/tapecat/lib/config"
	"github.com/bureau-foundation/tapecat/lib/pathindex"
)

// Archive binds the --config flag shared by every command that touches
// the archive. Embed it in a params struct.
//
// Exported so that embedded struct fields are visible to reflection in
// [FlagsFromParams].
type Archive struct {
	ConfigPath string
}

// AddFlags registers --config with its default from TAPECAT_CONFIG.
func (a *Archive) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&a.ConfigPath, "config", os.Getenv(config.EnvironmentVariable),
		"configuration file (YAML or JSONC); defaults apply when unset")
}

// Open loads and validates the configuration and builds the logger it
// describes. stderr receives log output.
func (a *Archive) Open(stderr io.Writer, command string) (*Environment, error) {
	var cfg *config.Config
	var err error
	if a.ConfigPath != "" {
		cfg, err = config.LoadFile(a.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, Validation("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Validation("invalid configuration: %w", err)
	}

	logger, closer, err := NewCommandLogger(stderr, cfg.Log)
	if err != nil {
		return nil, Internal("creating logger: %w", err)
	}
	return &Environment{
		Config:  cfg,
		Logger:  logger.With("command", command),
		closers: []io.Closer{closer},
	}, nil
}

// Environment is an opened configuration with the resources commands
// open from it. Close releases them in reverse order.
type Environment struct {
	Config *config.Config
	Logger *slog.Logger

	store   *catalog.Store
	closers []io.Closer
}

// Catalog opens the catalog database, creating its directory when
// needed. Repeated calls return the same store.
func (e *Environment) Catalog() (*catalog.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	path := e.Config.Paths.Database
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Internal("creating catalog directory: %w", err)
	}
	store, err := catalog.Open(catalog.Config{
		Path:     path,
		PoolSize: e.Config.Catalog.PoolSize,
		Logger:   e.Logger,
	})
	if err != nil {
		return nil, Internal("opening catalog %s: %w", path, err)
	}
	e.store = store
	e.closers = append(e.closers, store)
	return store, nil
}

// Labeler names tapes: configured labels first, then the catalog's
// tape table when one is given.
func (e *Environment) Labeler(store *catalog.Store) pathindex.Labeler {
	static := pathindex.StaticLabels(e.Config.Labels)
	if store == nil {
		return static
	}
	return pathindex.ChainLabelers(static, store)
}

// SearchLimit returns requested, or the configured default when
// requested is zero.
func (e *Environment) SearchLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.Config.Catalog.SearchLimit
}

// Close releases everything the environment opened.
func (e *Environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	e.store = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	return nil
}
