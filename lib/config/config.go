// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "TAPECAT_CONFIG"

// ArchiveBaseVariable overrides the default archive root.
const ArchiveBaseVariable = "LTFS_ARCHIVE_BASE"

// Source selects what the mount serves.
type Source string

const (
	// SourceSnapshots serves the LTFS index snapshots in Paths.Indexes.
	SourceSnapshots Source = "snapshots"
	// SourceCatalog serves the catalog database.
	SourceCatalog Source = "catalog"
)

// Config is the master configuration for tapecat.
type Config struct {
	// Paths configures the archive layout.
	Paths PathsConfig `yaml:"paths"`

	// Mount configures the virtual filesystem.
	Mount MountConfig `yaml:"mount"`

	// Catalog configures the catalog database.
	Catalog CatalogConfig `yaml:"catalog"`

	// Log configures logging for every command.
	Log LogConfig `yaml:"log"`

	// Labels maps volume UUIDs to tape labels. Labels given here win
	// over the catalog and over the volume name in the index.
	Labels map[string]string `yaml:"labels"`
}

// PathsConfig configures the archive layout. Everything defaults to a
// subdirectory of Root.
type PathsConfig struct {
	Root string `yaml:"root"`

	// Indexes holds LTFS index snapshots captured after each write.
	Indexes string `yaml:"indexes"`

	// Catalogs holds exported listings.
	Catalogs string `yaml:"catalogs"`

	// HashLists holds MHL hash lists produced at archive time.
	HashLists string `yaml:"hash_lists"`

	// Logs holds rotated log files.
	Logs string `yaml:"logs"`

	// Database is the catalog database file.
	Database string `yaml:"database"`
}

// MountConfig configures the virtual filesystem.
type MountConfig struct {
	Mountpoint string `yaml:"mountpoint"`

	// Source is "snapshots" or "catalog".
	Source Source `yaml:"source"`

	// AllowOther lets users other than the mounting user see the
	// filesystem. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// RefreshInterval rebuilds the index periodically in addition to
	// refreshing on snapshot changes. Zero disables the timer.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// SettleDelay is how long the snapshot directory must be quiet
	// before a change triggers a refresh.
	SettleDelay time.Duration `yaml:"settle_delay"`

	EntryTimeout time.Duration `yaml:"entry_timeout"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
}

// CatalogConfig configures the catalog database.
type CatalogConfig struct {
	// PoolSize is the number of SQLite connections.
	PoolSize int `yaml:"pool_size"`

	// SearchLimit caps results when a command does not set one.
	SearchLimit int `yaml:"search_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "text", "json" or "auto" (text on a terminal).
	Format string `yaml:"format"`

	// File, when set, receives a copy of every log record with
	// size-based rotation.
	File string `yaml:"file"`

	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Default returns the default configuration, rooted at
// $LTFS_ARCHIVE_BASE or ~/ltfs-archives.
func Default() *Config {
	root := os.Getenv(ArchiveBaseVariable)
	if root == "" {
		homeDir, _ := os.UserHomeDir()
		root = filepath.Join(homeDir, "ltfs-archives")
	}

	return &Config{
		Paths: PathsConfig{
			Root:      root,
			Indexes:   "indexes",
			Catalogs:  "catalogs",
			HashLists: "mhl",
			Logs:      "logs",
			Database:  "catalog.db",
		},
		Mount: MountConfig{
			Mountpoint:   "mount",
			Source:       SourceSnapshots,
			SettleDelay:  2 * time.Second,
			EntryTimeout: time.Second,
			AttrTimeout:  time.Second,
		},
		Catalog: CatalogConfig{
			PoolSize:    4,
			SearchLimit: 1000,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from the TAPECAT_CONFIG environment
// variable, or returns the defaults when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Keys absent
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
// JSON is a subset of YAML, so JSONC files are stripped to JSON and
// decoded with the same yaml tags.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths and anchors relative paths at the root.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TAPECAT_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TAPECAT_ROOT"] = c.Paths.Root

	for _, field := range []*string{
		&c.Paths.Indexes,
		&c.Paths.Catalogs,
		&c.Paths.HashLists,
		&c.Paths.Logs,
		&c.Paths.Database,
		&c.Mount.Mountpoint,
	} {
		*field = c.underRoot(expandVars(*field, vars))
	}
	if c.Log.File != "" {
		c.Log.File = expandVars(c.Log.File, vars)
		if !filepath.IsAbs(c.Log.File) {
			c.Log.File = filepath.Join(c.Paths.Logs, c.Log.File)
		}
	}
}

func (c *Config) underRoot(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.Root, path)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}

	if c.Mount.Source != SourceSnapshots && c.Mount.Source != SourceCatalog {
		errs = append(errs, fmt.Errorf("mount.source must be one of: %v", []Source{SourceSnapshots, SourceCatalog}))
	}
	if c.Mount.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("mount.refresh_interval must not be negative"))
	}
	if c.Mount.SettleDelay <= 0 {
		errs = append(errs, fmt.Errorf("mount.settle_delay must be positive"))
	}

	if c.Catalog.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("catalog.pool_size must be at least 1"))
	}
	if c.Catalog.SearchLimit < 0 {
		errs = append(errs, fmt.Errorf("catalog.search_limit must not be negative"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	for volume, label := range c.Labels {
		if strings.TrimSpace(label) == "" {
			errs = append(errs, fmt.Errorf("labels.%s is empty", volume))
		}
		if strings.Contains(label, "/") {
			errs = append(errs, fmt.Errorf("labels.%s: %q contains '/'", volume, label))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the archive directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Indexes,
		c.Paths.Catalogs,
		c.Paths.HashLists,
		c.Paths.Logs,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
