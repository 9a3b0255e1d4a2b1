// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv(ArchiveBaseVariable, "/srv/ltfs")
	cfg := Default()
	cfg.expandVariables()

	if cfg.Paths.Root != "/srv/ltfs" {
		t.Errorf("expected root=/srv/ltfs, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Indexes != "/srv/ltfs/indexes" {
		t.Errorf("expected indexes under root, got %s", cfg.Paths.Indexes)
	}
	if cfg.Paths.HashLists != "/srv/ltfs/mhl" {
		t.Errorf("expected hash lists under root, got %s", cfg.Paths.HashLists)
	}
	if cfg.Paths.Database != "/srv/ltfs/catalog.db" {
		t.Errorf("expected database=/srv/ltfs/catalog.db, got %s", cfg.Paths.Database)
	}
	if cfg.Mount.Source != SourceSnapshots {
		t.Errorf("expected source=snapshots, got %s", cfg.Mount.Source)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDefaultWithoutArchiveBase(t *testing.T) {
	t.Setenv(ArchiveBaseVariable, "")
	t.Setenv("HOME", "/home/operator")

	cfg := Default()
	if cfg.Paths.Root != "/home/operator/ltfs-archives" {
		t.Errorf("expected root under HOME, got %s", cfg.Paths.Root)
	}
}

func TestLoadWithoutConfigUsesDefaults(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	t.Setenv(ArchiveBaseVariable, "/archive")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Logs != "/archive/logs" {
		t.Errorf("expected logs=/archive/logs, got %s", cfg.Paths.Logs)
	}
}

func TestLoadWithConfigVariable(t *testing.T) {
	path := writeConfig(t, "tapecat.yaml", `
paths:
  root: /test/root
catalog:
  pool_size: 8
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Catalog.PoolSize != 8 {
		t.Errorf("expected pool_size=8, got %d", cfg.Catalog.PoolSize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Catalog.SearchLimit != 1000 {
		t.Errorf("expected default search_limit, got %d", cfg.Catalog.SearchLimit)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ARCHIVE_DISK", "/mnt/archive")
	path := writeConfig(t, "tapecat.yaml", `
paths:
  root: ${ARCHIVE_DISK:-/fallback}
  database: ${TAPECAT_ROOT}/db/catalog.db
  hash_lists: /elsewhere/mhl
mount:
  mountpoint: /mnt/tapes
  source: catalog
  allow_other: true
  refresh_interval: 5m
  settle_delay: 500ms
log:
  level: debug
  format: json
  file: tapecat.log
labels:
  6f1c2a4e-0000-4000-8000-000000000001: LTO001
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	checks := map[string][2]string{
		"root":       {cfg.Paths.Root, "/mnt/archive"},
		"database":   {cfg.Paths.Database, "/mnt/archive/db/catalog.db"},
		"hash_lists": {cfg.Paths.HashLists, "/elsewhere/mhl"},
		"indexes":    {cfg.Paths.Indexes, "/mnt/archive/indexes"},
		"mountpoint": {cfg.Mount.Mountpoint, "/mnt/tapes"},
		"log file":   {cfg.Log.File, "/mnt/archive/logs/tapecat.log"},
	}
	for name, check := range checks {
		if check[0] != check[1] {
			t.Errorf("%s = %q, want %q", name, check[0], check[1])
		}
	}
	if cfg.Mount.Source != SourceCatalog || !cfg.Mount.AllowOther {
		t.Errorf("mount = %+v", cfg.Mount)
	}
	if cfg.Mount.RefreshInterval != 5*time.Minute || cfg.Mount.SettleDelay != 500*time.Millisecond {
		t.Errorf("intervals = %v / %v", cfg.Mount.RefreshInterval, cfg.Mount.SettleDelay)
	}
	if cfg.Labels["6f1c2a4e-0000-4000-8000-000000000001"] != "LTO001" {
		t.Errorf("labels = %v", cfg.Labels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "tapecat.jsonc", `{
  // Archive lives on the NAS.
  "paths": {"root": "/nas/ltfs"},
  "mount": {
    "source": "catalog", /* serve the database */
  },
}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Paths.Root != "/nas/ltfs" || cfg.Mount.Source != SourceCatalog {
		t.Errorf("cfg = %+v / %+v", cfg.Paths, cfg.Mount)
	}
	if cfg.Mount.Mountpoint != "/nas/ltfs/mount" {
		t.Errorf("expected default mountpoint under the new root, got %s", cfg.Mount.Mountpoint)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("missing file: err = %v", err)
	}

	path := writeConfig(t, "broken.yaml", "paths: [unclosed\n")
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("malformed file: err = %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/ltfs",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/ltfs",
		},
		{
			input:    "${TAPECAT_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: "paths.root",
		},
		{
			name:    "unknown source",
			modify:  func(c *Config) { c.Mount.Source = "tape" },
			wantErr: "mount.source",
		},
		{
			name:    "zero settle delay",
			modify:  func(c *Config) { c.Mount.SettleDelay = 0 },
			wantErr: "mount.settle_delay",
		},
		{
			name:    "empty pool",
			modify:  func(c *Config) { c.Catalog.PoolSize = 0 },
			wantErr: "catalog.pool_size",
		},
		{
			name:    "invalid level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "label with slash",
			modify:  func(c *Config) { c.Labels = map[string]string{"vol": "a/b"} },
			wantErr: "contains '/'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Paths.Root = ""
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"paths.root", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	t.Setenv(ArchiveBaseVariable, filepath.Join(t.TempDir(), "archive"))
	cfg := Default()
	cfg.expandVariables()

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Indexes, cfg.Paths.Catalogs, cfg.Paths.HashLists, cfg.Paths.Logs} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
