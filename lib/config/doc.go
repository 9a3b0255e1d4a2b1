// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for tapecat.
//
// Configuration is loaded from a single file specified by either the
// TAPECAT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Without a file,
// commands run on [Default], whose archive root follows the
// LTFS_ARCHIVE_BASE environment variable and otherwise lives at
// ~/ltfs-archives.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML. Both use the same keys.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${TAPECAT_ROOT}, and ${VAR:-default} patterns are expanded.
// Relative paths below the root are resolved against it.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Mount, Catalog, Log, Labels
//   - [Default] -- returns a Config with the archive layout defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other tapecat packages.
package config
