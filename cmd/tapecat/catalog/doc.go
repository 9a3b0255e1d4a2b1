// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog implements the "tapecat catalog" command group:
// ingesting LTFS index snapshots and MHL hash lists into the catalog
// database, querying it (glob, full-text, fuzzy, content hash,
// duplicates), and administering its tapes.
//
// Every command opens the configuration named by --config (or
// TAPECAT_CONFIG), opens the catalog at paths.database, and writes its
// result to the writer passed to [Command]. With --json the result is
// written as JSON instead of a table.
package catalog
