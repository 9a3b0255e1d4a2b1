// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for tapecat packages.
//
// The channel helpers wrap the select-with-timeout pattern so tests
// never hang on a missed signal. The index fixture builder renders
// LTFS index documents from a flat file list, so every package that
// consumes snapshots can describe a tape in a few lines instead of
// embedding XML.
package testutil
