// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which tapecat build is running. "tapecat
// version" prints it, and exported hash lists record it as their
// creator tool.
//
// Release builds inject [Version], [GitCommit], [GitDirty] and
// [BuildTime] with -ldflags -X. Other builds fall back to the VCS
// stamp the Go toolchain embeds, so a plain "go install" still names
// its revision.
package version
