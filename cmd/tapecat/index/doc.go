// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package index implements the "tapecat index" command group, which
// inspects LTFS index snapshots without touching the catalog: showing
// one snapshot, resolving a directory of captures to the authoritative
// generation of each volume, and diffing two generations.
package index
