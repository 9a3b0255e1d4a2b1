// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the tapecat binary.
//
// A [Command] tree dispatches on the first positional argument. Leaf
// commands declare their flags as a tagged params struct bound by
// [FlagsFromParams]; shared flag groups such as [Archive] implement
// [FlagBinder] and are embedded in each params struct that needs them.
//
// Commands receive a context cancelled on SIGINT/SIGTERM and a
// structured logger. They write results to the io.Writer their
// constructor was given, never to os.Stdout directly, so the whole tree
// can be exercised from tests.
package cli
