// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathindex is the in-memory namespace the virtual filesystem
// serves: every cataloged tape appears as a top-level directory named
// by its label, with that tape's tree beneath it.
//
// An [Index] is immutable once [Builder.Build] returns it, so any
// number of goroutines may read it without locks. Changes produce a
// new Index, built off to the side and handed to a [Publisher], which
// swaps it in atomically and tells the caller when the last reader of
// the superseded index has let go.
//
// Paths are slash separated and relative to the index root, with the
// tape label as the first segment. [Normalize] produces the canonical
// form (NFC, no empty segments, no leading or trailing slash); every
// lookup normalizes its argument, so "/LTO001//photos/" and
// "LTO001/photos" name the same directory.
//
// Tape labels come from a [Labeler]. Configured labels win, then
// labels the catalog has recorded, then the first eight hex digits of
// the volume UUID.
package pathindex
