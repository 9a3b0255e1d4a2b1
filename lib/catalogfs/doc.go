// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalogfs serves the published path index as a read-only,
// metadata-only filesystem.
//
// [FS] answers the filesystem-shaped calls (attributes, listing, open,
// read and every mutating family) against whatever
// [pathindex.Publisher] it is given. Each call acquires the current
// index, answers from it, and releases it, so a refresh that swaps in
// a new index never disturbs a call in flight and never blocks one.
//
// Reads never return tape content. A file reads as a short text
// payload naming the tape that holds it and its real size; attribute
// calls report that real size. Every mutating call fails with
// [ErrReadOnly] before the path is even looked up.
//
// [Instance] owns the lifecycle: Unloaded, Loading, Serving,
// Refreshing and Unloading. A [Loader] builds each index. Two loaders
// exist: [SnapshotLoader] resolves LTFS index snapshots from a
// directory, and [CatalogLoader] projects the SQLite catalog. A load
// that fails for some tapes still publishes the rest and enumerates
// the failures in its [LoadReport]; a refresh keeps serving the
// previous version of any tape whose new snapshot cannot be used.
//
// [Mount] binds an [FS] to the kernel through go-fuse.
package catalogfs
