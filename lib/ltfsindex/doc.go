// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ltfsindex decodes LTFS index snapshots into an immutable
// in-memory tree.
//
// An LTFS volume rewrites its index at every sync point; each write is
// a "generation" identified by the volume UUID, a monotonically
// increasing generation number, and the partition it was written to.
// A snapshot is one of those index documents captured to disk, usually
// with ltfsck or by copying the index out of a mounted volume.
//
// Parse streams the XML token by token, so multi-gigabyte indexes for
// volumes with millions of files decode without holding the document
// in memory. Directories and files are stored in two flat arenas and
// reference each other by index; the arena order is pre-order, which
// is also the order of the Files and Directories projections.
//
// Validation distinguishes two failure classes. A document that is not
// well-formed, or whose fields do not parse (numbers, timestamps,
// partition tags, the volume UUID), fails the whole load with a
// *ParseError carrying the element path and input position. A
// well-formed document whose tree breaks an LTFS invariant (extents
// that do not tile the file, duplicate or illegal names) still loads:
// the offending node is left out and a *StructuralError is recorded in
// Snapshot.Problems.
//
// Open accepts plain captures as well as gzip (.gz), zstd (.zst) and
// LZ4 frame (.lz4) compressed ones.
package ltfsindex
