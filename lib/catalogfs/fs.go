// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalogfs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/tapecat/lib/pathindex"
)

// BlockSize is the block size reported by attribute and statfs calls.
const BlockSize = 4096

const (
	directoryMode fs.FileMode = fs.ModeDir | 0o555
	fileMode      fs.FileMode = 0o444
)

// Attributes is the result of GetAttributes.
type Attributes struct {
	Mode fs.FileMode
	// Size is the real size recorded for the file, not the length
	// of its read payload. Directories report BlockSize.
	Size  int64
	Links uint32

	ModifyTime   time.Time
	ChangeTime   time.Time
	AccessTime   time.Time
	CreationTime time.Time

	// Tape is the label of the tape holding the node; empty for the
	// root.
	Tape string
}

// IsDir reports whether the attributes describe a directory.
func (a Attributes) IsDir() bool { return a.Mode.IsDir() }

// DirEntry is one entry of ListDirectory.
type DirEntry struct {
	Name string
	Mode fs.FileMode
}

// Statfs summarizes the served index as filesystem statistics.
type Statfs struct {
	BlockSize uint32
	// Blocks is the recorded bytes of every file, in BlockSize
	// units. Nothing is ever free.
	Blocks uint64
	// Files counts every node including the root.
	Files uint64
	Tapes int
}

// MutateOp names a mutating call family.
type MutateOp string

const (
	OpCreate      MutateOp = "create"
	OpWrite       MutateOp = "write"
	OpTruncate    MutateOp = "truncate"
	OpSetattr     MutateOp = "setattr"
	OpMkdir       MutateOp = "mkdir"
	OpMknod       MutateOp = "mknod"
	OpUnlink      MutateOp = "unlink"
	OpRmdir       MutateOp = "rmdir"
	OpRename      MutateOp = "rename"
	OpLink        MutateOp = "link"
	OpSymlink     MutateOp = "symlink"
	OpSetxattr    MutateOp = "setxattr"
	OpRemovexattr MutateOp = "removexattr"
)

// writeFlags are the open flags that imply modification.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// FS answers filesystem calls from the index currently held by a
// publisher. It is safe for concurrent use.
type FS struct {
	publisher *pathindex.Publisher
	serving   func() bool
	logger    *slog.Logger
}

// NewFS returns an FS over publisher. serving, when non-nil, gates
// every call: while it reports false, calls fail with ErrNotServing.
func NewFS(publisher *pathindex.Publisher, serving func() bool, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FS{publisher: publisher, serving: serving, logger: logger}
}

// view runs fn against the current index with a reference held.
func (f *FS) view(fn func(source pathindex.Source) error) error {
	if f.serving != nil && !f.serving() {
		return ErrNotServing
	}
	published := f.publisher.Acquire()
	defer published.Release()
	return fn(published.Index)
}

// GetAttributes returns the attributes of path.
func (f *FS) GetAttributes(path string) (Attributes, error) {
	var attributes Attributes
	err := f.view(func(source pathindex.Source) error {
		node, err := source.Lookup(path)
		if err != nil {
			return err
		}
		attributes = attributesOf(node)
		return nil
	})
	return attributes, err
}

func attributesOf(node pathindex.Node) Attributes {
	attributes := Attributes{
		ModifyTime:   node.ModifyTime,
		ChangeTime:   node.ChangeTime,
		AccessTime:   node.AccessTime,
		CreationTime: node.CreationTime,
		Tape:         node.Tape,
	}
	if attributes.ChangeTime.IsZero() {
		attributes.ChangeTime = attributes.ModifyTime
	}
	if attributes.AccessTime.IsZero() {
		attributes.AccessTime = attributes.ModifyTime
	}
	if node.IsDir() {
		attributes.Mode = directoryMode
		attributes.Size = BlockSize
		attributes.Links = 2
	} else {
		attributes.Mode = fileMode
		attributes.Size = node.Size
		attributes.Links = 1
	}
	return attributes
}

// ListDirectory returns the entries of the directory at path, sorted
// by name.
func (f *FS) ListDirectory(path string) ([]DirEntry, error) {
	var entries []DirEntry
	err := f.view(func(source pathindex.Source) error {
		names, err := source.ListChildren(path)
		if err != nil {
			return err
		}
		base := pathindex.Normalize(path)
		entries = make([]DirEntry, 0, len(names))
		for _, name := range names {
			child := name
			if base != "" {
				child = base + "/" + name
			}
			node, err := source.Lookup(child)
			if err != nil {
				// The index is immutable; a listed child always
				// resolves.
				return fmt.Errorf("catalogfs: listed child %q: %w", child, err)
			}
			entries = append(entries, DirEntry{Name: name, Mode: attributesOf(node).Mode})
		}
		return nil
	})
	return entries, err
}

// Open checks that path can be opened with flags. Any flag implying
// modification fails with ErrReadOnly whether or not path exists.
func (f *FS) Open(path string, flags int) error {
	if flags&writeFlags != 0 {
		return f.Mutate(OpWrite, path)
	}
	return f.view(func(source pathindex.Source) error {
		node, err := source.Lookup(path)
		if err != nil {
			return err
		}
		if node.IsDir() {
			return fmt.Errorf("%s: %w", pathindex.Normalize(path), ErrIsDirectory)
		}
		return nil
	})
}

// Read returns up to size bytes of path's payload starting at offset.
// The payload is a notice naming the tape that holds the file.
func (f *FS) Read(path string, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("catalogfs: invalid read range offset %d size %d", offset, size)
	}
	var data []byte
	err := f.view(func(source pathindex.Source) error {
		node, err := source.Lookup(path)
		if err != nil {
			return err
		}
		if node.IsDir() {
			return fmt.Errorf("%s: %w", pathindex.Normalize(path), ErrIsDirectory)
		}
		payload := Placeholder(node)
		if offset >= int64(len(payload)) {
			return nil
		}
		end := min(offset+int64(size), int64(len(payload)))
		data = payload[offset:end]
		return nil
	})
	return data, err
}

// Placeholder returns the read payload of a file node.
func Placeholder(node pathindex.Node) []byte {
	return fmt.Appendf(nil, "[File is on tape: %s]\nSize: %s bytes\nMount tape %s to access this file.\n",
		node.Tape, humanize.Comma(node.Size), node.Tape)
}

// Mutate rejects a mutating call. The path is not consulted.
func (f *FS) Mutate(op MutateOp, path string) error {
	f.logger.Debug("rejected mutating call", "op", string(op), "path", path)
	return fmt.Errorf("%s %s: %w", op, path, ErrReadOnly)
}

// Statfs reports filesystem statistics for the served index.
func (f *FS) Statfs() (Statfs, error) {
	var stats Statfs
	err := f.view(func(source pathindex.Source) error {
		summary := source.Summary()
		stats = Statfs{
			BlockSize: BlockSize,
			Blocks:    uint64((summary.Bytes + BlockSize - 1) / BlockSize),
			Files:     uint64(summary.Files + summary.Directories + summary.Tapes + 1),
			Tapes:     summary.Tapes,
		}
		return nil
	})
	return stats, err
}
