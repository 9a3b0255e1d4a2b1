// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"fmt"
	"sync"
	"time"
)

// Namespace is the XML namespace of LTFS index documents.
const Namespace = "http://www.ibm.com/xmlns/ltfs"

// Partition identifies an LTFS partition. LTFS volumes have two: the
// index partition "a" and the data partition "b".
type Partition string

const (
	PartitionPrimary Partition = "a"
	PartitionData    Partition = "b"
)

// ParsePartition validates a partition tag.
func ParsePartition(tag string) (Partition, error) {
	switch Partition(tag) {
	case PartitionPrimary, PartitionData:
		return Partition(tag), nil
	default:
		return "", fmt.Errorf("invalid partition tag %q (want \"a\" or \"b\")", tag)
	}
}

// Rank orders partitions for generation tie-breaking: an index on the
// data partition outranks one on the primary partition with the same
// generation number.
func (p Partition) Rank() int {
	if p == PartitionData {
		return 1
	}
	return 0
}

func (p Partition) String() string { return string(p) }

// Header is the volume-level metadata of one index generation.
type Header struct {
	// Version is the LTFS format version from the root element.
	Version string
	// VolumeUUID is the canonical lower-case form of the volume UUID.
	VolumeUUID string
	Generation uint64
	// UpdateTime is nil when the document carries no update time.
	UpdateTime *time.Time
	// Location is the partition the index was written to. Indexes
	// without a location element are treated as primary-partition
	// indexes, the lowest priority on a tie.
	Location      Partition
	LocationBlock uint64
	Creator       string
	Comment       string
	// HighestFileUID is informational; zero when absent.
	HighestFileUID uint64
}

// Times holds the optional LTFS timestamps of a node. Nil fields were
// absent from the document.
type Times struct {
	Creation *time.Time
	Change   *time.Time
	Modify   *time.Time
	Access   *time.Time
	Backup   *time.Time
}

// Extent is one contiguous run of file bytes on the medium.
type Extent struct {
	// FileOffset is the offset within the file where this extent's
	// bytes begin. When the document omits it, the decoder fills in
	// the running sum of preceding extents.
	FileOffset uint64
	Partition  Partition
	StartBlock uint64
	ByteOffset uint64
	ByteCount  uint64
}

// File is a regular file (or symlink) in a snapshot.
type File struct {
	Name string
	// Path is relative to the volume root, slash separated, with no
	// leading slash.
	Path     string
	Parent   int
	Size     uint64
	ReadOnly bool
	// UID is the LTFS fileuid as written; empty when absent.
	UID     string
	Symlink string
	Times
	Extents []Extent
}

// Directory is a directory in a snapshot. Directories and Files hold
// arena indices of the direct children, in document order.
type Directory struct {
	Name string
	// Path is "" for the volume root.
	Path     string
	Parent   int
	ReadOnly bool
	UID      string
	Times
	Directories []int
	Files       []int
}

// Snapshot is one decoded index generation. A Snapshot is immutable
// once returned and safe for concurrent readers.
type Snapshot struct {
	Header Header
	// Source names where the snapshot came from, usually a file path.
	Source string
	// Problems lists nodes excluded by validation.
	Problems []*StructuralError

	directories []Directory
	files       []File

	filesOnce  sync.Once
	fileView   []*File
	dirsOnce   sync.Once
	dirView    []*Directory
	totalBytes uint64
	hashOnce   sync.Once
	hash       [32]byte
}

// Root returns the volume root directory.
func (s *Snapshot) Root() *Directory { return &s.directories[0] }

// Directory returns the directory at arena index i.
func (s *Snapshot) Directory(i int) *Directory { return &s.directories[i] }

// File returns the file at arena index i.
func (s *Snapshot) File(i int) *File { return &s.files[i] }

// FileCount returns the number of files in the snapshot.
func (s *Snapshot) FileCount() int { return len(s.files) }

// DirectoryCount returns the number of directories, including the root.
func (s *Snapshot) DirectoryCount() int { return len(s.directories) }

// Files returns every file in pre-order. The slice is computed once
// and shared; callers must not modify it.
func (s *Snapshot) Files() []*File {
	s.filesOnce.Do(func() {
		s.fileView = make([]*File, len(s.files))
		for i := range s.files {
			s.fileView[i] = &s.files[i]
			s.totalBytes += s.files[i].Size
		}
	})
	return s.fileView
}

// Directories returns every directory in pre-order, root first.
func (s *Snapshot) Directories() []*Directory {
	s.dirsOnce.Do(func() {
		s.dirView = make([]*Directory, len(s.directories))
		for i := range s.directories {
			s.dirView[i] = &s.directories[i]
		}
	})
	return s.dirView
}

// TotalBytes returns the sum of all file sizes.
func (s *Snapshot) TotalBytes() uint64 {
	s.Files()
	return s.totalBytes
}
