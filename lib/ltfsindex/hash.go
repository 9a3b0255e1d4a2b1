// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

// treeHashKey is the BLAKE3 key for structural tree hashes: the ASCII
// domain name zero-padded to 32 bytes. Changing it invalidates every
// cached hash.
var treeHashKey = [32]byte{
	't', 'a', 'p', 'e', 'c', 'a', 't', '.', 'l', 't', 'f', 's', 'i', 'n', 'd', 'e',
	'x', '.', 't', 'r', 'e', 'e', '.', 'v', '1', 0, 0, 0, 0, 0, 0, 0,
}

// TreeHash returns a digest of the snapshot's tree: every path with
// its kind, size, read-only flag, fileuid, modify time and extents.
// Header fields are excluded, so two captures of the same generation
// hash identically even if one was re-exported with a new update
// time. Children are visited in sorted order, so document order does
// not affect the result.
func (s *Snapshot) TreeHash() [32]byte {
	s.hashOnce.Do(func() {
		hasher, err := blake3.NewKeyed(treeHashKey[:])
		if err != nil {
			panic("ltfsindex: BLAKE3 keyed hash initialization failed: " + err.Error())
		}
		s.hashDirectory(hasher, 0)
		copy(s.hash[:], hasher.Sum(nil))
	})
	return s.hash
}

// FormatTreeHash renders a tree hash as lower-case hex.
func FormatTreeHash(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

func (s *Snapshot) hashDirectory(hasher hash.Hash, index int) {
	directory := &s.directories[index]
	writeRecord(hasher, 'd', directory.Path)
	writeBool(hasher, directory.ReadOnly)

	files := append([]int(nil), directory.Files...)
	sort.Slice(files, func(i, j int) bool { return s.files[files[i]].Name < s.files[files[j]].Name })
	for _, fileIndex := range files {
		file := &s.files[fileIndex]
		writeRecord(hasher, 'f', file.Path)
		writeUint(hasher, file.Size)
		writeBool(hasher, file.ReadOnly)
		writeString(hasher, file.UID)
		writeString(hasher, file.Symlink)
		if file.Modify != nil {
			writeUint(hasher, uint64(file.Modify.UnixNano()))
		} else {
			writeUint(hasher, 0)
		}
		writeUint(hasher, uint64(len(file.Extents)))
		for _, extent := range file.Extents {
			writeString(hasher, string(extent.Partition))
			writeUint(hasher, extent.StartBlock)
			writeUint(hasher, extent.ByteOffset)
			writeUint(hasher, extent.ByteCount)
		}
	}

	directories := append([]int(nil), directory.Directories...)
	sort.Slice(directories, func(i, j int) bool {
		return s.directories[directories[i]].Name < s.directories[directories[j]].Name
	})
	for _, childIndex := range directories {
		s.hashDirectory(hasher, childIndex)
	}
}

func writeRecord(hasher hash.Hash, kind byte, path string) {
	hasher.Write([]byte{kind})
	writeString(hasher, path)
}

// writeString length-prefixes value so adjacent fields cannot run
// together.
func writeString(hasher hash.Hash, value string) {
	writeUint(hasher, uint64(len(value)))
	hasher.Write([]byte(value))
}

func writeUint(hasher hash.Hash, value uint64) {
	var buffer [8]byte
	binary.BigEndian.PutUint64(buffer[:], value)
	hasher.Write(buffer[:])
}

func writeBool(hasher hash.Hash, value bool) {
	if value {
		hasher.Write([]byte{1})
	} else {
		hasher.Write([]byte{0})
	}
}
