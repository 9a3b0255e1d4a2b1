// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// assemble converts the raw document tree into the snapshot arenas.
// Nodes that violate tree invariants are dropped and recorded as
// problems; their siblings are unaffected. Arena order is pre-order
// with each directory's files ahead of its subdirectories.
func (p *parser) assemble() *Snapshot {
	snapshot := &Snapshot{Header: p.header, Source: p.source}
	root := &p.dirs[p.root]
	snapshot.directories = append(snapshot.directories, Directory{
		Name:     norm.NFC.String(root.name),
		Path:     "",
		Parent:   -1,
		ReadOnly: root.readOnly,
		UID:      root.uid,
		Times:    root.times,
	})
	p.assembleDirectory(snapshot, p.root, 0)
	return snapshot
}

func (p *parser) assembleDirectory(snapshot *Snapshot, rawIndex, index int) {
	raw := &p.dirs[rawIndex]
	parentPath := snapshot.directories[index].Path
	seen := make(map[string]bool, len(raw.files)+len(raw.dirs))

	for _, fileIndex := range raw.files {
		file := &p.files[fileIndex]
		name := norm.NFC.String(file.name)
		path := joinPath(parentPath, name)
		if reason := checkName(name, seen); reason != "" {
			snapshot.problem(path, reason)
			continue
		}
		extents, reason := tileExtents(file)
		if reason != "" {
			snapshot.problem(path, reason)
			continue
		}
		snapshot.files = append(snapshot.files, File{
			Name:     name,
			Path:     path,
			Parent:   index,
			Size:     file.size,
			ReadOnly: file.readOnly,
			UID:      file.uid,
			Symlink:  file.symlink,
			Times:    file.times,
			Extents:  extents,
		})
		snapshot.directories[index].Files = append(snapshot.directories[index].Files, len(snapshot.files)-1)
	}

	for _, childRaw := range raw.dirs {
		child := &p.dirs[childRaw]
		name := norm.NFC.String(child.name)
		path := joinPath(parentPath, name)
		if reason := checkName(name, seen); reason != "" {
			snapshot.problem(path, reason+" (directory and its contents excluded)")
			continue
		}
		childIndex := len(snapshot.directories)
		snapshot.directories = append(snapshot.directories, Directory{
			Name:     name,
			Path:     path,
			Parent:   index,
			ReadOnly: child.readOnly,
			UID:      child.uid,
			Times:    child.times,
		})
		snapshot.directories[index].Directories = append(snapshot.directories[index].Directories, childIndex)
		p.assembleDirectory(snapshot, childRaw, childIndex)
	}
}

func (s *Snapshot) problem(path, reason string) {
	s.Problems = append(s.Problems, &StructuralError{Source: s.Source, Path: path, Reason: reason})
}

// checkName validates a child name and claims it in seen. Names are
// compared after NFC normalization and are case-sensitive.
func checkName(name string, seen map[string]bool) string {
	switch {
	case name == "":
		return "empty name"
	case name == "." || name == "..":
		return "reserved name"
	case strings.ContainsRune(name, '/'):
		return "name contains '/'"
	case strings.ContainsRune(name, 0):
		return "name contains NUL"
	case seen[name]:
		return "duplicate name in directory"
	}
	seen[name] = true
	return ""
}

// tileExtents checks that the extents of file cover [0, size) exactly
// once, in order, and fills in file offsets the document left out.
func tileExtents(file *rawFile) ([]Extent, string) {
	if len(file.extents) == 0 {
		if file.size != 0 {
			return nil, fmt.Sprintf("length is %d but file has no extents", file.size)
		}
		return nil, ""
	}
	extents := make([]Extent, 0, len(file.extents))
	var covered uint64
	for i, raw := range file.extents {
		if raw.hasFileOffset && raw.FileOffset != covered {
			if raw.FileOffset > covered {
				return nil, fmt.Sprintf("gap before extent %d: starts at file offset %d, previous extents end at %d", i, raw.FileOffset, covered)
			}
			return nil, fmt.Sprintf("extent %d overlaps: starts at file offset %d, previous extents end at %d", i, raw.FileOffset, covered)
		}
		extent := raw.Extent
		extent.FileOffset = covered
		covered += raw.ByteCount
		extents = append(extents, extent)
	}
	if covered != file.size {
		return nil, fmt.Sprintf("extents cover %d bytes but length is %d", covered, file.size)
	}
	return extents, ""
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Rebuild reconstructs a snapshot from a flat file list, creating the
// directories each path implies. Every file must carry its full Path;
// Name, Parent and extent file offsets are recomputed. Files that
// collide with another file or an implied directory are reported in
// Problems like any other structural violation.
func Rebuild(header Header, source, volumeName string, files []*File) *Snapshot {
	p := &parser{source: source, header: header, root: 0}
	p.dirs = append(p.dirs, rawDirectory{name: volumeName})
	directories := map[string]int{"": 0}

	ensure := func(path string) int {
		index, ok := directories[path]
		if ok {
			return index
		}
		parent := 0
		start := 0
		for start <= len(path) {
			end := strings.IndexByte(path[start:], '/')
			if end < 0 {
				end = len(path)
			} else {
				end += start
			}
			prefix := path[:end]
			existing, ok := directories[prefix]
			if !ok {
				existing = len(p.dirs)
				p.dirs = append(p.dirs, rawDirectory{name: path[start:end]})
				p.dirs[parent].dirs = append(p.dirs[parent].dirs, existing)
				directories[prefix] = existing
			}
			parent = existing
			start = end + 1
		}
		return parent
	}

	for _, file := range files {
		directory, name := "", file.Path
		if slash := strings.LastIndexByte(file.Path, '/'); slash >= 0 {
			directory, name = file.Path[:slash], file.Path[slash+1:]
		}
		parent := ensure(directory)
		raw := rawFile{
			name:     name,
			size:     file.Size,
			readOnly: file.ReadOnly,
			uid:      file.UID,
			symlink:  file.Symlink,
			times:    file.Times,
		}
		for _, extent := range file.Extents {
			raw.extents = append(raw.extents, rawExtent{Extent: extent})
		}
		p.files = append(p.files, raw)
		p.dirs[parent].files = append(p.dirs[parent].files, len(p.files)-1)
	}
	return p.assemble()
}
