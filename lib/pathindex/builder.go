// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// TapeInfo describes a tape's top-level directory.
type TapeInfo struct {
	Label      string
	VolumeUUID string
	Generation uint64
	// UpdateTime becomes the tape directory's modification time.
	UpdateTime time.Time
}

// FileAttributes describes a file known only from the catalog.
type FileAttributes struct {
	// Path is relative to the tape root.
	Path       string
	Size       int64
	ModifyTime time.Time
	Hash       string
}

// Builder accumulates tapes into a new Index. A Builder is not safe
// for concurrent use and must not be used after Build.
type Builder struct {
	entries  map[string]*entry
	children map[string]map[string]struct{}
}

// NewBuilder returns a builder holding only the root directory.
func NewBuilder() *Builder {
	b := &Builder{
		entries:  make(map[string]*entry),
		children: make(map[string]map[string]struct{}),
	}
	b.entries[""] = &entry{node: Node{Kind: KindDirectory, ReadOnly: true}}
	return b
}

// HasTape reports whether label is already in use.
func (b *Builder) HasTape(label string) bool {
	_, ok := b.entries[Normalize(label)]
	return ok
}

// AddTape creates the top-level directory for a tape.
func (b *Builder) AddTape(info TapeInfo) error {
	label := Normalize(info.Label)
	if label == "" || strings.ContainsRune(label, '/') {
		return fmt.Errorf("pathindex: invalid tape label %q", info.Label)
	}
	if b.HasTape(label) {
		return fmt.Errorf("%q: %w", label, ErrDuplicateTape)
	}
	b.put(Node{
		Kind:       KindDirectory,
		Path:       label,
		Name:       label,
		Tape:       label,
		VolumeUUID: info.VolumeUUID,
		Generation: info.Generation,
		ModifyTime: info.UpdateTime,
		ChangeTime: info.UpdateTime,
		ReadOnly:   true,
	})
	return nil
}

// AddSnapshot adds a decoded snapshot as the tape labeled label.
func (b *Builder) AddSnapshot(label string, snapshot *ltfsindex.Snapshot) error {
	info := TapeInfo{
		Label:      label,
		VolumeUUID: snapshot.Header.VolumeUUID,
		Generation: snapshot.Header.Generation,
	}
	if snapshot.Header.UpdateTime != nil {
		info.UpdateTime = *snapshot.Header.UpdateTime
	}
	if err := b.AddTape(info); err != nil {
		return err
	}
	label = Normalize(label)

	tape := b.entries[label]
	root := snapshot.Root()
	tape.node.CreationTime = timeOf(root.Creation)
	tape.node.AccessTime = timeOf(root.Access)

	for _, directory := range snapshot.Directories() {
		if directory.Path == "" {
			continue
		}
		b.put(Node{
			Kind:         KindDirectory,
			Path:         joinPath(label, directory.Path),
			Name:         directory.Name,
			Tape:         label,
			VolumeUUID:   info.VolumeUUID,
			Generation:   info.Generation,
			ModifyTime:   timeOf(directory.Modify),
			CreationTime: timeOf(directory.Creation),
			ChangeTime:   timeOf(directory.Change),
			AccessTime:   timeOf(directory.Access),
			ReadOnly:     directory.ReadOnly,
		})
	}
	for _, file := range snapshot.Files() {
		b.put(Node{
			Kind:         KindFile,
			Path:         joinPath(label, file.Path),
			Name:         file.Name,
			Tape:         label,
			VolumeUUID:   info.VolumeUUID,
			Generation:   info.Generation,
			Size:         int64(file.Size),
			ModifyTime:   timeOf(file.Modify),
			CreationTime: timeOf(file.Creation),
			ChangeTime:   timeOf(file.Change),
			AccessTime:   timeOf(file.Access),
			ReadOnly:     file.ReadOnly,
		})
	}
	return nil
}

// AddFile adds one catalog file to the tape labeled label, creating
// the tape and any missing parent directories. Adding a path twice
// replaces the earlier file.
func (b *Builder) AddFile(label string, attributes FileAttributes) error {
	label = Normalize(label)
	if !b.HasTape(label) {
		if err := b.AddTape(TapeInfo{Label: label}); err != nil {
			return err
		}
	}
	tape := b.entries[label].node

	relative := Normalize(attributes.Path)
	if relative == "" {
		return fmt.Errorf("pathindex: empty file path on tape %q", label)
	}
	path := joinPath(label, relative)
	if err := b.ensureDirectory(tape, parentOf(path)); err != nil {
		return err
	}
	if existing, ok := b.entries[path]; ok && existing.node.Kind == KindDirectory {
		return fmt.Errorf("pathindex: file %q collides with a directory", path)
	}
	_, name := splitPath(path)
	b.put(Node{
		Kind:       KindFile,
		Path:       path,
		Name:       name,
		Tape:       label,
		VolumeUUID: tape.VolumeUUID,
		Generation: tape.Generation,
		Size:       attributes.Size,
		ModifyTime: attributes.ModifyTime,
		ReadOnly:   true,
		Hash:       attributes.Hash,
	})
	return nil
}

// ensureDirectory creates path and its ancestors as implicit
// directories. It fails when any of them is a file.
func (b *Builder) ensureDirectory(tape Node, path string) error {
	existing, ok := b.entries[path]
	if ok {
		if existing.node.Kind != KindDirectory {
			return fmt.Errorf("%q: %w", path, ErrNotDirectory)
		}
		return nil
	}
	if err := b.ensureDirectory(tape, parentOf(path)); err != nil {
		return err
	}
	_, name := splitPath(path)
	b.put(Node{
		Kind:       KindDirectory,
		Path:       path,
		Name:       name,
		Tape:       tape.Tape,
		VolumeUUID: tape.VolumeUUID,
		Generation: tape.Generation,
		ModifyTime: tape.ModifyTime,
		ReadOnly:   true,
	})
	return nil
}

// CopyTape carries the tape labeled label over from a previously
// built index unchanged. A refresh uses it to keep serving a tape
// whose new snapshot could not be loaded.
func (b *Builder) CopyTape(from *Index, label string) error {
	label = Normalize(label)
	if b.HasTape(label) {
		return fmt.Errorf("%q: %w", label, ErrDuplicateTape)
	}
	top, ok := from.entries[label]
	if !ok || label == "" {
		return fmt.Errorf("%q: %w", label, ErrNotFound)
	}
	return from.walk(top, func(node Node) error {
		b.put(node)
		return nil
	})
}

// put stores node and links it into its parent. The parent must
// already exist.
func (b *Builder) put(node Node) {
	b.entries[node.Path] = &entry{node: node}
	parent, name := splitPath(node.Path)
	set := b.children[parent]
	if set == nil {
		set = make(map[string]struct{})
		b.children[parent] = set
	}
	set[name] = struct{}{}
}

// Build finalizes the index.
func (b *Builder) Build() *Index {
	index := &Index{entries: b.entries}
	for parent, set := range b.children {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		e := b.entries[parent]
		e.children = names
		e.node.Children = len(names)
	}
	for path, e := range b.entries {
		switch {
		case path == "":
		case e.node.Kind == KindFile:
			index.summary.Files++
			index.summary.Bytes += e.node.Size
		case e.node.Path == e.node.Tape:
			index.summary.Tapes++
		default:
			index.summary.Directories++
		}
	}
	b.entries = nil
	b.children = nil
	return index
}

func parentOf(path string) string {
	parent, _ := splitPath(path)
	return parent
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
