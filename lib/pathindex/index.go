// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/bureau-foundation/tapecat/lib/bm25"
	"github.com/bureau-foundation/tapecat/lib/search"
)

var (
	// ErrNotFound is returned for a path with no node.
	ErrNotFound = errors.New("pathindex: no such file or directory")
	// ErrNotDirectory is returned when a directory operation names a
	// file, or when a path descends through a file.
	ErrNotDirectory = errors.New("pathindex: not a directory")
	// ErrDuplicateTape is returned when two tapes claim one label.
	ErrDuplicateTape = errors.New("pathindex: duplicate tape label")
)

// Kind distinguishes directories from files.
type Kind uint8

const (
	KindDirectory Kind = iota + 1
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Node is the metadata the index holds for one path. Times are zero
// when the source did not record them.
type Node struct {
	Kind Kind
	// Path is the normalized path including the tape label.
	Path string
	Name string
	// Tape is the label of the tape holding the node; empty for the
	// index root.
	Tape       string
	VolumeUUID string
	Generation uint64
	Size       int64

	ModifyTime   time.Time
	CreationTime time.Time
	ChangeTime   time.Time
	AccessTime   time.Time

	ReadOnly bool
	// Children counts the direct children of a directory.
	Children int
	// Hash is the content hash when the catalog knows one.
	Hash string
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool { return n.Kind == KindDirectory }

// Summary aggregates an index.
type Summary struct {
	Tapes       int
	Directories int
	Files       int
	Bytes       int64
}

// Source is the read surface the virtual filesystem needs. *Index
// implements it.
type Source interface {
	Lookup(path string) (Node, error)
	ListChildren(path string) ([]string, error)
	Tapes() []string
	Summary() Summary
}

type entry struct {
	node     Node
	children []string
}

// Index is an immutable path namespace.
type Index struct {
	entries map[string]*entry
	summary Summary

	searchOnce  sync.Once
	searchIndex *bm25.Index
}

// Empty returns an index holding only the root directory.
func Empty() *Index {
	return NewBuilder().Build()
}

// Normalize returns the canonical form of path: NFC, slash separated,
// without empty or "." segments and without leading or trailing
// slashes. The root is "".
func Normalize(path string) string {
	path = norm.NFC.String(path)
	segments := strings.Split(path, "/")
	kept := segments[:0]
	for _, segment := range segments {
		if segment == "" || segment == "." {
			continue
		}
		kept = append(kept, segment)
	}
	return strings.Join(kept, "/")
}

// Lookup returns the node at path.
func (x *Index) Lookup(path string) (Node, error) {
	e, err := x.find(path)
	if err != nil {
		return Node{}, err
	}
	return e.node, nil
}

func (x *Index) find(path string) (*entry, error) {
	path = Normalize(path)
	if e, ok := x.entries[path]; ok {
		return e, nil
	}
	// Distinguish "a/file/x" (descends through a file) from a plain
	// miss so callers can report ENOTDIR.
	for parent := path; ; {
		slash := strings.LastIndexByte(parent, '/')
		if slash < 0 {
			break
		}
		parent = parent[:slash]
		if e, ok := x.entries[parent]; ok {
			if e.node.Kind == KindFile {
				return nil, fmt.Errorf("%q: %w", path, ErrNotDirectory)
			}
			break
		}
	}
	return nil, fmt.Errorf("%q: %w", path, ErrNotFound)
}

// ListChildren returns the names of the direct children of the
// directory at path, sorted.
func (x *Index) ListChildren(path string) ([]string, error) {
	e, err := x.find(path)
	if err != nil {
		return nil, err
	}
	if e.node.Kind != KindDirectory {
		return nil, fmt.Errorf("%q: %w", e.node.Path, ErrNotDirectory)
	}
	return append([]string(nil), e.children...), nil
}

// Children returns the nodes of the direct children of the directory
// at path, in name order.
func (x *Index) Children(path string) ([]Node, error) {
	e, err := x.find(path)
	if err != nil {
		return nil, err
	}
	if e.node.Kind != KindDirectory {
		return nil, fmt.Errorf("%q: %w", e.node.Path, ErrNotDirectory)
	}
	nodes := make([]Node, len(e.children))
	for i, name := range e.children {
		nodes[i] = x.entries[joinPath(e.node.Path, name)].node
	}
	return nodes, nil
}

// Tapes returns the tape labels in the index, sorted.
func (x *Index) Tapes() []string {
	return append([]string(nil), x.entries[""].children...)
}

// Summary returns the index totals.
func (x *Index) Summary() Summary { return x.summary }

// Walk calls fn for the node at prefix and every node beneath it in
// pre-order, children in name order. Returning fs.SkipDir from fn for
// a directory skips its contents; any other error stops the walk and
// is returned.
func (x *Index) Walk(prefix string, fn func(Node) error) error {
	e, err := x.find(prefix)
	if err != nil {
		return err
	}
	err = x.walk(e, fn)
	if errors.Is(err, fs.SkipDir) {
		return nil
	}
	return err
}

func (x *Index) walk(e *entry, fn func(Node) error) error {
	if err := fn(e.node); err != nil {
		return err
	}
	for _, name := range e.children {
		child := x.entries[joinPath(e.node.Path, name)]
		err := x.walk(child, fn)
		if errors.Is(err, fs.SkipDir) && child.node.Kind == KindDirectory {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Search ranks file paths against a free-text query with BM25. The
// ranking index is built on first use. File names weigh three times
// as much as the directories above them.
func (x *Index) Search(query string, limit int) []Node {
	x.searchOnce.Do(func() {
		var documents []bm25.Document
		for path, e := range x.entries {
			if e.node.Kind != KindFile {
				continue
			}
			documents = append(documents, bm25.Document{Name: path, Fields: []bm25.Field{
				{Text: e.node.Name, Weight: 3},
				{Text: path, Weight: 1},
			}})
		}
		x.searchIndex = bm25.New(documents, search.Tokenize)
	})

	results := x.searchIndex.Search(query, limit)
	nodes := make([]Node, len(results))
	for i, result := range results {
		nodes[i] = x.entries[result.Name].node
	}
	return nodes
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func splitPath(path string) (parent, name string) {
	if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
		return path[:slash], path[slash+1:]
	}
	return "", path
}
