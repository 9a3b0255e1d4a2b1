// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import "fmt"

// ParseError reports a snapshot that could not be decoded. Element is
// the slash-separated path of the element being read when the failure
// occurred (for example "ltfsindex/directory/contents/file/length").
// Line and Column are 1-based; zero means the position is unknown.
type ParseError struct {
	Source  string
	Element string
	Line    int
	Column  int
	Err     error
}

func (e *ParseError) Error() string {
	location := e.Source
	if location == "" {
		location = "<input>"
	}
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", location, e.Line, e.Column)
	}
	if e.Element != "" {
		return fmt.Sprintf("ltfsindex: %s: <%s>: %v", location, e.Element, e.Err)
	}
	return fmt.Sprintf("ltfsindex: %s: %v", location, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StructuralError reports a node that decoded cleanly but violates an
// LTFS tree invariant. The node (and, for a directory, everything
// beneath it) is excluded from the snapshot.
type StructuralError struct {
	Source string
	// Path is the offending node's path relative to the volume root,
	// or the parent path plus the raw name when the name itself is
	// the problem.
	Path   string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("ltfsindex: %s: %q: %s", e.Source, e.Path, e.Reason)
}
