// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/tapecat/lib/search"
)

// ErrNotFound is returned when a named tape does not exist.
var ErrNotFound = errors.New("catalog: not found")

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DuplicateKeyError records an ingest that replaced the content of an
// existing (tape, path) row.
type DuplicateKeyError struct {
	Tape string
	Path string
	Old  search.Entry
	New  search.Entry
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("catalog: %s:%s already cataloged (size %d, hash %q); replaced with size %d, hash %q",
		e.Tape, e.Path, e.Old.Size, e.Old.Hash, e.New.Size, e.New.Hash)
}
