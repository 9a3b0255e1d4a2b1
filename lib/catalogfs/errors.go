// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalogfs

import (
	"context"
	"errors"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tapecat/lib/pathindex"
)

var (
	// ErrReadOnly is returned by every mutating call.
	ErrReadOnly = errors.New("catalogfs: read-only file system")
	// ErrIsDirectory is returned when a file operation names a
	// directory.
	ErrIsDirectory = errors.New("catalogfs: is a directory")
	// ErrNotServing is returned while no index is being served.
	ErrNotServing = errors.New("catalogfs: not serving")
)

// Errno maps an error from FS to the errno the kernel should see.
// Unrecognized errors map to EIO.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrReadOnly):
		return unix.EROFS
	case errors.Is(err, pathindex.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, pathindex.ErrNotDirectory):
		return unix.ENOTDIR
	case errors.Is(err, ErrIsDirectory):
		return unix.EISDIR
	case errors.Is(err, ErrNotServing):
		return unix.EAGAIN
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return unix.EINTR
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
