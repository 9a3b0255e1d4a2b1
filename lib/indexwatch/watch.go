// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package indexwatch reports changes to LTFS index snapshots in a
// directory so a mounted catalog can refresh when a capture lands.
//
// Watch uses inotify directly. Only names that ltfsindex recognizes as
// snapshots produce events, so editor swap files, the header cache and
// partially written temporaries are ignored. A snapshot is reported
// once it is closed after writing or renamed into place, never while
// it is still being written.
package indexwatch

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// Op is the kind of change an Event reports.
type Op uint8

const (
	// Changed means the snapshot was written or moved into the
	// directory.
	Changed Op = iota + 1
	// Removed means the snapshot was deleted or moved out.
	Removed
)

func (o Op) String() string {
	switch o {
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Event is one change to a snapshot file. Name is relative to the
// watched directory. A Changed event with an empty Name means the
// kernel queue overflowed and any snapshot may have changed.
type Event struct {
	Name string
	Op   Op
}

const watchMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_DELETE | unix.IN_MOVED_FROM

// Watch starts watching directory and returns the event channel. The
// channel is closed when ctx is cancelled or the watch fails.
//
// Start the watch before scanning the directory: a snapshot that
// lands between the two is then either seen by the scan or reported
// as an event, never missed.
func Watch(ctx context.Context, directory string) (<-chan Event, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, directory, watchMask); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch on %s: %w", directory, err)
	}

	events := make(chan Event, 64)
	go readLoop(ctx, fd, events)
	return events, nil
}

// readLoop polls the inotify fd and forwards snapshot events until ctx
// is done. poll(2) uses a 100ms timeout so cancellation is noticed
// without a busy loop.
func readLoop(ctx context.Context, fd int, events chan<- Event) {
	defer close(events)
	defer unix.Close(fd)

	buffer := make([]byte, 16*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	for {
		if ctx.Err() != nil {
			return
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		for _, event := range parseEvents(buffer[:bytesRead]) {
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// parseEvents decodes a buffer of raw inotify events, keeping those
// that name a snapshot file. A queue overflow becomes a Changed event
// with no name.
//
// Inotify event layout (from inotify(7)):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, padded to alignment
//	};
func parseEvents(buffer []byte) []Event {
	var events []Event
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		mask := binary.NativeEndian.Uint32(buffer[offset+4 : offset+8])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		name := nullTerminatedString(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
		offset += eventSize

		if mask&unix.IN_Q_OVERFLOW != 0 {
			events = append(events, Event{Op: Changed})
			continue
		}
		if mask&unix.IN_ISDIR != 0 || !ltfsindex.IsSnapshotName(name) {
			continue
		}
		switch {
		case mask&(unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO) != 0:
			events = append(events, Event{Name: name, Op: Changed})
		case mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
			events = append(events, Event{Name: name, Op: Removed})
		}
	}
	return events
}

func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
