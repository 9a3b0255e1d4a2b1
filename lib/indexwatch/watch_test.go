// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package indexwatch

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tapecat/lib/clock"
	"github.com/bureau-foundation/tapecat/lib/testutil"
)

func rawEvent(mask uint32, name string) []byte {
	padded := (len(name)/16 + 1) * 16
	buffer := make([]byte, unix.SizeofInotifyEvent+padded)
	binary.NativeEndian.PutUint32(buffer[4:8], mask)
	binary.NativeEndian.PutUint32(buffer[12:16], uint32(padded))
	copy(buffer[unix.SizeofInotifyEvent:], name)
	return buffer
}

func TestParseEvents(t *testing.T) {
	var buffer []byte
	buffer = append(buffer, rawEvent(unix.IN_CLOSE_WRITE, "VOL001_gen3_b.xml")...)
	buffer = append(buffer, rawEvent(unix.IN_CLOSE_WRITE, "notes.txt")...)
	buffer = append(buffer, rawEvent(unix.IN_MOVED_TO, "VOL002.xml.zst")...)
	buffer = append(buffer, rawEvent(unix.IN_DELETE, "VOL001_gen2_b.xml")...)
	buffer = append(buffer, rawEvent(unix.IN_MOVED_FROM|unix.IN_ISDIR, "olddir.xml")...)
	// A truncated trailing event is ignored.
	buffer = append(buffer, rawEvent(unix.IN_DELETE, "VOL003.xml")[:20]...)

	want := []Event{
		{Name: "VOL001_gen3_b.xml", Op: Changed},
		{Name: "VOL002.xml.zst", Op: Changed},
		{Name: "VOL001_gen2_b.xml", Op: Removed},
	}
	got := parseEvents(buffer)
	if len(got) != len(want) {
		t.Fatalf("parseEvents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseEventsReportsOverflow(t *testing.T) {
	// The kernel reports an overflow with wd -1 and no name.
	overflow := make([]byte, unix.SizeofInotifyEvent)
	binary.NativeEndian.PutUint32(overflow[0:4], ^uint32(0))
	binary.NativeEndian.PutUint32(overflow[4:8], unix.IN_Q_OVERFLOW)

	var buffer []byte
	buffer = append(buffer, rawEvent(unix.IN_CLOSE_WRITE, "VOL001_gen3_b.xml")...)
	buffer = append(buffer, overflow...)

	got := parseEvents(buffer)
	want := []Event{
		{Name: "VOL001_gen3_b.xml", Op: Changed},
		{Name: "", Op: Changed},
	}
	if len(got) != len(want) {
		t.Fatalf("parseEvents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWatchReportsSnapshotChanges(t *testing.T) {
	directory := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, directory)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(directory, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	first := filepath.Join(directory, "VOL_g1.xml")
	if err := os.WriteFile(first, []byte("<ltfsindex/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	event := testutil.RequireReceive(t, events, 5*time.Second, "waiting for write event")
	if event != (Event{Name: "VOL_g1.xml", Op: Changed}) {
		t.Errorf("event = %+v", event)
	}

	second := filepath.Join(directory, "VOL_g2.xml")
	if err := os.Rename(first, second); err != nil {
		t.Fatal(err)
	}
	event = testutil.RequireReceive(t, events, 5*time.Second, "waiting for move-out event")
	if event != (Event{Name: "VOL_g1.xml", Op: Removed}) {
		t.Errorf("event = %+v", event)
	}
	event = testutil.RequireReceive(t, events, 5*time.Second, "waiting for move-in event")
	if event != (Event{Name: "VOL_g2.xml", Op: Changed}) {
		t.Errorf("event = %+v", event)
	}

	if err := os.Remove(second); err != nil {
		t.Fatal(err)
	}
	event = testutil.RequireReceive(t, events, 5*time.Second, "waiting for delete event")
	if event != (Event{Name: "VOL_g2.xml", Op: Removed}) {
		t.Errorf("event = %+v", event)
	}

	cancel()
	for range events {
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	if _, err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Watch of a missing directory succeeded")
	}
}

func TestSettleBatchesBursts(t *testing.T) {
	fake := clock.Fake(testutil.FixtureTime)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	batches := Settle(ctx, events, time.Second, fake)
	fake.WaitForTickers(1)

	events <- Event{Name: "a.xml", Op: Changed}
	events <- Event{Name: "b.xml", Op: Changed}
	events <- Event{Name: "a.xml", Op: Removed}

	var batch []Event
	for batch == nil {
		fake.Advance(250 * time.Millisecond)
		select {
		case batch = <-batches:
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(batch) != 3 || batch[2] != (Event{Name: "a.xml", Op: Removed}) {
		t.Errorf("batch = %v", batch)
	}

	events <- Event{Name: "c.xml", Op: Changed}
	close(events)
	batch = testutil.RequireReceive(t, batches, 5*time.Second, "flush on close")
	if len(batch) != 1 || batch[0].Name != "c.xml" {
		t.Errorf("final batch = %v", batch)
	}
	if _, ok := <-batches; ok {
		t.Error("batches not closed after events closed")
	}
}
