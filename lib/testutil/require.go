// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the channel helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value sent on ch, failing the test
// if none arrives within timeout or ch is closed first. what describes
// the awaited value and may be a format string with arguments:
//
//	batch := testutil.RequireReceive(t, batches, 5*time.Second, "batch %d", i)
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(what), timeout)
	}
	panic("unreachable")
}

// RequireClosed waits up to timeout for ch to be closed. Release and
// shutdown signals in tapecat are all closed channels.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: not closed within %v", describe(what), timeout)
	}
}

func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "waiting on channel"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
