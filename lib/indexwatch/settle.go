// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package indexwatch

import (
	"context"
	"time"

	"github.com/bureau-foundation/tapecat/lib/clock"
)

// Settle batches events until none has arrived for quiet, then sends
// the batch. Copying a directory of captures produces a burst of
// events; Settle turns the burst into one refresh. The returned
// channel is closed when events is closed or ctx is done, after
// flushing any pending batch.
func Settle(ctx context.Context, events <-chan Event, quiet time.Duration, clk clock.Clock) <-chan []Event {
	batches := make(chan []Event, 1)
	go func() {
		defer close(batches)
		ticker := clk.NewTicker(quiet / 4)
		defer ticker.Stop()

		var pending []Event
		var last time.Time
		flush := func() bool {
			select {
			case batches <- pending:
				pending = nil
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					if len(pending) > 0 {
						flush()
					}
					return
				}
				pending = append(pending, event)
				last = clk.Now()
			case <-ticker.C:
				if len(pending) > 0 && clk.Now().Sub(last) >= quiet {
					if !flush() {
						return
					}
				}
			}
		}
	}()
	return batches
}
