// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that stamps records or refreshes on an interval takes a Clock
// instead of calling time.Now or time.NewTicker directly. Production
// wires Real(); tests wire Fake() and drive time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	instance := catalogfs.NewInstance(catalogfs.InstanceConfig{Clock: c, ...})
//	go instance.RefreshEvery(ctx, time.Minute)
//	c.WaitForTickers(1)
//	c.Advance(time.Minute)
package clock
