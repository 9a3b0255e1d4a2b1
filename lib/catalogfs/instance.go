// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalogfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/tapecat/lib/clock"
	"github.com/bureau-foundation/tapecat/lib/generation"
	"github.com/bureau-foundation/tapecat/lib/pathindex"
)

// State is the lifecycle state of an Instance.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateServing
	StateRefreshing
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateServing:
		return "serving"
	case StateRefreshing:
		return "refreshing"
	case StateUnloading:
		return "unloading"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Loader builds a complete index. previous is the index currently
// served (empty on the first load); a loader may carry tapes over from
// it. Failures confined to some tapes go into report; an error return
// means nothing usable was built.
type Loader interface {
	Load(ctx context.Context, previous *pathindex.Index, report *LoadReport) (*pathindex.Index, error)
}

// LoadReport describes one load or refresh.
type LoadReport struct {
	Started  time.Time
	Finished time.Time
	// Version is the publisher version the load produced.
	Version uint64
	Summary pathindex.Summary

	// Failures lists snapshot files that could not be used.
	Failures []generation.Failure
	// Conflicts lists conflicting generation claims.
	Conflicts []*generation.ConflictError
	// Withheld lists volumes not served because their newest
	// generation is in conflict.
	Withheld []string
	// CarriedOver lists tapes served from the previous index because
	// their new state could not be used.
	CarriedOver []string
	// Problems counts nodes dropped for structural violations.
	Problems int
}

// Partial reports whether anything was left out of the load.
func (r *LoadReport) Partial() bool {
	return len(r.Failures) > 0 || len(r.Conflicts) > 0 || len(r.Withheld) > 0 || r.Problems > 0
}

// Err joins every per-snapshot failure and conflict, or returns nil.
func (r *LoadReport) Err() error {
	var errs []error
	for _, failure := range r.Failures {
		errs = append(errs, failure)
	}
	for _, conflict := range r.Conflicts {
		errs = append(errs, conflict)
	}
	return errors.Join(errs...)
}

// InstanceConfig configures NewInstance.
type InstanceConfig struct {
	Loader Loader
	// Clock drives RefreshEvery. Nil uses the real clock.
	Clock  clock.Clock
	Logger *slog.Logger
}

// Instance is one served filesystem: a publisher, the FS reading from
// it, and the loader that fills it.
type Instance struct {
	loader    Loader
	clock     clock.Clock
	logger    *slog.Logger
	publisher *pathindex.Publisher
	fs        *FS

	// mu serializes lifecycle transitions. Readers never take it.
	mu         sync.Mutex
	state      atomic.Int32
	lastReport *LoadReport
}

// NewInstance returns an unloaded instance.
func NewInstance(cfg InstanceConfig) *Instance {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	instance := &Instance{
		loader: cfg.Loader,
		clock:  clk,
		logger: logger,
	}
	instance.publisher = pathindex.NewPublisher(nil, func(published *pathindex.Published) {
		logger.Debug("path index released", "version", published.Version)
	})
	instance.fs = NewFS(instance.publisher, instance.serving, logger)
	return instance
}

// FS returns the filesystem served by the instance.
func (i *Instance) FS() *FS { return i.fs }

// State returns the current lifecycle state.
func (i *Instance) State() State { return State(i.state.Load()) }

// Acquire returns the served index with a reference held. Callers
// must Release it.
func (i *Instance) Acquire() *pathindex.Published { return i.publisher.Acquire() }

// LastReport returns the report of the most recent load or refresh,
// or nil before the first.
func (i *Instance) LastReport() *LoadReport {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastReport
}

// serving is true while calls may be answered. A refresh keeps
// serving the previous index.
func (i *Instance) serving() bool {
	switch i.State() {
	case StateServing, StateRefreshing:
		return true
	}
	return false
}

// Load performs the initial load and starts serving. It publishes
// whatever loaded even when some snapshots failed; the report
// enumerates them.
func (i *Instance) Load(ctx context.Context) (*LoadReport, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if state := i.State(); state != StateUnloaded {
		return nil, fmt.Errorf("catalogfs: load in state %s", state)
	}
	i.state.Store(int32(StateLoading))

	report, err := i.build(ctx)
	if err != nil {
		i.state.Store(int32(StateUnloaded))
		return nil, err
	}
	i.state.Store(int32(StateServing))
	return report, nil
}

// Refresh builds a new index alongside the served one and swaps it
// in. On error the served index is left untouched.
func (i *Instance) Refresh(ctx context.Context) (*LoadReport, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if state := i.State(); state != StateServing {
		return nil, fmt.Errorf("catalogfs: refresh in state %s: %w", state, ErrNotServing)
	}
	i.state.Store(int32(StateRefreshing))
	defer i.state.Store(int32(StateServing))
	return i.build(ctx)
}

// build runs the loader and publishes its index. Callers hold mu.
func (i *Instance) build(ctx context.Context) (*LoadReport, error) {
	report := &LoadReport{Started: i.clock.Now()}

	previous := i.publisher.Acquire()
	index, err := i.loader.Load(ctx, previous.Index, report)
	previous.Release()
	if err != nil {
		i.logger.Error("path index load failed", "error", err)
		return nil, err
	}

	i.publisher.Publish(index)
	report.Finished = i.clock.Now()
	report.Version = i.publisher.Current()
	report.Summary = index.Summary()
	i.lastReport = report

	attributes := []any{
		"version", report.Version,
		"tapes", report.Summary.Tapes,
		"files", report.Summary.Files,
		"duration", report.Finished.Sub(report.Started),
	}
	if report.Partial() {
		attributes = append(attributes,
			"failures", len(report.Failures),
			"conflicts", len(report.Conflicts),
			"withheld", report.Withheld,
			"carried_over", report.CarriedOver,
		)
		i.logger.Warn("path index published with omissions", attributes...)
	} else {
		i.logger.Info("path index published", attributes...)
	}
	return report, nil
}

// RefreshEvery refreshes on every tick of interval until ctx is done.
// A failed refresh is logged and the next tick tries again.
func (i *Instance) RefreshEvery(ctx context.Context, interval time.Duration) error {
	ticker := i.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := i.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				i.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// Close stops serving and retires the index. It returns a channel
// closed once the last reader of the retired index has released it.
// Closing an unloaded instance is a no-op.
func (i *Instance) Close() <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.State() == StateUnloaded {
		done := make(chan struct{})
		close(done)
		return done
	}
	i.state.Store(int32(StateUnloading))
	released := i.publisher.Close()
	i.state.Store(int32(StateUnloaded))
	i.logger.Info("path index unloaded")
	return released
}
