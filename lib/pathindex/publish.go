// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"sync"
	"sync/atomic"
)

// Published is one generation of the served index. Readers hold it
// between Acquire and Release; the index it carries stays valid for
// that whole span even if a newer one is published meanwhile.
type Published struct {
	Index *Index
	// Version increases by one with every Publish.
	Version uint64

	refs      atomic.Int64
	released  chan struct{}
	onRelease func(*Published)
}

// Released is closed once the publisher has superseded this index and
// every reader has released it.
func (p *Published) Released() <-chan struct{} { return p.released }

// Release drops one reference.
func (p *Published) Release() {
	remaining := p.refs.Add(-1)
	if remaining > 0 {
		return
	}
	if remaining < 0 {
		panic("pathindex: Published released more times than acquired")
	}
	close(p.released)
	if p.onRelease != nil {
		p.onRelease(p)
	}
}

// Publisher holds the currently served index. Acquire never blocks
// and never takes a lock; Publish is serialized against itself only.
type Publisher struct {
	current   atomic.Pointer[Published]
	publishMu sync.Mutex
	version   uint64
	onRelease func(*Published)
}

// NewPublisher returns a publisher serving initial (an empty index
// when nil). onRelease, when non-nil, runs once for every superseded
// index after its last reader releases it, on the releasing
// goroutine.
func NewPublisher(initial *Index, onRelease func(*Published)) *Publisher {
	if initial == nil {
		initial = Empty()
	}
	p := &Publisher{onRelease: onRelease}
	p.current.Store(p.wrap(initial))
	return p
}

func (p *Publisher) wrap(index *Index) *Published {
	p.version++
	published := &Published{
		Index:     index,
		Version:   p.version,
		released:  make(chan struct{}),
		onRelease: p.onRelease,
	}
	// The publisher's own reference, dropped when superseded.
	published.refs.Store(1)
	return published
}

// Acquire returns the current index with a reference held. Callers
// must Release it.
func (p *Publisher) Acquire() *Published {
	for {
		current := p.current.Load()
		refs := current.refs.Load()
		if refs <= 0 {
			// Superseded and drained between our load and now; the
			// pointer has already moved on.
			continue
		}
		if current.refs.CompareAndSwap(refs, refs+1) {
			return current
		}
	}
}

// Current returns the version currently served.
func (p *Publisher) Current() uint64 {
	return p.current.Load().Version
}

// Publish makes index the served index and returns a channel closed
// once the previous index has no readers left.
func (p *Publisher) Publish(index *Index) <-chan struct{} {
	p.publishMu.Lock()
	next := p.wrap(index)
	previous := p.current.Swap(next)
	p.publishMu.Unlock()

	previous.Release()
	return previous.released
}

// Close retires the served index in favour of an empty one and
// returns the retired index's release channel.
func (p *Publisher) Close() <-chan struct{} {
	return p.Publish(Empty())
}
