// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// Key identifies one index generation of one volume.
type Key struct {
	Volume    string
	Number    uint64
	Partition ltfsindex.Partition
}

// Less orders keys of the same volume: by generation number, then by
// partition rank.
func (k Key) Less(other Key) bool {
	if k.Number != other.Number {
		return k.Number < other.Number
	}
	return k.Partition.Rank() < other.Partition.Rank()
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d/%s", k.Volume, k.Number, k.Partition)
}

// Candidate is one captured index offered for resolution.
type Candidate struct {
	Header   ltfsindex.Header
	TreeHash [32]byte
	Source   string
}

// Key returns the candidate's generation key.
func (c Candidate) Key() Key {
	return Key{Volume: c.Header.VolumeUUID, Number: c.Header.Generation, Partition: c.Header.Location}
}

// CandidateOf describes a decoded snapshot as a candidate.
func CandidateOf(snapshot *ltfsindex.Snapshot) Candidate {
	return Candidate{Header: snapshot.Header, TreeHash: snapshot.TreeHash(), Source: snapshot.Source}
}

// ConflictError reports captures that share a Key but describe
// different trees. Sources lists one capture per distinct tree.
type ConflictError struct {
	Key     Key
	Sources []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("generation: conflicting snapshots for volume %s generation %d partition %s: %s",
		e.Key.Volume, e.Key.Number, e.Key.Partition, strings.Join(e.Sources, ", "))
}

// Result is the outcome of resolving a candidate set.
type Result struct {
	// Authoritative maps volume UUID to its winning candidate.
	Authoritative map[string]Candidate
	// Conflicts lists every conflicting key, sorted by key.
	Conflicts []*ConflictError
	// Withheld lists volumes, sorted, whose highest key is in
	// conflict and which therefore have no authoritative generation.
	Withheld []string
}

// Resolve picks the authoritative candidate of every volume. The
// result does not depend on candidate order.
func Resolve(candidates []Candidate) Result {
	resolver := NewResolver()
	for _, candidate := range candidates {
		// Conflicts are collected in the result; the per-call error
		// carries nothing extra.
		_, _ = resolver.Add(candidate)
	}
	return resolver.Result()
}

// Change describes how an Add altered its volume's resolution.
type Change struct {
	Volume string
	// Previous and Current are the authoritative candidates before
	// and after the Add; nil means none.
	Previous *Candidate
	Current  *Candidate
}

// Changed reports whether the authoritative candidate moved.
func (c Change) Changed() bool {
	switch {
	case c.Previous == nil && c.Current == nil:
		return false
	case c.Previous == nil || c.Current == nil:
		return true
	default:
		return c.Previous.Key() != c.Current.Key() || c.Previous.TreeHash != c.Current.TreeHash
	}
}

// Resolver is an incremental resolver. It is safe for concurrent use.
type Resolver struct {
	mu      sync.Mutex
	volumes map[string]*volumeState
}

type volumeState struct {
	// keys maps each key to the captures seen for it, one per
	// distinct tree hash. The source kept for a hash is the
	// lexically smallest, so the outcome is independent of the order
	// captures arrive in.
	keys          map[Key]map[[32]byte]Candidate
	authoritative *Candidate
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{volumes: make(map[string]*volumeState)}
}

// Add offers one candidate. A candidate that repeats a known key with
// the same tree is absorbed without effect. A candidate that repeats
// a known key with a different tree returns a *ConflictError; the
// conflict is also kept and reported by Conflicts and Result.
func (r *Resolver) Add(candidate Candidate) (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := candidate.Key()
	volume, ok := r.volumes[key.Volume]
	if !ok {
		volume = &volumeState{keys: make(map[Key]map[[32]byte]Candidate)}
		r.volumes[key.Volume] = volume
	}
	change := Change{Volume: key.Volume, Previous: volume.authoritative}

	trees, ok := volume.keys[key]
	if !ok {
		trees = make(map[[32]byte]Candidate, 1)
		volume.keys[key] = trees
	}
	if existing, ok := trees[candidate.TreeHash]; !ok || candidate.Source < existing.Source {
		trees[candidate.TreeHash] = candidate
	}

	volume.evaluate()
	change.Current = volume.authoritative

	if len(trees) > 1 {
		return change, conflictFor(key, trees)
	}
	return change, nil
}

// evaluate recomputes the authoritative candidate of one volume.
func (v *volumeState) evaluate() {
	var top Key
	first := true
	for key := range v.keys {
		if first || top.Less(key) {
			top = key
			first = false
		}
	}
	v.authoritative = nil
	trees := v.keys[top]
	if len(trees) != 1 {
		return
	}
	for _, candidate := range trees {
		winner := candidate
		v.authoritative = &winner
	}
}

func conflictFor(key Key, trees map[[32]byte]Candidate) *ConflictError {
	sources := make([]string, 0, len(trees))
	for _, candidate := range trees {
		sources = append(sources, candidate.Source)
	}
	sort.Strings(sources)
	return &ConflictError{Key: key, Sources: sources}
}

// Authoritative returns the winning candidate of volume.
func (r *Resolver) Authoritative(volume string) (Candidate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.volumes[volume]
	if !ok || state.authoritative == nil {
		return Candidate{}, false
	}
	return *state.authoritative, true
}

// Volumes returns every volume seen, sorted.
func (r *Resolver) Volumes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	volumes := make([]string, 0, len(r.volumes))
	for volume := range r.volumes {
		volumes = append(volumes, volume)
	}
	sort.Strings(volumes)
	return volumes
}

// Conflicts returns every conflicting key, sorted by key.
func (r *Resolver) Conflicts() []*ConflictError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts()
}

func (r *Resolver) conflicts() []*ConflictError {
	var conflicts []*ConflictError
	for _, volume := range r.volumes {
		for key, trees := range volume.keys {
			if len(trees) > 1 {
				conflicts = append(conflicts, conflictFor(key, trees))
			}
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i].Key, conflicts[j].Key
		if a.Volume != b.Volume {
			return a.Volume < b.Volume
		}
		return a.Less(b)
	})
	return conflicts
}

// Result snapshots the resolver's current state.
func (r *Resolver) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := Result{
		Authoritative: make(map[string]Candidate, len(r.volumes)),
		Conflicts:     r.conflicts(),
	}
	for volume, state := range r.volumes {
		if state.authoritative != nil {
			result.Authoritative[volume] = *state.authoritative
		} else {
			result.Withheld = append(result.Withheld, volume)
		}
	}
	sort.Strings(result.Withheld)
	return result
}

// Removed lists, sorted, the file paths present in previous but absent
// from current. It is an on-demand comparison between two generations
// of one volume; nothing about removed files is recorded elsewhere.
func Removed(previous, current *ltfsindex.Snapshot) []string {
	present := make(map[string]struct{}, current.FileCount())
	for _, file := range current.Files() {
		present[file.Path] = struct{}{}
	}
	var removed []string
	for _, file := range previous.Files() {
		if _, ok := present[file.Path]; !ok {
			removed = append(removed, file.Path)
		}
	}
	sort.Strings(removed)
	return removed
}
