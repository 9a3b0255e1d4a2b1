// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// Failure records a snapshot file that could not be used.
type Failure struct {
	Source string
	Err    error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Source, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Scan is the outcome of scanning a snapshot directory.
type Scan struct {
	Result Result
	// Snapshots maps each volume in Result.Authoritative to its fully
	// decoded snapshot.
	Snapshots map[string]*ltfsindex.Snapshot
	// Failures lists unreadable or malformed files, sorted by source.
	Failures []Failure
	// Files counts the snapshot files considered; Parsed counts how
	// many of them needed a full decode.
	Files  int
	Parsed int
}

// Scanner resolves the snapshots in one directory.
type Scanner struct {
	directory string
	cache     *HeaderCache
	logger    *slog.Logger
}

// NewScanner returns a Scanner for directory. cache may be nil, in
// which case every file's header is read on every scan.
func NewScanner(directory string, cache *HeaderCache, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{directory: directory, cache: cache, logger: logger}
}

type scanItem struct {
	name      string
	info      fs.FileInfo
	candidate Candidate
	hashed    bool
	failed    bool
	snapshot  *ltfsindex.Snapshot
}

// Scan lists the directory, resolves every volume and fully decodes
// each authoritative snapshot. Files are decoded in full only when
// needed: to load a winner, or to compare captures that share a key.
// Everything else is answered from the header cache or a header-only
// read.
//
// When the newest capture of a volume fails to decode it is reported
// in Failures and resolution falls back to the next newest capture.
func (s *Scanner) Scan(ctx context.Context) (*Scan, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("generation: listing %s: %w", s.directory, err)
	}

	scan := &Scan{Snapshots: make(map[string]*ltfsindex.Snapshot)}
	present := make(map[string]bool)
	var items []*scanItem

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !ltfsindex.IsSnapshotName(name) {
			continue
		}
		path := filepath.Join(s.directory, name)
		info, err := entry.Info()
		if err != nil {
			scan.Failures = append(scan.Failures, Failure{Source: path, Err: err})
			continue
		}
		present[name] = true
		scan.Files++

		item := &scanItem{name: name, info: info}
		if s.cache != nil {
			if candidate, ok := s.cache.Lookup(s.directory, name, info); ok {
				item.candidate = candidate
				item.hashed = true
				items = append(items, item)
				continue
			}
		}
		header, err := ltfsindex.OpenHeader(path)
		if err != nil {
			scan.Failures = append(scan.Failures, Failure{Source: path, Err: err})
			continue
		}
		item.candidate = Candidate{Header: header, Source: path}
		items = append(items, item)
	}

	decode := func(item *scanItem) bool {
		if item.snapshot != nil {
			return true
		}
		if item.failed {
			return false
		}
		snapshot, err := ltfsindex.Open(item.candidate.Source)
		scan.Parsed++
		if err != nil {
			item.failed = true
			scan.Failures = append(scan.Failures, Failure{Source: item.candidate.Source, Err: err})
			return false
		}
		item.snapshot = snapshot
		item.candidate = CandidateOf(snapshot)
		item.hashed = true
		return true
	}

	// Captures sharing a key must be hashed to tell a duplicate from
	// a conflict.
	byKey := make(map[Key][]*scanItem)
	for _, item := range items {
		byKey[item.candidate.Key()] = append(byKey[item.candidate.Key()], item)
	}
	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}
		for _, item := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			decode(item)
		}
	}

	// Decode the newest capture of every volume, walking down the
	// keys until one decodes.
	byVolume := make(map[string][]*scanItem)
	for _, item := range items {
		if !item.failed {
			volume := item.candidate.Header.VolumeUUID
			byVolume[volume] = append(byVolume[volume], item)
		}
	}
	for _, group := range byVolume {
		sort.Slice(group, func(i, j int) bool {
			a, b := group[i].candidate, group[j].candidate
			if a.Key() != b.Key() {
				return b.Key().Less(a.Key())
			}
			return a.Source < b.Source
		})
		for _, item := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if decode(item) {
				break
			}
		}
	}

	var candidates []Candidate
	bySource := make(map[string]*scanItem, len(items))
	for _, item := range items {
		if item.failed {
			continue
		}
		candidates = append(candidates, item.candidate)
		bySource[item.candidate.Source] = item
		if item.hashed && s.cache != nil {
			s.cache.Store(item.name, item.info, item.candidate)
		}
	}
	scan.Result = Resolve(candidates)

	for volume, winner := range scan.Result.Authoritative {
		item := bySource[winner.Source]
		if item.snapshot == nil && !decode(item) {
			// Unreachable unless the file changed between reads.
			delete(scan.Result.Authoritative, volume)
			scan.Result.Withheld = append(scan.Result.Withheld, volume)
			continue
		}
		scan.Snapshots[volume] = item.snapshot
	}
	sort.Strings(scan.Result.Withheld)
	sort.Slice(scan.Failures, func(i, j int) bool { return scan.Failures[i].Source < scan.Failures[j].Source })

	if s.cache != nil {
		s.cache.Retain(present)
		if err := s.cache.Save(); err != nil {
			s.logger.Warn("saving header cache failed", "error", err)
		}
	}

	s.logger.Info("snapshot scan complete",
		"directory", s.directory,
		"files", scan.Files,
		"parsed", scan.Parsed,
		"volumes", len(scan.Result.Authoritative),
		"conflicts", len(scan.Result.Conflicts),
		"failures", len(scan.Failures),
	)
	return scan, nil
}
