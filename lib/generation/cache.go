// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/tapecat/lib/codec"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
)

// CacheFileName is the header cache's name inside a snapshot
// directory. The leading dot keeps it out of snapshot listings.
const CacheFileName = ".tapecat-headers.cbor"

// cacheVersion is bumped whenever the tree hash definition or the
// record layout changes; a cache with another version is discarded.
const cacheVersion = 1

type cacheFile struct {
	Version int                    `cbor:"version"`
	Entries map[string]cacheRecord `cbor:"entries"`
}

// cacheRecord is what a refresh needs to know about a snapshot file
// without parsing it again. Size and ModTime validate the record
// against the file on disk.
type cacheRecord struct {
	Size     int64            `cbor:"size"`
	ModTime  int64            `cbor:"mtime"`
	Header   ltfsindex.Header `cbor:"header"`
	TreeHash [32]byte         `cbor:"tree_hash"`
}

// HeaderCache remembers the header and tree hash of snapshot files
// across refreshes. It is safe for concurrent use.
type HeaderCache struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheRecord
	dirty   bool
}

// LoadCache reads the cache at path. A missing, unreadable or
// outdated cache yields an empty one: the cache only saves work, so
// its loss is logged and otherwise ignored.
func LoadCache(path string, logger *slog.Logger) *HeaderCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache := &HeaderCache{path: path, logger: logger, entries: make(map[string]cacheRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("header cache unreadable, starting empty", "path", path, "error", err)
		}
		return cache
	}
	var file cacheFile
	if err := codec.Unmarshal(data, &file); err != nil {
		logger.Warn("header cache corrupt, starting empty", "path", path, "error", err)
		return cache
	}
	if file.Version != cacheVersion {
		logger.Info("header cache version changed, starting empty",
			"path", path, "found", file.Version, "want", cacheVersion)
		return cache
	}
	if file.Entries != nil {
		cache.entries = file.Entries
	}
	return cache
}

// Lookup returns the cached candidate for the snapshot file name if
// the file still has the recorded size and modification time.
func (c *HeaderCache) Lookup(directory, name string, info fs.FileInfo) (Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.entries[name]
	if !ok || record.Size != info.Size() || record.ModTime != info.ModTime().UnixNano() {
		return Candidate{}, false
	}
	return Candidate{
		Header:   record.Header,
		TreeHash: record.TreeHash,
		Source:   filepath.Join(directory, name),
	}, true
}

// Store records candidate for the snapshot file name.
func (c *HeaderCache) Store(name string, info fs.FileInfo, candidate Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record := cacheRecord{
		Size:     info.Size(),
		ModTime:  info.ModTime().UnixNano(),
		Header:   candidate.Header,
		TreeHash: candidate.TreeHash,
	}
	existing, ok := c.entries[name]
	if ok && existing.Size == record.Size && existing.ModTime == record.ModTime && existing.TreeHash == record.TreeHash {
		return
	}
	c.entries[name] = record
	c.dirty = true
}

// Retain drops records for files not in present.
func (c *HeaderCache) Retain(present map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.entries {
		if !present[name] {
			delete(c.entries, name)
			c.dirty = true
		}
	}
}

// Len returns the number of cached records.
func (c *HeaderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the cache if it changed since it was loaded or last
// saved. The write goes through a temporary file and a rename so a
// crash never leaves a truncated cache behind.
func (c *HeaderCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := codec.Marshal(cacheFile{Version: cacheVersion, Entries: c.entries})
	if err != nil {
		return fmt.Errorf("generation: encoding header cache: %w", err)
	}
	temporary := c.path + ".tmp"
	if err := os.WriteFile(temporary, data, 0o644); err != nil {
		return fmt.Errorf("generation: writing header cache: %w", err)
	}
	if err := os.Rename(temporary, c.path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("generation: writing header cache: %w", err)
	}
	c.dirty = false
	return nil
}
