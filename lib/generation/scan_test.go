// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/testutil"
)

func volumeFixture(volume string, number uint64, partition string, files ...testutil.FixtureFile) testutil.IndexFixture {
	return testutil.IndexFixture{
		Volume:     volume,
		Generation: number,
		Partition:  partition,
		Files:      files,
	}
}

func TestScanLoadsNewestGenerationPerVolume(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteIndex(t, directory, "A_g1.xml", volumeFixture(volumeA, 1, "b", testutil.FixtureFile{Path: "old.txt", Size: 1}))
	testutil.WriteIndex(t, directory, "A_g2.xml", volumeFixture(volumeA, 2, "a", testutil.FixtureFile{Path: "new.txt", Size: 2}))
	testutil.WriteIndex(t, directory, "A_g2b.xml", volumeFixture(volumeA, 2, "b", testutil.FixtureFile{Path: "newest.txt", Size: 3}))
	testutil.WriteIndex(t, directory, "B_g5.xml", volumeFixture(volumeB, 5, "b", testutil.FixtureFile{Path: "b.txt", Size: 4}))
	if err := os.WriteFile(filepath.Join(directory, "README"), []byte("not an index"), 0o644); err != nil {
		t.Fatal(err)
	}

	scan, err := NewScanner(directory, nil, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scan.Files != 4 {
		t.Errorf("Files = %d, want 4", scan.Files)
	}
	if scan.Parsed != 2 {
		t.Errorf("Parsed = %d, want 2 (only the winners)", scan.Parsed)
	}
	snapshotA := scan.Snapshots[volumeA]
	if snapshotA == nil || snapshotA.File(0).Path != "newest.txt" {
		t.Fatalf("volume A snapshot = %+v", snapshotA)
	}
	if scan.Snapshots[volumeB] == nil {
		t.Error("volume B not loaded")
	}
	if len(scan.Failures) != 0 {
		t.Errorf("Failures = %v", scan.Failures)
	}
}

func TestScanFallsBackPastBrokenNewest(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteIndex(t, directory, "A_g1.xml", volumeFixture(volumeA, 1, "b", testutil.FixtureFile{Path: "good.txt", Size: 1}))
	broken := volumeFixture(volumeA, 2, "b", testutil.FixtureFile{Path: "newer.txt", Size: 1}).XML()
	// Keep the header intact so only the full decode fails.
	broken = broken[:len(broken)-40]
	if err := os.WriteFile(filepath.Join(directory, "A_g2.xml"), []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}

	scan, err := NewScanner(directory, nil, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Failures) != 1 || filepath.Base(scan.Failures[0].Source) != "A_g2.xml" {
		t.Fatalf("Failures = %v", scan.Failures)
	}
	var parseErr *ltfsindex.ParseError
	if !errors.As(scan.Failures[0], &parseErr) {
		t.Errorf("failure %v is not a ParseError", scan.Failures[0].Err)
	}
	if got := scan.Result.Authoritative[volumeA].Header.Generation; got != 1 {
		t.Errorf("authoritative generation = %d, want fallback to 1", got)
	}
}

func TestScanDetectsConflicts(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteIndex(t, directory, "left.xml", volumeFixture(volumeA, 3, "b", testutil.FixtureFile{Path: "x.txt", Size: 1}))
	testutil.WriteIndex(t, directory, "right.xml", volumeFixture(volumeA, 3, "b", testutil.FixtureFile{Path: "y.txt", Size: 1}))
	testutil.WriteIndex(t, directory, "same-as-left.xml", volumeFixture(volumeA, 2, "b", testutil.FixtureFile{Path: "x.txt", Size: 1}))

	scan, err := NewScanner(directory, nil, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Result.Conflicts) != 1 {
		t.Fatalf("Conflicts = %v", scan.Result.Conflicts)
	}
	if len(scan.Result.Withheld) != 1 || scan.Result.Withheld[0] != volumeA {
		t.Errorf("Withheld = %v", scan.Result.Withheld)
	}
	if _, ok := scan.Snapshots[volumeA]; ok {
		t.Error("withheld volume must not be loaded")
	}
}

func TestScanDeduplicatesIdenticalCaptures(t *testing.T) {
	directory := t.TempDir()
	fixture := volumeFixture(volumeA, 3, "b", testutil.FixtureFile{Path: "x.txt", Size: 1})
	testutil.WriteIndex(t, directory, "first.xml", fixture)
	fixture.UpdateTime = testutil.FixtureTime.Add(time.Hour)
	testutil.WriteIndex(t, directory, "second.xml", fixture)

	scan, err := NewScanner(directory, nil, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Result.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", scan.Result.Conflicts)
	}
	if scan.Snapshots[volumeA] == nil {
		t.Error("volume not loaded")
	}
}

func TestScanUsesHeaderCache(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteIndex(t, directory, "A_g1.xml", volumeFixture(volumeA, 1, "b", testutil.FixtureFile{Path: "a.txt", Size: 1}))
	testutil.WriteIndex(t, directory, "A_g2.xml", volumeFixture(volumeA, 2, "b", testutil.FixtureFile{Path: "a.txt", Size: 2}))
	cachePath := filepath.Join(directory, CacheFileName)

	first, err := NewScanner(directory, LoadCache(cachePath, nil), nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	cache := LoadCache(cachePath, nil)
	if cache.Len() != 1 {
		t.Errorf("cache records = %d, want 1 (only decoded files are cached)", cache.Len())
	}

	// A second capture of generation 2 forces a comparison; the
	// cached one needs no header read but both need hashing.
	testutil.WriteIndex(t, directory, "A_g2-copy.xml", volumeFixture(volumeA, 2, "b", testutil.FixtureFile{Path: "a.txt", Size: 2}))
	second, err := NewScanner(directory, cache, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if len(second.Result.Conflicts) != 0 {
		t.Errorf("Conflicts = %v", second.Result.Conflicts)
	}
	if first.Snapshots[volumeA].TreeHash() != second.Snapshots[volumeA].TreeHash() {
		t.Error("authoritative tree changed between scans")
	}

	if err := os.Remove(filepath.Join(directory, "A_g2-copy.xml")); err != nil {
		t.Fatal(err)
	}
	if _, err := NewScanner(directory, cache, nil).Scan(context.Background()); err != nil {
		t.Fatalf("third Scan: %v", err)
	}
	if reloaded := LoadCache(cachePath, nil); reloaded.Len() != 1 {
		t.Errorf("cache records after removal = %d, want 1", reloaded.Len())
	}
}

func TestLoadCacheToleratesCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName)
	if err := os.WriteFile(path, []byte("definitely not cbor"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cache := LoadCache(path, nil); cache.Len() != 0 {
		t.Errorf("Len = %d, want 0", cache.Len())
	}
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "absent"), nil, nil).Scan(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestScanHonorsCancellation(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteIndex(t, directory, "A_g1.xml", volumeFixture(volumeA, 1, "b"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScanner(directory, nil, nil).Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
