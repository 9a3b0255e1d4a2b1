// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/tapecat/lib/hashlist"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/search"
	"github.com/bureau-foundation/tapecat/lib/testutil"
)

func TestSearchGlob(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		options search.SearchOptions
		want    []string
	}{
		{
			name:    "basename",
			pattern: "*.mov",
			want:    []string{"LTO002:backup/final_cut.mov", "LTO001:projects/apollo/final_cut.mov"},
		},
		{
			name:    "case insensitive",
			pattern: "readme.TXT",
			want:    []string{"LTO002:backup/readme.txt", "LTO001:projects/apollo/README.txt"},
		},
		{
			name:    "full path",
			pattern: "projects/*",
			want:    []string{"LTO001:projects/apollo/README.txt", "LTO001:projects/apollo/final_cut.mov"},
		},
		{
			name:    "character class",
			pattern: "photos/[0-9][0-9][0-9][0-9]/*",
			want:    []string{"LTO001:photos/2024/beach.jpg"},
		},
		{
			name:    "tape filter",
			pattern: "*.mov",
			options: search.SearchOptions{Tape: "LTO001"},
			want:    []string{"LTO001:projects/apollo/final_cut.mov"},
		},
		{
			name:    "limit",
			pattern: "*",
			options: search.SearchOptions{Limit: 2},
			want:    []string{"LTO002:backup/final_cut.mov", "LTO002:backup/readme.txt"},
		},
		{
			name:    "no match",
			pattern: "*.wav",
			want:    []string{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entries, err := store.Search(ctx, test.pattern, test.options)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := paths(entries); !equalStrings(got, test.want) {
				t.Errorf("Search(%q) = %v, want %v", test.pattern, got, test.want)
			}
		})
	}
}

func TestSearchRejectsInvalidGlob(t *testing.T) {
	store, _ := openTestStore(t)
	_, err := store.Search(context.Background(), `broken\`, search.SearchOptions{})
	var globErr *search.GlobError
	if !errors.As(err, &globErr) {
		t.Errorf("err = %v, want *search.GlobError", err)
	}
}

func TestSearchFullText(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)
	ctx := context.Background()

	tests := []struct {
		query string
		count int
	}{
		{"final", 2},
		{"apollo final", 1},
		{"apollo AND cut", 1},
		{"backup OR photos", 3},
		{"read*", 2},
		{"final_cut", 2},
		{"nothing", 0},
	}
	for _, test := range tests {
		entries, err := store.SearchFullText(ctx, test.query, search.SearchOptions{})
		if err != nil {
			t.Errorf("SearchFullText(%q): %v", test.query, err)
			continue
		}
		if len(entries) != test.count {
			t.Errorf("SearchFullText(%q) = %v, want %d results", test.query, paths(entries), test.count)
		}
	}

	if _, err := store.SearchFullText(ctx, "  ", search.SearchOptions{}); !errors.Is(err, search.ErrEmptyQuery) {
		t.Errorf("empty query err = %v, want ErrEmptyQuery", err)
	}
	// Quote characters are data, not FTS5 syntax.
	if _, err := store.SearchFullText(ctx, `"apollo`, search.SearchOptions{}); err != nil {
		t.Errorf("query with a stray quote: %v", err)
	}
}

// Index and query must split and fold a path identically, including
// for runes where Unicode case folding and letter classes matter.
func TestSearchFullTextFindsFoldedSegments(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	stored := []string{"Docs/Straße/plan.txt", "Math/x²/Übungen.pdf"}
	for _, path := range stored {
		if _, err := store.UpsertFile(ctx, search.Entry{Tape: "T1", Path: path, Size: 1}); err != nil {
			t.Fatalf("UpsertFile(%s): %v", path, err)
		}
	}

	for _, query := range []string{"Straße", "STRASSE", "strasse", "stras*", "plan", "x²", "übungen", "ÜBUNGEN"} {
		expr, err := search.ParseFullText(query)
		if err != nil {
			t.Fatalf("ParseFullText(%q): %v", query, err)
		}
		var want []string
		for _, path := range stored {
			if expr.Match(path) {
				want = append(want, "T1:"+path)
			}
		}
		if len(want) == 0 {
			t.Fatalf("%q matches nothing in memory", query)
		}

		entries, err := store.SearchFullText(ctx, query, search.SearchOptions{})
		if err != nil {
			t.Errorf("SearchFullText(%q): %v", query, err)
			continue
		}
		if got := paths(entries); !equalStrings(got, want) {
			t.Errorf("SearchFullText(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestFindByHash(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)

	entries, err := store.FindByHash(context.Background(), "AAAA000000000001")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"LTO001:projects/apollo/final_cut.mov", "LTO002:backup/final_cut.mov"}
	if got := paths(entries); !equalStrings(got, want) {
		t.Errorf("FindByHash = %v, want %v", got, want)
	}
}

func TestHashesMatchWhateverCaseTheyWereStoredIn(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	for _, entry := range []search.Entry{
		{Tape: "T1", Path: "a.mov", Size: 20 << 20, Hash: "ABCDEF0123456789"},
		{Tape: "T2", Path: "b.mov", Size: 20 << 20, Hash: " abcdef0123456789\n"},
	} {
		if _, err := store.UpsertFile(ctx, entry); err != nil {
			t.Fatalf("UpsertFile(%s): %v", entry.Path, err)
		}
	}

	for _, query := range []string{"ABCDEF0123456789", "abcdef0123456789"} {
		entries, err := store.FindByHash(ctx, query)
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"T1:a.mov", "T2:b.mov"}; !equalStrings(paths(entries), want) {
			t.Errorf("FindByHash(%q) = %v, want %v", query, paths(entries), want)
		}
	}

	groups, err := store.FindDuplicates(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Hash != "abcdef0123456789" || len(groups[0].Entries) != 2 {
		t.Errorf("groups = %+v, want one group of two", groups)
	}

	// Re-sending the same digest in another case is not a change.
	result, err := store.UpsertFile(ctx, search.Entry{Tape: "T1", Path: "a.mov", Size: 20 << 20, Hash: "abcdef0123456789"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Unchanged != 1 {
		t.Errorf("re-ingest = %s, want unchanged", result)
	}
}

func TestFindDuplicates(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)
	ctx := context.Background()

	groups, err := store.FindDuplicates(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Hash != "aaaa000000000001" || groups[1].Hash != "aaaa000000000002" {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].WastedBytes() != 5000 {
		t.Errorf("WastedBytes = %d, want 5000", groups[0].WastedBytes())
	}

	groups, err = store.FindDuplicates(ctx, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Entries) != 2 {
		t.Errorf("groups above 1000 bytes = %+v", groups)
	}
}

func TestFindDuplicatesFiltersEachEntry(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	// One small and two large copies claim the same hash; only the
	// large ones form a group above the threshold.
	for _, entry := range []search.Entry{
		{Tape: "LTO001", Path: "small.bin", Size: 10, Hash: "00000000000000ff"},
		{Tape: "LTO001", Path: "large.bin", Size: 5000, Hash: "00000000000000ff"},
		{Tape: "LTO002", Path: "large.bin", Size: 5000, Hash: "00000000000000ff"},
	} {
		if _, err := store.UpsertFile(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}
	groups, err := store.FindDuplicates(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Entries) != 2 {
		t.Errorf("groups = %+v", groups)
	}
}

func TestFindDuplicatesAboveTenMebibytes(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	for _, entry := range []search.Entry{
		{Tape: "LTO001", Path: "A", Size: 5 << 20, Hash: "0000000000000001"},
		{Tape: "LTO001", Path: "B", Size: 20 << 20, Hash: "0000000000000002"},
		{Tape: "LTO002", Path: "C", Size: 20 << 20, Hash: "0000000000000002"},
	} {
		if _, err := store.UpsertFile(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}
	groups, err := store.FindDuplicates(ctx, 10<<20)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Hash != "0000000000000002" {
		t.Fatalf("groups = %+v", groups)
	}
	if got := paths(groups[0].Entries); !equalStrings(got, []string{"LTO001:B", "LTO002:C"}) {
		t.Errorf("entries = %v", got)
	}
	if groups[0].WastedBytes() != 20<<20 {
		t.Errorf("WastedBytes = %d", groups[0].WastedBytes())
	}
}

func TestSearchBasenameGlobIgnoresCase(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	for _, path := range []string{"Videos/a.mov", "Videos/a.MOV", "Docs/a.mov.txt"} {
		if _, err := store.UpsertFile(ctx, search.Entry{Tape: "LTO001", Path: path, Size: 1}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := store.Search(ctx, "*.mov", search.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(entries); !equalStrings(got, []string{"LTO001:Videos/a.MOV", "LTO001:Videos/a.mov"}) {
		t.Errorf("Search = %v", got)
	}
}

func TestEntries(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)
	ctx := context.Background()

	var all []search.Entry
	if err := store.Entries(ctx, "", func(entry search.Entry) error {
		all = append(all, entry)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 || all[0].Tape != "LTO001" || all[5].Tape != "LTO002" {
		t.Errorf("entries = %v", paths(all))
	}

	stop := errors.New("stop")
	count := 0
	err := store.Entries(ctx, "LTO001", func(search.Entry) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || count != 2 {
		t.Errorf("err = %v after %d entries", err, count)
	}
}

func TestEngineOverStore(t *testing.T) {
	store, _ := openTestStore(t)
	seed(t, store)
	engine := search.NewEngine(store)
	ctx := context.Background()

	results, err := engine.Run(ctx, "dupes:1KB", search.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results.Groups) != 1 {
		t.Errorf("dupes groups = %+v", results.Groups)
	}

	results, err = engine.Run(ctx, "fuzzy:apollofinal", search.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results.Fuzzy) != 1 || results.Fuzzy[0].Text != "LTO001/projects/apollo/final_cut.mov" {
		t.Errorf("fuzzy = %+v", results.Fuzzy)
	}
}

func TestImportHashList(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	finished := time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC)
	list := &hashlist.List{
		Creator: hashlist.CreatorInfo{Name: "Archivist", FinishDate: finished},
		Entries: []hashlist.Entry{
			{File: "projects/a.mov", Size: 2048, LastModification: january, XXHash64BE: "abcdef0123456789"},
			{File: "projects/b.wav", Size: 12, XXHash64BE: "0000000000000001"},
		},
	}
	path := filepath.Join(t.TempDir(), "LTO777_2025-01-01.mhl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := list.WriteXML(file); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	tape, result, err := store.ImportHashList(ctx, path, "")
	if err != nil {
		t.Fatalf("ImportHashList: %v", err)
	}
	if tape != "LTO777" || result.Inserted != 2 {
		t.Errorf("tape = %q, result = %v", tape, result)
	}
	entries, err := store.FindByHash(ctx, "abcdef0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].ArchivedAt.Equal(finished) || !entries[0].ModifyTime.Equal(january) {
		t.Errorf("entries = %+v", entries)
	}

	tape, _, err = store.ImportHashList(ctx, path, "OVERRIDE")
	if err != nil || tape != "OVERRIDE" {
		t.Errorf("explicit tape: tape = %q, err = %v", tape, err)
	}
}

func TestIngestSnapshotKeepsImportedHashes(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	if _, err := store.UpsertFile(ctx, search.Entry{Tape: "VOL001", Path: "docs/report.pdf", Size: 300, Hash: "1234567890abcdef"}); err != nil {
		t.Fatal(err)
	}

	path := testutil.WriteIndex(t, t.TempDir(), "VOL001_g3.xml", testutil.IndexFixture{
		Volume:     "33333333-3333-4333-8333-333333333333",
		Generation: 3,
		Partition:  "b",
		VolumeName: "VOL001",
		Files: []testutil.FixtureFile{
			{Path: "docs/report.pdf", Size: 300},
			{Path: "docs/notes.txt", Size: 20},
		},
	})
	snapshot, err := ltfsindex.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	result, err := store.IngestSnapshot(ctx, "VOL001", snapshot)
	if err != nil {
		t.Fatalf("IngestSnapshot: %v", err)
	}
	// report.pdf gains a modification time, so it is updated.
	if result.Inserted != 1 || result.Updated != 1 {
		t.Errorf("result = %v", result)
	}
	entries, err := store.FindByHash(ctx, "1234567890abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].ModifyTime.Equal(testutil.FixtureTime) {
		t.Errorf("entries = %+v", entries)
	}

	stats, err := store.TapeStats(ctx, "VOL001")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tape.VolumeUUID != "33333333-3333-4333-8333-333333333333" || !stats.Tape.CreatedAt.Equal(testutil.FixtureTime) {
		t.Errorf("tape = %+v", stats.Tape)
	}
	if label, ok := store.LabelFor(stats.Tape.VolumeUUID); !ok || label != "VOL001" {
		t.Errorf("LabelFor = %q, %v", label, ok)
	}
}
