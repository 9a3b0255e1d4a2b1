// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/testutil"
)

const (
	volumeOne = "0a1b2c3d-1111-4111-8111-111111111111"
	volumeTwo = "9f8e7d6c-2222-4222-8222-222222222222"
)

func parseSnapshot(t *testing.T, fixture testutil.IndexFixture) *ltfsindex.Snapshot {
	t.Helper()
	snapshot, err := ltfsindex.Parse(strings.NewReader(fixture.XML()), "fixture.xml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return snapshot
}

func sampleIndex(t *testing.T) *Index {
	t.Helper()
	builder := NewBuilder()
	first := parseSnapshot(t, testutil.IndexFixture{
		Volume:     volumeOne,
		Generation: 4,
		Partition:  "b",
		Files: []testutil.FixtureFile{
			{Path: "projects/apollo/final_cut.mov", Size: 1000},
			{Path: "projects/apollo/notes.txt", Size: 20},
			{Path: "readme.txt", Size: 5},
		},
		Directories: []string{"empty"},
	})
	second := parseSnapshot(t, testutil.IndexFixture{
		Volume:     volumeTwo,
		Generation: 1,
		Partition:  "b",
		Files: []testutil.FixtureFile{
			{Path: "photos/2019/apollo_launch.jpg", Size: 300},
		},
	})
	if err := builder.AddSnapshot("LTO001", first); err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}
	if err := builder.AddSnapshot("LTO002", second); err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}
	return builder.Build()
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"/":                 "",
		"LTO001":            "LTO001",
		"/LTO001//photos/":  "LTO001/photos",
		"./LTO001/./a":      "LTO001/a",
		"LTO001/cafe\u0301": "LTO001/caf\u00e9",
	}
	for input, want := range tests {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	index := sampleIndex(t)

	root, err := index.Lookup("/")
	if err != nil || !root.IsDir() || root.Children != 2 {
		t.Fatalf("root = %+v, %v", root, err)
	}

	tape, err := index.Lookup("LTO001")
	if err != nil {
		t.Fatalf("Lookup tape: %v", err)
	}
	if !tape.IsDir() || tape.VolumeUUID != volumeOne || tape.Generation != 4 || tape.Children != 3 {
		t.Errorf("tape node = %+v", tape)
	}
	if !tape.ModifyTime.Equal(testutil.FixtureTime) {
		t.Errorf("tape ModifyTime = %v, want the index update time", tape.ModifyTime)
	}

	file, err := index.Lookup("/LTO001/projects/apollo/final_cut.mov")
	if err != nil {
		t.Fatalf("Lookup file: %v", err)
	}
	if file.Kind != KindFile || file.Size != 1000 || file.Tape != "LTO001" || file.Name != "final_cut.mov" {
		t.Errorf("file node = %+v", file)
	}
	if file.ModifyTime.IsZero() {
		t.Error("file ModifyTime not carried over")
	}

	empty, err := index.Lookup("LTO001/empty")
	if err != nil || !empty.IsDir() || empty.Children != 0 {
		t.Errorf("empty directory = %+v, %v", empty, err)
	}
}

func TestLookupErrors(t *testing.T) {
	index := sampleIndex(t)
	if _, err := index.Lookup("LTO003"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing tape err = %v", err)
	}
	if _, err := index.Lookup("LTO001/readme.txt/inner"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("through-file err = %v, want ErrNotDirectory", err)
	}
	if _, err := index.ListChildren("LTO001/readme.txt"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("ListChildren on file err = %v", err)
	}
}

func TestListChildrenSorted(t *testing.T) {
	index := sampleIndex(t)
	children, err := index.ListChildren("LTO001")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if got := strings.Join(children, ","); got != "empty,projects,readme.txt" {
		t.Errorf("children = %s", got)
	}

	nodes, err := index.Children("LTO001/projects/apollo")
	if err != nil || len(nodes) != 2 || nodes[0].Name != "final_cut.mov" {
		t.Errorf("Children = %+v, %v", nodes, err)
	}

	// The returned slice is the caller's.
	children[0] = "mutated"
	again, _ := index.ListChildren("LTO001")
	if again[0] != "empty" {
		t.Error("ListChildren exposed internal state")
	}
}

func TestTapesAndSummary(t *testing.T) {
	index := sampleIndex(t)
	if got := strings.Join(index.Tapes(), ","); got != "LTO001,LTO002" {
		t.Errorf("Tapes = %s", got)
	}
	want := Summary{Tapes: 2, Directories: 5, Files: 4, Bytes: 1325}
	if got := index.Summary(); got != want {
		t.Errorf("Summary = %+v, want %+v", got, want)
	}

	var source Source = index
	if source.Summary().Files != 4 {
		t.Error("Index does not serve as a Source")
	}
}

func TestWalk(t *testing.T) {
	index := sampleIndex(t)
	var visited []string
	err := index.Walk("LTO001", func(node Node) error {
		visited = append(visited, node.Path)
		if node.Name == "projects" {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := "LTO001,LTO001/empty,LTO001/projects,LTO001/readme.txt"
	if got := strings.Join(visited, ","); got != want {
		t.Errorf("visited %s, want %s", got, want)
	}

	stop := errors.New("stop")
	count := 0
	err = index.Walk("", func(Node) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || count != 3 {
		t.Errorf("Walk err = %v after %d nodes", err, count)
	}
}

func TestSearch(t *testing.T) {
	index := sampleIndex(t)
	results := index.Search("apollo", 0)
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Path != "LTO002/photos/2019/apollo_launch.jpg" {
		t.Errorf("top result = %s, want the file named apollo", results[0].Path)
	}
	for _, node := range results {
		if node.Kind != KindFile {
			t.Errorf("directory %s in search results", node.Path)
		}
	}
	if results := index.Search("final_cut", 1); len(results) != 1 || results[0].Name != "final_cut.mov" {
		t.Errorf("final_cut results = %+v", results)
	}
}

func TestAddSnapshotRejectsDuplicateLabel(t *testing.T) {
	builder := NewBuilder()
	snapshot := parseSnapshot(t, testutil.IndexFixture{Volume: volumeOne, Generation: 1})
	if err := builder.AddSnapshot("LTO001", snapshot); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddSnapshot("/LTO001/", snapshot); !errors.Is(err, ErrDuplicateTape) {
		t.Errorf("err = %v, want ErrDuplicateTape", err)
	}
	if err := builder.AddTape(TapeInfo{Label: "a/b"}); err == nil {
		t.Error("label with a slash accepted")
	}
}

func TestAddFileCreatesDirectories(t *testing.T) {
	builder := NewBuilder()
	modified := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := builder.AddTape(TapeInfo{Label: "LTO9", VolumeUUID: volumeOne, UpdateTime: modified}); err != nil {
		t.Fatal(err)
	}
	files := []FileAttributes{
		{Path: "a/b/c.bin", Size: 10, Hash: "abc"},
		{Path: "/a/d.bin", Size: 20},
		{Path: "a/b/c.bin", Size: 11, Hash: "abd"},
	}
	for _, file := range files {
		if err := builder.AddFile("LTO9", file); err != nil {
			t.Fatalf("AddFile(%s): %v", file.Path, err)
		}
	}
	if err := builder.AddFile("LTO9", FileAttributes{Path: "a/d.bin/nested"}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file under file err = %v", err)
	}
	if err := builder.AddFile("LTO9", FileAttributes{Path: "a/b"}); err == nil {
		t.Error("file replacing directory accepted")
	}
	if err := builder.AddFile("LTO10", FileAttributes{Path: "implicit.bin"}); err != nil {
		t.Errorf("AddFile on a new tape: %v", err)
	}

	index := builder.Build()
	file, err := index.Lookup("LTO9/a/b/c.bin")
	if err != nil || file.Size != 11 || file.Hash != "abd" {
		t.Errorf("replaced file = %+v, %v", file, err)
	}
	directory, err := index.Lookup("LTO9/a/b")
	if err != nil || !directory.IsDir() || !directory.ModifyTime.Equal(modified) {
		t.Errorf("implicit directory = %+v, %v", directory, err)
	}
	if got := index.Summary(); got.Files != 3 || got.Tapes != 2 || got.Bytes != 31 {
		t.Errorf("Summary = %+v", got)
	}
}

func TestCopyTape(t *testing.T) {
	previous := sampleIndex(t)

	builder := NewBuilder()
	if err := builder.CopyTape(previous, "LTO001"); err != nil {
		t.Fatalf("CopyTape: %v", err)
	}
	if err := builder.CopyTape(previous, "LTO001"); !errors.Is(err, ErrDuplicateTape) {
		t.Errorf("second copy err = %v", err)
	}
	if err := builder.CopyTape(previous, "LTO404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing tape err = %v", err)
	}
	index := builder.Build()

	if got := strings.Join(index.Tapes(), ","); got != "LTO001" {
		t.Errorf("Tapes = %s", got)
	}
	original, _ := previous.Lookup("LTO001/projects/apollo/final_cut.mov")
	copied, err := index.Lookup("LTO001/projects/apollo/final_cut.mov")
	if err != nil || copied != original {
		t.Errorf("copied node = %+v, %v; want %+v", copied, err, original)
	}
	if got := index.Summary(); got.Files != 3 || got.Bytes != 1025 {
		t.Errorf("Summary = %+v", got)
	}
}

func TestEmpty(t *testing.T) {
	index := Empty()
	if len(index.Tapes()) != 0 || index.Summary() != (Summary{}) {
		t.Errorf("Empty index = %v, %+v", index.Tapes(), index.Summary())
	}
	children, err := index.ListChildren("")
	if err != nil || len(children) != 0 {
		t.Errorf("root children = %v, %v", children, err)
	}
	if results := index.Search("anything", 0); len(results) != 0 {
		t.Errorf("Search = %v", results)
	}
}
