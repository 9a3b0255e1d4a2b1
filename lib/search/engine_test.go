// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"errors"
	"testing"
)

// memoryBackend evaluates queries over a slice with the in-memory
// matchers, the way the catalog store does in SQL.
type memoryBackend struct {
	entries []Entry
}

func (b *memoryBackend) Search(_ context.Context, pattern string, options SearchOptions) ([]Entry, error) {
	glob, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, entry := range b.entries {
		if (options.Tape == "" || entry.Tape == options.Tape) && glob.Match(entry.Path) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (b *memoryBackend) SearchFullText(_ context.Context, query string, options SearchOptions) ([]Entry, error) {
	expr, err := ParseFullText(query)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, entry := range b.entries {
		if (options.Tape == "" || entry.Tape == options.Tape) && expr.Match(entry.Path) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (b *memoryBackend) FindByHash(_ context.Context, hash string) ([]Entry, error) {
	var out []Entry
	for _, entry := range b.entries {
		if entry.Hash == hash {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (b *memoryBackend) FindDuplicates(_ context.Context, minSize int64) ([]DuplicateGroup, error) {
	return GroupDuplicates(b.entries, minSize), nil
}

func (b *memoryBackend) Entries(_ context.Context, tape string, fn func(Entry) error) error {
	for _, entry := range b.entries {
		if tape != "" && entry.Tape != tape {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func testBackend() *memoryBackend {
	return &memoryBackend{entries: []Entry{
		{Tape: "LTO1", Path: "projects/apollo/final_cut.mov", Size: 2_000_000, Hash: "aa"},
		{Tape: "LTO2", Path: "mirror/apollo/final_cut.mov", Size: 2_000_000, Hash: "aa"},
		{Tape: "LTO1", Path: "notes/readme.txt", Size: 10, Hash: "bb"},
		{Tape: "LTO2", Path: "notes/readme.txt", Size: 10, Hash: "bb"},
	}}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		text    string
		kind    Kind
		body    string
		minSize int64
	}{
		{"*.mov", KindGlob, "*.mov", 0},
		{"glob: *.mov", KindGlob, "*.mov", 0},
		{"fts:apollo OR gemini", KindFullText, "apollo OR gemini", 0},
		{"hash:AbC123", KindHash, "abc123", 0},
		{"dupes:", KindDuplicates, "", 0},
		{"dupes:4096", KindDuplicates, "4096", 4096},
		{"dupes:1MB", KindDuplicates, "1MB", 1_000_000},
		{"fuzzy:apfin", KindFuzzy, "apfin", 0},
		{"c:/odd", KindGlob, "c:/odd", 0},
	}
	for _, test := range tests {
		query, err := ParseQuery(test.text)
		if err != nil {
			t.Errorf("ParseQuery(%q): %v", test.text, err)
			continue
		}
		if query.Kind != test.kind || query.Text != test.body || query.MinSize != test.minSize {
			t.Errorf("ParseQuery(%q) = %+v", test.text, query)
		}
	}

	for _, text := range []string{"", "glob:", "hash: ", "dupes:lots"} {
		if _, err := ParseQuery(text); err == nil {
			t.Errorf("ParseQuery(%q) succeeded", text)
		}
	}
}

func TestEngineRun(t *testing.T) {
	engine := NewEngine(testBackend())
	ctx := context.Background()

	results, err := engine.Run(ctx, "*.mov", SearchOptions{})
	if err != nil || len(results.Entries) != 2 {
		t.Fatalf("glob: %+v, %v", results, err)
	}

	results, err = engine.Run(ctx, "*.mov", SearchOptions{Tape: "LTO2"})
	if err != nil || len(results.Entries) != 1 || results.Entries[0].Tape != "LTO2" {
		t.Fatalf("glob with tape: %+v, %v", results, err)
	}

	results, err = engine.Run(ctx, "fts:readme", SearchOptions{})
	if err != nil || len(results.Entries) != 2 {
		t.Fatalf("fts: %+v, %v", results, err)
	}

	results, err = engine.Run(ctx, "hash:AA", SearchOptions{})
	if err != nil || len(results.Entries) != 2 {
		t.Fatalf("hash: %+v, %v", results, err)
	}

	results, err = engine.Run(ctx, "dupes:1KB", SearchOptions{})
	if err != nil || len(results.Groups) != 1 || results.Groups[0].Hash != "aa" {
		t.Fatalf("dupes: %+v, %v", results, err)
	}

	results, err = engine.Run(ctx, "fuzzy:lto2apfin", SearchOptions{})
	if err != nil || len(results.Entries) != 1 || results.Entries[0].Path != "mirror/apollo/final_cut.mov" {
		t.Fatalf("fuzzy: %+v, %v", results, err)
	}
}

func TestEngineRunPropagatesErrors(t *testing.T) {
	engine := NewEngine(testBackend())
	_, err := engine.Run(context.Background(), "fts:...", SearchOptions{})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
	_, err = engine.Run(context.Background(), "[oops", SearchOptions{})
	var globErr *GlobError
	if !errors.As(err, &globErr) {
		t.Errorf("err = %v, want *GlobError", err)
	}
}
