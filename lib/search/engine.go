// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Backend is the read side of a catalog. *catalog.Store implements
// it.
type Backend interface {
	Search(ctx context.Context, pattern string, options SearchOptions) ([]Entry, error)
	SearchFullText(ctx context.Context, query string, options SearchOptions) ([]Entry, error)
	FindByHash(ctx context.Context, hash string) ([]Entry, error)
	FindDuplicates(ctx context.Context, minSize int64) ([]DuplicateGroup, error)
	Entries(ctx context.Context, tape string, fn func(Entry) error) error
}

// Kind selects how a query's text is interpreted.
type Kind string

const (
	KindGlob       Kind = "glob"
	KindFullText   Kind = "fts"
	KindHash       Kind = "hash"
	KindDuplicates Kind = "dupes"
	KindFuzzy      Kind = "fuzzy"
)

// Query is a parsed one-line query.
type Query struct {
	Kind Kind
	Text string

	// MinSize applies to KindDuplicates.
	MinSize int64
}

// ParseQuery splits an optional "kind:" prefix from text. Bare text
// is a glob. A dupes query takes an optional size threshold that
// accepts humanized units ("dupes:100MB").
func ParseQuery(text string) (Query, error) {
	text = strings.TrimSpace(text)
	query := Query{Kind: KindGlob, Text: text}
	if prefix, rest, found := strings.Cut(text, ":"); found {
		switch kind := Kind(prefix); kind {
		case KindGlob, KindFullText, KindHash, KindDuplicates, KindFuzzy:
			query = Query{Kind: kind, Text: strings.TrimSpace(rest)}
		}
	}

	switch query.Kind {
	case KindDuplicates:
		if query.Text != "" {
			size, err := parseSize(query.Text)
			if err != nil {
				return Query{}, fmt.Errorf("search: dupes threshold %q: %w", query.Text, err)
			}
			query.MinSize = size
		}
	case KindHash:
		query.Text = strings.ToLower(query.Text)
		fallthrough
	default:
		if query.Text == "" {
			return Query{}, ErrEmptyQuery
		}
	}
	return query, nil
}

func parseSize(text string) (int64, error) {
	if size, err := strconv.ParseInt(text, 10, 64); err == nil {
		if size < 0 {
			return 0, fmt.Errorf("negative size")
		}
		return size, nil
	}
	size, err := humanize.ParseBytes(text)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

// Results holds the outcome of one query. Duplicate queries fill
// Groups; fuzzy queries fill Fuzzy alongside Entries; every other
// kind fills Entries only.
type Results struct {
	Query   Query
	Entries []Entry
	Groups  []DuplicateGroup
	Fuzzy   []FuzzyMatch
}

// Engine runs queries against a Backend.
type Engine struct {
	backend Backend
}

// NewEngine returns an engine over backend.
func NewEngine(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// Run parses and evaluates text.
func (e *Engine) Run(ctx context.Context, text string, options SearchOptions) (*Results, error) {
	query, err := ParseQuery(text)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, query, options)
}

// Execute evaluates a parsed query.
func (e *Engine) Execute(ctx context.Context, query Query, options SearchOptions) (*Results, error) {
	results := &Results{Query: query}
	var err error
	switch query.Kind {
	case KindGlob:
		results.Entries, err = e.backend.Search(ctx, query.Text, options)
	case KindFullText:
		results.Entries, err = e.backend.SearchFullText(ctx, query.Text, options)
	case KindHash:
		results.Entries, err = e.backend.FindByHash(ctx, query.Text)
	case KindDuplicates:
		results.Groups, err = e.backend.FindDuplicates(ctx, query.MinSize)
	case KindFuzzy:
		err = e.fuzzy(ctx, query.Text, options, results)
	default:
		err = fmt.Errorf("search: unknown query kind %q", query.Kind)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// fuzzy ranks every path in scope. Paths are scored with the tape
// label prefixed so "lto3 final" can match tape and file together.
func (e *Engine) fuzzy(ctx context.Context, text string, options SearchOptions, results *Results) error {
	var candidates []string
	byCandidate := make(map[string]Entry)
	err := e.backend.Entries(ctx, options.Tape, func(entry Entry) error {
		candidate := entry.Tape + "/" + entry.Path
		candidates = append(candidates, candidate)
		byCandidate[candidate] = entry
		return nil
	})
	if err != nil {
		return err
	}
	results.Fuzzy = RankFuzzy(text, candidates, options.Limit)
	for _, match := range results.Fuzzy {
		results.Entries = append(results.Entries, byCandidate[match.Text])
	}
	return nil
}
