// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var initScheme sync.Once

// FuzzyMatch is one ranked fuzzy hit. Positions are the rune indices
// in Text that matched the query, ascending.
type FuzzyMatch struct {
	Text      string
	Score     int
	Positions []int
}

// RankFuzzy scores every candidate against query with fzf's V2
// algorithm and returns up to limit matches, best first. Whitespace
// separates terms; a candidate must match every term and scores the
// sum of its term scores. Ties prefer shorter text, then lexical
// order. A limit of zero or less returns every match. Each term is
// case-insensitive unless it contains an upper-case letter, as in
// fzf's smart case.
func RankFuzzy(query string, candidates []string, limit int) []FuzzyMatch {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}
	type term struct {
		pattern       []rune
		caseSensitive bool
	}
	terms := make([]term, len(fields))
	for i, field := range fields {
		lower := strings.ToLower(field)
		terms[i] = term{pattern: []rune(lower), caseSensitive: lower != field}
		if terms[i].caseSensitive {
			terms[i].pattern = []rune(field)
		}
	}

	initScheme.Do(func() { algo.Init("default") })
	slab := util.MakeSlab(100*1024, 2048)
	var matches []FuzzyMatch
next:
	for _, candidate := range candidates {
		chars := util.ToChars([]byte(candidate))
		match := FuzzyMatch{Text: candidate}
		for _, term := range terms {
			result, positions := algo.FuzzyMatchV2(term.caseSensitive, true, true, &chars, term.pattern, true, slab)
			if result.Start < 0 {
				continue next
			}
			match.Score += result.Score
			if positions != nil {
				match.Positions = append(match.Positions, (*positions)...)
			}
		}
		sort.Ints(match.Positions)
		match.Positions = slices.Compact(match.Positions)
		matches = append(matches, match)
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		if len(matches[a].Text) != len(matches[b].Text) {
			return len(matches[a].Text) < len(matches[b].Text)
		}
		return matches[a].Text < matches[b].Text
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
