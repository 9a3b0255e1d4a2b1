// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bm25

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters (Okapi variant, standard values).
const (
	paramK1      = 1.2
	paramB       = 0.75
	paramEpsilon = 0.25
)

// Field is a weighted text field. Weight is how many times the
// field's tokens are repeated in the composite document; zero or
// negative skips the field.
type Field struct {
	Text   string
	Weight int
}

// Document is a named collection of weighted text fields. Name
// identifies the document in results and is not itself scored.
type Document struct {
	Name   string
	Fields []Field
}

// Result is a single search hit with its relevance score.
type Result struct {
	Name string

	// Score is unbounded; higher is more relevant.
	Score float64
}

// Tokenizer splits text into index terms.
type Tokenizer func(text string) []string

// posting records that a term occurs frequency times in a document.
type posting struct {
	document  int
	frequency int
}

// Index is an immutable BM25 (Okapi) index. It is safe for concurrent
// readers.
//
// Terms map to posting lists, so a query touches only the documents
// that contain at least one of its terms. That keeps queries cheap on
// corpora of millions of short documents such as file paths.
type Index struct {
	names         []string
	lengths       []int
	averageLength float64
	postings      map[string][]posting
	idf           map[string]float64
	tokenize      Tokenizer
}

// New builds an index over documents using tokenize for both
// documents and queries. A nil tokenize uses Tokenize.
func New(documents []Document, tokenize Tokenizer) *Index {
	if tokenize == nil {
		tokenize = Tokenize
	}
	index := &Index{
		names:    make([]string, len(documents)),
		lengths:  make([]int, len(documents)),
		postings: make(map[string][]posting),
		idf:      make(map[string]float64),
		tokenize: tokenize,
	}

	var totalLength int
	for i, document := range documents {
		index.names[i] = document.Name
		termFrequency := make(map[string]int)
		length := 0
		for _, field := range document.Fields {
			if field.Weight <= 0 {
				continue
			}
			for _, token := range tokenize(field.Text) {
				termFrequency[token] += field.Weight
				length += field.Weight
			}
		}
		index.lengths[i] = length
		totalLength += length
		for term, frequency := range termFrequency {
			index.postings[term] = append(index.postings[term], posting{document: i, frequency: frequency})
		}
	}

	if len(documents) > 0 {
		index.averageLength = float64(totalLength) / float64(len(documents))
	}

	// Terms in more than half the corpus would score negative; they
	// get a small positive floor so they still break ties.
	documentCount := float64(len(documents))
	for term, list := range index.postings {
		frequency := float64(len(list))
		idf := math.Log(1 + (documentCount-frequency+0.5)/(frequency+0.5))
		if idf < 0 {
			idf = paramEpsilon
		}
		index.idf[term] = idf
	}

	return index
}

// Len returns the number of indexed documents.
func (index *Index) Len() int { return len(index.names) }

// Search returns up to limit documents ranked by relevance to query,
// highest first; equal scores are ordered by name. A limit of zero or
// less returns every match.
func (index *Index) Search(query string, limit int) []Result {
	queryTokens := index.tokenize(query)
	if len(queryTokens) == 0 || index.averageLength == 0 {
		return nil
	}

	scores := make(map[int]float64)
	seen := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		if seen[token] {
			continue
		}
		seen[token] = true
		idf, exists := index.idf[token]
		if !exists {
			continue
		}
		for _, entry := range index.postings[token] {
			frequency := float64(entry.frequency)
			length := float64(index.lengths[entry.document])
			numerator := frequency * (paramK1 + 1)
			denominator := frequency + paramK1*(1-paramB+paramB*length/index.averageLength)
			scores[entry.document] += idf * numerator / denominator
		}
	}

	results := make([]Result, 0, len(scores))
	for document, score := range scores {
		results = append(results, Result{Name: index.names[document], Score: score})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Name < results[b].Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Tokenize splits text into lower-case runs of letters and digits,
// discarding single-character runs.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) >= 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
