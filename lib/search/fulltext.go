// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrEmptyQuery is returned for a query with no searchable terms.
var ErrEmptyQuery = errors.New("search: query has no searchable terms")

// Tokenize returns the full-text terms of text in order. See the
// package documentation for the rule.
func Tokenize(text string) []string {
	return strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Phrase is a run of tokens that must appear consecutively. With
// Prefix set the last token matches any token it is a prefix of.
type Phrase struct {
	Tokens []string
	Prefix bool
}

// Expr is a parsed full-text query in disjunctive normal form: the
// query matches when every phrase of at least one clause matches.
type Expr struct {
	Clauses [][]Phrase
}

// ParseFullText parses a boolean full-text query.
func ParseFullText(query string) (Expr, error) {
	var expr Expr
	var clause []Phrase
	pendingOperator := ""

	for _, word := range strings.Fields(query) {
		switch word {
		case "OR":
			if len(clause) == 0 {
				return Expr{}, fmt.Errorf("search: %q: OR needs a term on each side", query)
			}
			expr.Clauses = append(expr.Clauses, clause)
			clause = nil
			pendingOperator = word
			continue
		case "AND":
			if len(clause) == 0 {
				return Expr{}, fmt.Errorf("search: %q: AND needs a term on each side", query)
			}
			pendingOperator = word
			continue
		}

		prefix := strings.HasSuffix(word, "*")
		tokens := Tokenize(strings.TrimSuffix(word, "*"))
		if len(tokens) == 0 {
			continue
		}
		clause = append(clause, Phrase{Tokens: tokens, Prefix: prefix})
		pendingOperator = ""
	}

	if pendingOperator != "" {
		return Expr{}, fmt.Errorf("search: %q: %s needs a term on each side", query, pendingOperator)
	}
	if len(clause) > 0 {
		expr.Clauses = append(expr.Clauses, clause)
	}
	if len(expr.Clauses) == 0 {
		return Expr{}, ErrEmptyQuery
	}
	return expr, nil
}

// FTS5 renders the expression as an FTS5 MATCH string. Tokens contain
// only letters and digits, and each phrase is double-quoted, so user
// input cannot inject FTS5 syntax.
func (e Expr) FTS5() string {
	clauses := make([]string, len(e.Clauses))
	for i, clause := range e.Clauses {
		phrases := make([]string, len(clause))
		for j, phrase := range clause {
			phrases[j] = `"` + strings.Join(phrase.Tokens, " ") + `"`
			if phrase.Prefix {
				phrases[j] += "*"
			}
		}
		clauses[i] = strings.Join(phrases, " AND ")
		if len(e.Clauses) > 1 && len(clause) > 1 {
			clauses[i] = "(" + clauses[i] + ")"
		}
	}
	return strings.Join(clauses, " OR ")
}

// String renders the expression in the query language it was parsed
// from.
func (e Expr) String() string {
	clauses := make([]string, len(e.Clauses))
	for i, clause := range e.Clauses {
		phrases := make([]string, len(clause))
		for j, phrase := range clause {
			phrases[j] = strings.Join(phrase.Tokens, "_")
			if phrase.Prefix {
				phrases[j] += "*"
			}
		}
		clauses[i] = strings.Join(phrases, " ")
	}
	return strings.Join(clauses, " OR ")
}

// Match evaluates the expression against text in memory.
func (e Expr) Match(text string) bool {
	return e.MatchTokens(Tokenize(text))
}

// MatchTokens evaluates the expression against already tokenized
// text.
func (e Expr) MatchTokens(tokens []string) bool {
	for _, clause := range e.Clauses {
		matched := true
		for _, phrase := range clause {
			if !phrase.match(tokens) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (p Phrase) match(tokens []string) bool {
	last := len(p.Tokens) - 1
	for start := 0; start+last < len(tokens); start++ {
		matched := true
		for offset, token := range p.Tokens {
			candidate := tokens[start+offset]
			if offset == last && p.Prefix {
				if !strings.HasPrefix(candidate, token) {
					matched = false
				}
			} else if candidate != token {
				matched = false
			}
			if !matched {
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
