// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Glob is a compiled, case-insensitive shell pattern. A Glob is safe
// for concurrent use.
type Glob struct {
	pattern  string
	expr     *regexp.Regexp
	basename bool
}

// GlobError reports a malformed pattern.
type GlobError struct {
	Pattern string
	Reason  string
}

func (e *GlobError) Error() string {
	return fmt.Sprintf("search: invalid glob %q: %s", e.Pattern, e.Reason)
}

// fold applies the canonical comparison form: NFC then Unicode case
// folding. A cases.Caser is stateful, so each call gets its own.
func fold(text string) string {
	return cases.Fold().String(norm.NFC.String(text))
}

// CompileGlob compiles pattern. Use [Match] when the same patterns
// recur; it consults a shared cache.
func CompileGlob(pattern string) (*Glob, error) {
	folded := []rune(fold(pattern))
	var expr strings.Builder
	expr.WriteString(`(?s)^`)
	for i := 0; i < len(folded); i++ {
		switch r := folded[i]; r {
		case '*':
			expr.WriteString(`.*`)
		case '?':
			expr.WriteString(`.`)
		case '\\':
			if i+1 == len(folded) {
				return nil, &GlobError{Pattern: pattern, Reason: "trailing backslash"}
			}
			i++
			expr.WriteString(regexp.QuoteMeta(string(folded[i])))
		case '[':
			class, next, err := compileClass(folded, i)
			if err != nil {
				return nil, &GlobError{Pattern: pattern, Reason: err.Error()}
			}
			expr.WriteString(class)
			i = next
		default:
			expr.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	expr.WriteString(`$`)

	compiled, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, &GlobError{Pattern: pattern, Reason: err.Error()}
	}
	return &Glob{
		pattern:  pattern,
		expr:     compiled,
		basename: !strings.ContainsRune(pattern, '/'),
	}, nil
}

// compileClass translates the bracket expression starting at
// pattern[start] and returns the index of its closing bracket.
func compileClass(pattern []rune, start int) (string, int, error) {
	var class strings.Builder
	class.WriteByte('[')
	i := start + 1
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		class.WriteByte('^')
		i++
	}
	members := 0
	for ; i < len(pattern); i++ {
		r := pattern[i]
		if r == ']' && members > 0 {
			class.WriteByte(']')
			return class.String(), i, nil
		}
		if r == '\\' {
			if i+1 == len(pattern) {
				break
			}
			i++
			r = pattern[i]
		}
		if r == '-' && members > 0 && i+1 < len(pattern) && pattern[i+1] != ']' {
			class.WriteByte('-')
			continue
		}
		class.WriteString(quoteClassRune(r))
		members++
	}
	return "", 0, fmt.Errorf("unterminated character class at offset %d", start)
}

func quoteClassRune(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	}
	return string(r)
}

// String returns the source pattern.
func (g *Glob) String() string { return g.pattern }

// Match reports whether path matches the pattern, or, for a pattern
// without '/', whether the path's final segment does.
func (g *Glob) Match(path string) bool {
	folded := fold(path)
	if g.expr.MatchString(folded) {
		return true
	}
	if g.basename {
		if slash := strings.LastIndexByte(folded, '/'); slash >= 0 {
			return g.expr.MatchString(folded[slash+1:])
		}
	}
	return false
}

// globCacheLimit bounds the shared cache. Patterns come from users
// and SQL queries, so the set is small in practice; overflowing it
// simply starts over.
const globCacheLimit = 256

var globCache struct {
	sync.Mutex
	entries map[string]*Glob
}

// Match compiles pattern through the shared cache and matches path.
func Match(pattern, path string) (bool, error) {
	glob, err := cachedGlob(pattern)
	if err != nil {
		return false, err
	}
	return glob.Match(path), nil
}

func cachedGlob(pattern string) (*Glob, error) {
	globCache.Lock()
	glob, ok := globCache.entries[pattern]
	globCache.Unlock()
	if ok {
		return glob, nil
	}

	glob, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}

	globCache.Lock()
	if globCache.entries == nil || len(globCache.entries) >= globCacheLimit {
		globCache.entries = make(map[string]*Glob)
	}
	globCache.entries[pattern] = glob
	globCache.Unlock()
	return glob, nil
}
