// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Projects/Apollo/final_cut-v2.MOV", "projects|apollo|final|cut|v2|mov"},
		{"a/b", "a|b"},
		{"ÉCOLE", "école"},
		{"café", "café"},
		{"  //..__ ", ""},
		{"2019-07-20", "2019|07|20"},
	}
	for _, test := range tests {
		if got := strings.Join(Tokenize(test.input), "|"); got != test.want {
			t.Errorf("Tokenize(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestParseFullTextPrecedence(t *testing.T) {
	expr, err := ParseFullText("apollo final OR gemini AND rough")
	if err != nil {
		t.Fatalf("ParseFullText: %v", err)
	}
	if len(expr.Clauses) != 2 || len(expr.Clauses[0]) != 2 || len(expr.Clauses[1]) != 2 {
		t.Fatalf("Clauses = %+v", expr.Clauses)
	}
	want := `("apollo" AND "final") OR ("gemini" AND "rough")`
	if got := expr.FTS5(); got != want {
		t.Errorf("FTS5 = %s, want %s", got, want)
	}
}

func TestFTS5RenderingIsQuoted(t *testing.T) {
	expr, err := ParseFullText(`final_cut" NEAR(x) col:secret*`)
	if err != nil {
		t.Fatalf("ParseFullText: %v", err)
	}
	want := `"final cut" AND "near x" AND "col secret"*`
	if got := expr.FTS5(); got != want {
		t.Errorf("FTS5 = %s, want %s", got, want)
	}
}

func TestParseFullTextErrors(t *testing.T) {
	for _, query := range []string{"", "   ", "./_-", "OR apollo", "apollo OR", "apollo AND", "AND apollo", "apollo OR OR gemini"} {
		if _, err := ParseFullText(query); err == nil {
			t.Errorf("ParseFullText(%q) succeeded", query)
		}
	}
	if _, err := ParseFullText("..."); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("punctuation query error = %v, want ErrEmptyQuery", err)
	}
}

func TestExprMatch(t *testing.T) {
	paths := []string{
		"LTO001/projects/apollo/edit/final_cut.mov",
		"LTO001/projects/gemini/edit/rough_cut.mov",
		"LTO002/photos/2019/apollo_launch.jpg",
	}
	tests := []struct {
		query string
		want  string
	}{
		{"apollo", "0,2"},
		{"apollo mov", "0"},
		{"final_cut", "0"},
		{"cut_final", ""},
		{"laun*", "2"},
		{"launch*", "2"},
		{"rough OR launch", "1,2"},
		{"APOLLO jpg OR gemini", "1,2"},
		{"cut", "0,1"},
		{"cu", ""},
	}
	for _, test := range tests {
		expr, err := ParseFullText(test.query)
		if err != nil {
			t.Fatalf("ParseFullText(%q): %v", test.query, err)
		}
		var matched []string
		for i, path := range paths {
			if expr.Match(path) {
				matched = append(matched, string(rune('0'+i)))
			}
		}
		if got := strings.Join(matched, ","); got != test.want {
			t.Errorf("%q matched %q, want %q", test.query, got, test.want)
		}
	}
}
