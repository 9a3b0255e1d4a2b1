// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"errors"
	"testing"
)

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.mov", "projects/apollo/final.mov", true},
		{"*.MOV", "projects/apollo/final.mov", true},
		{"*.mov", "projects/apollo/final.mov.bak", false},
		{"projects/*", "projects/apollo/final.mov", true},
		{"projects/*.mov", "projects/apollo/final.mov", true},
		{"apollo", "projects/apollo/final.mov", false},
		{"*apollo*", "projects/apollo/final.mov", true},
		{"final.mo?", "projects/apollo/final.mov", true},
		{"final.m?", "projects/apollo/final.mov", false},
		{"img_[0-9][0-9].jpg", "photos/IMG_42.JPG", true},
		{"img_[!0-9]*.jpg", "photos/IMG_42.JPG", false},
		{"img_[^0-9]*.jpg", "photos/IMG_x.JPG", true},
		{`what\?.txt`, "what?.txt", true},
		{`what\?.txt`, "whatX.txt", false},
		{`a\*b`, "a*b", true},
		{`a\*b`, "axxb", false},
		{"README.TXT", "docs/readme.txt", true},
		{"ÉTÉ/*", "été/photo.jpg", true},
		{"café.txt", "café.txt", true},
		{"[]]x", "]x", true},
		{"[a-]x", "-x", true},
		{"", "", true},
		{"*", "anything/at/all", true},
	}
	for _, test := range tests {
		glob, err := CompileGlob(test.pattern)
		if err != nil {
			t.Errorf("CompileGlob(%q): %v", test.pattern, err)
			continue
		}
		if got := glob.Match(test.path); got != test.want {
			t.Errorf("%q.Match(%q) = %v, want %v", test.pattern, test.path, got, test.want)
		}
	}
}

func TestCompileGlobErrors(t *testing.T) {
	for _, pattern := range []string{`trailing\`, "[abc", "[!"} {
		_, err := CompileGlob(pattern)
		var globErr *GlobError
		if !errors.As(err, &globErr) {
			t.Errorf("CompileGlob(%q) error = %v, want *GlobError", pattern, err)
		}
	}
}

func TestMatchUsesCache(t *testing.T) {
	for range 3 {
		matched, err := Match("*.tar", "backups/home.tar")
		if err != nil || !matched {
			t.Fatalf("Match = %v, %v", matched, err)
		}
	}
	globCache.Lock()
	_, cached := globCache.entries["*.tar"]
	globCache.Unlock()
	if !cached {
		t.Error("pattern not cached")
	}
	if _, err := Match("[", "x"); err == nil {
		t.Error("invalid pattern accepted through the cache")
	}
}
