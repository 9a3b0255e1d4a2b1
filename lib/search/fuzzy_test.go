// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"testing"
)

func TestRankFuzzy(t *testing.T) {
	candidates := []string{
		"LTO001/projects/apollo/edit/final_cut.mov",
		"LTO001/projects/gemini/edit/rough_cut.mov",
		"LTO002/photos/2019/apollo_launch.jpg",
		"LTO002/backups/home.tar",
	}

	matches := RankFuzzy("apfin", candidates, 0)
	if len(matches) != 1 || matches[0].Text != candidates[0] {
		t.Fatalf("matches = %+v, want only the apollo final cut", matches)
	}
	if len(matches[0].Positions) != len("apfin") {
		t.Errorf("Positions = %v, want one per query rune", matches[0].Positions)
	}
	for i := 1; i < len(matches[0].Positions); i++ {
		if matches[0].Positions[i] <= matches[0].Positions[i-1] {
			t.Errorf("Positions not ascending: %v", matches[0].Positions)
		}
	}
}

func TestRankFuzzyOrderingAndLimit(t *testing.T) {
	candidates := []string{"xx/home.tar", "home.tar", "h/o/m/e"}
	matches := RankFuzzy("home", candidates, 0)
	if len(matches) != 3 {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[len(matches)-1].Text != "h/o/m/e" {
		t.Errorf("scattered match should rank last: %+v", matches)
	}
	if limited := RankFuzzy("home", candidates, 1); len(limited) != 1 {
		t.Errorf("limit ignored: %+v", limited)
	}
}

func TestRankFuzzySmartCase(t *testing.T) {
	candidates := []string{"README.md", "readme.md"}
	if matches := RankFuzzy("readme", candidates, 0); len(matches) != 2 {
		t.Errorf("lower-case query should match both: %+v", matches)
	}
	if matches := RankFuzzy("README", candidates, 0); len(matches) != 1 || matches[0].Text != "README.md" {
		t.Errorf("upper-case query should be case-sensitive: %+v", matches)
	}
	if matches := RankFuzzy("  ", candidates, 0); matches != nil {
		t.Errorf("blank query matched: %+v", matches)
	}
}

func TestRankFuzzyRequiresEveryTerm(t *testing.T) {
	candidates := []string{
		"LTO001/projects/apollo/edit/final_cut.mov",
		"LTO003/projects/apollo/edit/final_cut.mov",
		"LTO003/projects/gemini/notes.txt",
	}
	matches := RankFuzzy("lto3 final", candidates, 0)
	if len(matches) != 1 || matches[0].Text != candidates[1] {
		t.Fatalf("matches = %+v, want only the LTO003 final cut", matches)
	}
	if len(matches[0].Positions) != len("lto3")+len("final") {
		t.Errorf("Positions = %v", matches[0].Positions)
	}
}
