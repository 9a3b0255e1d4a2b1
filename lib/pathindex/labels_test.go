// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"testing"
)

func TestFallbackLabel(t *testing.T) {
	if got := FallbackLabel(volumeOne); got != "0A1B2C3D" {
		t.Errorf("FallbackLabel = %q", got)
	}
	if got := FallbackLabel("ab-c"); got != "ABC" {
		t.Errorf("short uuid = %q", got)
	}
	if got := FallbackLabel(""); got != "UNKNOWN" {
		t.Errorf("empty uuid = %q", got)
	}
}

func TestResolveLabelChain(t *testing.T) {
	configured := StaticLabels{"0A1B2C3D-1111-4111-8111-111111111111": "Archive-2019"}
	recorded := LabelerFunc(func(volume string) (string, bool) {
		if volume == volumeTwo {
			return "LTO-from-catalog", true
		}
		return "", false
	})
	labeler := ChainLabelers(configured, nil, recorded)

	unlabeled := "deadbeef-0000-4000-8000-000000000000"
	tests := map[string]string{
		volumeOne: "Archive-2019",
		volumeTwo: "LTO-from-catalog",
		unlabeled: "DEADBEEF",
	}
	for volume, want := range tests {
		if got := ResolveLabel(labeler, volume); got != want {
			t.Errorf("ResolveLabel(%s) = %q, want %q", volume, got, want)
		}
	}
	if got := ResolveLabel(nil, volumeTwo); got != "9F8E7D6C" {
		t.Errorf("nil labeler = %q", got)
	}
}

func TestResolveLabelSanitizes(t *testing.T) {
	labels := StaticLabels{volumeOne: "/racks/a/", volumeTwo: ".."}
	if got := ResolveLabel(labels, volumeOne); got != "_racks_a_" {
		t.Errorf("slashes = %q", got)
	}
	if got := ResolveLabel(labels, volumeTwo); got != "9F8E7D6C" {
		t.Errorf("dot-dot label = %q, want fallback", got)
	}
}

func TestDisambiguate(t *testing.T) {
	taken := map[string]bool{"LTO001": true}
	isTaken := func(label string) bool { return taken[label] }

	if got := Disambiguate("LTO002", volumeOne, isTaken); got != "LTO002" {
		t.Errorf("free label = %q", got)
	}
	got := Disambiguate("LTO001", volumeOne, isTaken)
	if got != "LTO001_0A1B2C3D" {
		t.Errorf("taken label = %q", got)
	}
	taken[got] = true
	if got := Disambiguate("LTO001", volumeOne, isTaken); got != "LTO001_0A1B2C3D_2" {
		t.Errorf("doubly taken label = %q", got)
	}
}
