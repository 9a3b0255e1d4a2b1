// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathindex

import (
	"strconv"
	"strings"
)

// Labeler names tapes. LabelFor returns false when it has no opinion
// about the volume.
type Labeler interface {
	LabelFor(volumeUUID string) (string, bool)
}

// StaticLabels maps volume UUIDs to labels, typically from the
// configuration file. Keys are compared case-insensitively.
type StaticLabels map[string]string

func (s StaticLabels) LabelFor(volumeUUID string) (string, bool) {
	if label, ok := s[volumeUUID]; ok && label != "" {
		return label, true
	}
	for key, label := range s {
		if strings.EqualFold(key, volumeUUID) && label != "" {
			return label, true
		}
	}
	return "", false
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(volumeUUID string) (string, bool)

func (f LabelerFunc) LabelFor(volumeUUID string) (string, bool) { return f(volumeUUID) }

type chain []Labeler

func (c chain) LabelFor(volumeUUID string) (string, bool) {
	for _, labeler := range c {
		if labeler == nil {
			continue
		}
		if label, ok := labeler.LabelFor(volumeUUID); ok {
			return label, true
		}
	}
	return "", false
}

// ChainLabelers consults each labeler in order and uses the first
// answer. Nil labelers are skipped.
func ChainLabelers(labelers ...Labeler) Labeler {
	return chain(labelers)
}

// FallbackLabel derives a label from the volume UUID: its first eight
// hex digits, upper-cased.
func FallbackLabel(volumeUUID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(volumeUUID, "-", ""))
	if len(compact) > 8 {
		compact = compact[:8]
	}
	if compact == "" {
		return "UNKNOWN"
	}
	return compact
}

// ResolveLabel asks labeler for a label and falls back to
// FallbackLabel. The result is a valid path segment.
func ResolveLabel(labeler Labeler, volumeUUID string) string {
	if labeler != nil {
		if label, ok := labeler.LabelFor(volumeUUID); ok {
			if label = Normalize(strings.ReplaceAll(label, "/", "_")); label != "" && label != ".." {
				return label
			}
		}
	}
	return FallbackLabel(volumeUUID)
}

// Disambiguate returns label, or label suffixed with the volume's
// fallback label when taken reports it already in use.
func Disambiguate(label, volumeUUID string, taken func(string) bool) string {
	if !taken(label) {
		return label
	}
	candidate := label + "_" + FallbackLabel(volumeUUID)
	for n := 2; taken(candidate); n++ {
		candidate = label + "_" + FallbackLabel(volumeUUID) + "_" + strconv.Itoa(n)
	}
	return candidate
}
