// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"sort"
	"time"
)

// Entry is one cataloged file as the search layer sees it.
type Entry struct {
	Tape       string
	Path       string
	Size       int64
	ModifyTime time.Time
	Hash       string
	ArchivedAt time.Time
}

// SearchOptions narrows a query. Zero values mean no restriction.
type SearchOptions struct {
	Tape  string
	Limit int
}

// DuplicateGroup is a set of entries sharing one content hash.
type DuplicateGroup struct {
	Hash    string
	Size    int64
	Entries []Entry
}

// GroupDuplicates groups entries by hash. Entries without a hash or
// smaller than minSize are dropped before grouping, so a group never
// mixes members above and below the threshold. Groups with fewer than
// two members are discarded. Groups are ordered by member count
// descending then hash; members by tape then path.
func GroupDuplicates(entries []Entry, minSize int64) []DuplicateGroup {
	byHash := make(map[string][]Entry)
	for _, entry := range entries {
		if entry.Hash == "" || entry.Size < minSize {
			continue
		}
		byHash[entry.Hash] = append(byHash[entry.Hash], entry)
	}

	var groups []DuplicateGroup
	for hash, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(a, b int) bool {
			if members[a].Tape != members[b].Tape {
				return members[a].Tape < members[b].Tape
			}
			return members[a].Path < members[b].Path
		})
		group := DuplicateGroup{Hash: hash, Entries: members}
		for _, member := range members {
			group.Size = max(group.Size, member.Size)
		}
		groups = append(groups, group)
	}
	SortGroups(groups)
	return groups
}

// SortGroups applies the duplicate report order.
func SortGroups(groups []DuplicateGroup) {
	sort.Slice(groups, func(a, b int) bool {
		if len(groups[a].Entries) != len(groups[b].Entries) {
			return len(groups[a].Entries) > len(groups[b].Entries)
		}
		return groups[a].Hash < groups[b].Hash
	})
}

// WastedBytes is the space a group would free if one copy were kept.
func (g DuplicateGroup) WastedBytes() int64 {
	return g.Size * int64(len(g.Entries)-1)
}
