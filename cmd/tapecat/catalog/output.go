// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/tapecat/lib/search"
)

// entryOutput is the JSON form of one cataloged file.
type entryOutput struct {
	Tape       string     `json:"tape"`
	Path       string     `json:"path"`
	Size       int64      `json:"size"`
	ModifyTime *time.Time `json:"mtime,omitempty"`
	Hash       string     `json:"xxhash,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	// Score is set by fuzzy queries only.
	Score int `json:"score,omitempty"`
}

// groupOutput is the JSON form of one duplicate group.
type groupOutput struct {
	Hash    string        `json:"xxhash"`
	Size    int64         `json:"size"`
	Wasted  int64         `json:"wasted"`
	Entries []entryOutput `json:"entries"`
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toEntryOutput(entry search.Entry) entryOutput {
	return entryOutput{
		Tape:       entry.Tape,
		Path:       entry.Path,
		Size:       entry.Size,
		ModifyTime: timeOrNil(entry.ModifyTime),
		Hash:       entry.Hash,
		ArchivedAt: timeOrNil(entry.ArchivedAt),
	}
}

func toEntryOutputs(entries []search.Entry) []entryOutput {
	outputs := make([]entryOutput, len(entries))
	for i, entry := range entries {
		outputs[i] = toEntryOutput(entry)
	}
	return outputs
}

func toGroupOutputs(groups []search.DuplicateGroup) []groupOutput {
	outputs := make([]groupOutput, len(groups))
	for i, group := range groups {
		outputs[i] = groupOutput{
			Hash:    group.Hash,
			Size:    group.Size,
			Wasted:  group.WastedBytes(),
			Entries: toEntryOutputs(group.Entries),
		}
	}
	return outputs
}

func formatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), pluralForm)
}

// writeEntryTable writes entries as an aligned table followed by a
// count line.
func writeEntryTable(out io.Writer, entries []search.Entry) error {
	writer := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "TAPE\tSIZE\tMODIFIED\tPATH\n")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			entry.Tape, formatSize(entry.Size), formatDate(entry.ModifyTime), entry.Path)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nFound %s\n", plural(len(entries), "file", "files"))
	return err
}

// writeGroups writes duplicate groups in the catalog's order with a
// closing total.
func writeGroups(out io.Writer, groups []search.DuplicateGroup) error {
	var wasted int64
	for _, group := range groups {
		wasted += group.WastedBytes()
		fmt.Fprintf(out, "%s  %s x %d\n", group.Hash, formatSize(group.Size), len(group.Entries))
		for _, entry := range group.Entries {
			fmt.Fprintf(out, "    %s:%s\n", entry.Tape, entry.Path)
		}
	}
	_, err := fmt.Fprintf(out, "\n%s, %s reclaimable\n",
		plural(len(groups), "duplicate group", "duplicate groups"), formatSize(wasted))
	return err
}
