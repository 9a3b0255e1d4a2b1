// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalogfs

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/tapecat/lib/catalog"
	"github.com/bureau-foundation/tapecat/lib/generation"
	"github.com/bureau-foundation/tapecat/lib/ltfsindex"
	"github.com/bureau-foundation/tapecat/lib/pathindex"
	"github.com/bureau-foundation/tapecat/lib/search"
)

// SnapshotLoader builds the index from the LTFS index snapshots in a
// directory, one tape per volume at its authoritative generation.
type SnapshotLoader struct {
	Directory string
	// Cache, when set, is consulted for snapshot headers and saved
	// after every scan.
	Cache *generation.HeaderCache
	// Labeler names tapes. Volumes it does not know are named after
	// the snapshot's volume name, then after their UUID.
	Labeler pathindex.Labeler
	Logger  *slog.Logger
}

var _ Loader = (*SnapshotLoader)(nil)

// Load scans the directory. A volume that was served before but is
// now withheld, or absent while some snapshot failed to load, keeps
// its previous tree.
func (l *SnapshotLoader) Load(ctx context.Context, previous *pathindex.Index, report *LoadReport) (*pathindex.Index, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	scan, err := generation.NewScanner(l.Directory, l.Cache, logger).Scan(ctx)
	if err != nil {
		return nil, err
	}
	if l.Cache != nil {
		if err := l.Cache.Save(); err != nil {
			logger.Warn("saving snapshot header cache failed", "error", err)
		}
	}
	report.Failures = append(report.Failures, scan.Failures...)
	report.Conflicts = append(report.Conflicts, scan.Result.Conflicts...)
	report.Withheld = append(report.Withheld, scan.Result.Withheld...)

	volumes := make([]string, 0, len(scan.Snapshots))
	for volume := range scan.Snapshots {
		volumes = append(volumes, volume)
	}
	sort.Strings(volumes)

	builder := pathindex.NewBuilder()
	for _, volume := range volumes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snapshot := scan.Snapshots[volume]
		label := pathindex.ResolveLabel(l.labelerFor(snapshot), volume)
		label = pathindex.Disambiguate(label, volume, builder.HasTape)
		if err := builder.AddSnapshot(label, snapshot); err != nil {
			report.Failures = append(report.Failures, generation.Failure{Source: snapshot.Source, Err: err})
			continue
		}
		for _, problem := range snapshot.Problems {
			logger.Warn("snapshot node skipped", "tape", label, "error", problem)
		}
		report.Problems += len(snapshot.Problems)
	}

	withheld := make(map[string]bool, len(scan.Result.Withheld))
	for _, volume := range scan.Result.Withheld {
		withheld[volume] = true
	}
	for _, tape := range previous.Tapes() {
		node, err := previous.Lookup(tape)
		if err != nil || node.VolumeUUID == "" {
			continue
		}
		if _, loaded := scan.Snapshots[node.VolumeUUID]; loaded {
			continue
		}
		if !withheld[node.VolumeUUID] && len(scan.Failures) == 0 {
			// Its snapshots are gone; so is the tape.
			continue
		}
		if builder.HasTape(tape) {
			logger.Warn("previous tape label now taken; not carried over", "tape", tape, "volume", node.VolumeUUID)
			continue
		}
		if err := builder.CopyTape(previous, tape); err != nil {
			logger.Warn("carrying over tape failed", "tape", tape, "error", err)
			continue
		}
		report.CarriedOver = append(report.CarriedOver, tape)
	}
	return builder.Build(), nil
}

func (l *SnapshotLoader) labelerFor(snapshot *ltfsindex.Snapshot) pathindex.Labeler {
	return pathindex.ChainLabelers(l.Labeler, pathindex.LabelerFunc(func(string) (string, bool) {
		name := snapshot.Root().Name
		return name, name != ""
	}))
}

// CatalogLoader builds the index from the catalog: every cataloged
// file under its tape, with the catalog's sizes and times.
type CatalogLoader struct {
	Store  *catalog.Store
	Logger *slog.Logger
}

var _ Loader = (*CatalogLoader)(nil)

// Load reads every tape and file from the catalog. A file whose path
// collides with another entry is skipped and counted as a problem.
func (l *CatalogLoader) Load(ctx context.Context, _ *pathindex.Index, report *LoadReport) (*pathindex.Index, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tapes, err := l.Store.ListTapes(ctx)
	if err != nil {
		return nil, err
	}
	builder := pathindex.NewBuilder()
	skipped := make(map[string]bool)
	for _, tape := range tapes {
		err := builder.AddTape(pathindex.TapeInfo{
			Label:      tape.Name,
			VolumeUUID: tape.VolumeUUID,
			UpdateTime: tape.CreatedAt,
		})
		if err != nil {
			skipped[tape.Name] = true
			report.Failures = append(report.Failures, generation.Failure{Source: "catalog tape " + tape.Name, Err: err})
		}
	}

	err = l.Store.Entries(ctx, "", func(entry search.Entry) error {
		if skipped[entry.Tape] {
			return nil
		}
		err := builder.AddFile(entry.Tape, pathindex.FileAttributes{
			Path:       entry.Path,
			Size:       entry.Size,
			ModifyTime: entry.ModifyTime,
			Hash:       entry.Hash,
		})
		if err != nil {
			report.Problems++
			logger.Warn("catalog entry skipped", "tape", entry.Tape, "path", entry.Path, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return builder.Build(), nil
}
