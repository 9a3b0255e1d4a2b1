// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressedSuffixes are the capture suffixes Open decompresses.
var compressedSuffixes = []string{".gz", ".zst", ".lz4"}

// IsSnapshotName reports whether a file name looks like a captured
// index: ".xml" optionally followed by a compression suffix. Hidden
// files and editor temporaries are not snapshots.
func IsSnapshotName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	return strings.HasSuffix(trimCompression(name), ".xml")
}

func trimCompression(name string) string {
	for _, suffix := range compressedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// Open decodes the snapshot stored at path, decompressing it when the
// name ends in .gz, .zst or .lz4.
func Open(path string) (*Snapshot, error) {
	var snapshot *Snapshot
	err := withReader(path, func(reader io.Reader) error {
		var err error
		snapshot, err = Parse(reader, path)
		return err
	})
	return snapshot, err
}

// OpenHeader decodes only the header of the snapshot at path.
func OpenHeader(path string) (Header, error) {
	var header Header
	err := withReader(path, func(reader io.Reader) error {
		var err error
		header, err = ParseHeader(reader, path)
		return err
	})
	return header, err
}

func withReader(path string, read func(io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ltfsindex: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewReaderSize(file, 64*1024)
	switch {
	case strings.HasSuffix(path, ".gz"):
		reader, err := gzip.NewReader(buffered)
		if err != nil {
			return fmt.Errorf("ltfsindex: %s: opening gzip stream: %w", path, err)
		}
		defer reader.Close()
		return read(reader)
	case strings.HasSuffix(path, ".zst"):
		reader, err := zstd.NewReader(buffered, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("ltfsindex: %s: opening zstd stream: %w", path, err)
		}
		defer reader.Close()
		return read(reader)
	case strings.HasSuffix(path, ".lz4"):
		return read(lz4.NewReader(buffered))
	default:
		return read(buffered)
	}
}
