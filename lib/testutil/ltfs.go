// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// FixtureTime is the timestamp fixtures use when a file does not set
// one. Fixed so fixtures are reproducible.
var FixtureTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// IndexFixture describes one LTFS index snapshot.
type IndexFixture struct {
	Volume     string
	Generation uint64
	// Partition is the partition the index was written to, "a" or
	// "b". Empty omits the location element entirely.
	Partition  string
	UpdateTime time.Time
	Creator    string
	VolumeName string
	Files      []FixtureFile
	// Directories lists directories that must exist even when they
	// hold no files.
	Directories []string
}

// FixtureFile is one file in an IndexFixture. Parent directories are
// created implicitly from the path.
type FixtureFile struct {
	Path       string
	Size       int64
	ModifyTime time.Time
	UID        string
	ReadOnly   bool
	// Extents overrides the default single extent covering the whole
	// file. Set it to describe fragmented or deliberately broken
	// layouts.
	Extents []FixtureExtent
	// NoExtents emits a file with no extentinfo at all.
	NoExtents bool
}

// FixtureExtent is one extent element.
type FixtureExtent struct {
	FileOffset *int64
	Partition  string
	StartBlock uint64
	ByteOffset uint64
	ByteCount  uint64
}

type fixtureDir struct {
	name  string
	dirs  map[string]*fixtureDir
	files []FixtureFile
}

func newFixtureDir(name string) *fixtureDir {
	return &fixtureDir{name: name, dirs: make(map[string]*fixtureDir)}
}

func (d *fixtureDir) child(name string) *fixtureDir {
	existing, ok := d.dirs[name]
	if !ok {
		existing = newFixtureDir(name)
		d.dirs[name] = existing
	}
	return existing
}

// XML renders the fixture as a namespaced LTFS index document.
func (f IndexFixture) XML() string {
	root := newFixtureDir(f.VolumeName)
	for _, directory := range f.Directories {
		current := root
		for _, segment := range splitFixturePath(directory) {
			current = current.child(segment)
		}
	}
	for _, file := range f.Files {
		segments := splitFixturePath(file.Path)
		current := root
		for _, segment := range segments[:len(segments)-1] {
			current = current.child(segment)
		}
		named := file
		named.Path = segments[len(segments)-1]
		current.files = append(current.files, named)
	}

	updateTime := f.UpdateTime
	if updateTime.IsZero() {
		updateTime = FixtureTime
	}
	creator := f.Creator
	if creator == "" {
		creator = "tapecat fixture"
	}

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<ltfsindex version="2.4.0" xmlns="http://www.ibm.com/xmlns/ltfs">` + "\n")
	fmt.Fprintf(&builder, "  <creator>%s</creator>\n", html.EscapeString(creator))
	fmt.Fprintf(&builder, "  <volumeuuid>%s</volumeuuid>\n", f.Volume)
	fmt.Fprintf(&builder, "  <generationnumber>%d</generationnumber>\n", f.Generation)
	fmt.Fprintf(&builder, "  <updatetime>%s</updatetime>\n", formatFixtureTime(updateTime))
	if f.Partition != "" {
		fmt.Fprintf(&builder, "  <location><partition>%s</partition><startblock>%d</startblock></location>\n",
			f.Partition, 6+f.Generation)
	}
	builder.WriteString("  <allowpolicyupdate>true</allowpolicyupdate>\n")
	uid := 1
	writeFixtureDir(&builder, root, "  ", &uid)
	builder.WriteString("</ltfsindex>\n")
	return builder.String()
}

func writeFixtureDir(builder *strings.Builder, directory *fixtureDir, indent string, uid *int) {
	fmt.Fprintf(builder, "%s<directory>\n", indent)
	fmt.Fprintf(builder, "%s  <name>%s</name>\n", indent, html.EscapeString(directory.name))
	fmt.Fprintf(builder, "%s  <readonly>false</readonly>\n", indent)
	fmt.Fprintf(builder, "%s  <creationtime>%s</creationtime>\n", indent, formatFixtureTime(FixtureTime))
	fmt.Fprintf(builder, "%s  <modifytime>%s</modifytime>\n", indent, formatFixtureTime(FixtureTime))
	fmt.Fprintf(builder, "%s  <fileuid>%d</fileuid>\n", indent, *uid)
	*uid++
	fmt.Fprintf(builder, "%s  <contents>\n", indent)

	files := append([]FixtureFile(nil), directory.files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	for _, file := range files {
		writeFixtureFile(builder, file, indent+"    ", uid)
	}

	names := make([]string, 0, len(directory.dirs))
	for name := range directory.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeFixtureDir(builder, directory.dirs[name], indent+"    ", uid)
	}

	fmt.Fprintf(builder, "%s  </contents>\n", indent)
	fmt.Fprintf(builder, "%s</directory>\n", indent)
}

func writeFixtureFile(builder *strings.Builder, file FixtureFile, indent string, uid *int) {
	modifyTime := file.ModifyTime
	if modifyTime.IsZero() {
		modifyTime = FixtureTime
	}
	fileUID := file.UID
	if fileUID == "" {
		fileUID = fmt.Sprint(*uid)
	}
	*uid++

	fmt.Fprintf(builder, "%s<file>\n", indent)
	fmt.Fprintf(builder, "%s  <name>%s</name>\n", indent, html.EscapeString(file.Path))
	fmt.Fprintf(builder, "%s  <length>%d</length>\n", indent, file.Size)
	fmt.Fprintf(builder, "%s  <readonly>%t</readonly>\n", indent, file.ReadOnly)
	fmt.Fprintf(builder, "%s  <modifytime>%s</modifytime>\n", indent, formatFixtureTime(modifyTime))
	fmt.Fprintf(builder, "%s  <fileuid>%s</fileuid>\n", indent, fileUID)

	extents := file.Extents
	if extents == nil && !file.NoExtents && file.Size > 0 {
		extents = []FixtureExtent{{Partition: "b", StartBlock: 100, ByteCount: uint64(file.Size)}}
	}
	if len(extents) > 0 {
		fmt.Fprintf(builder, "%s  <extentinfo>\n", indent)
		for _, extent := range extents {
			fmt.Fprintf(builder, "%s    <extent>", indent)
			if extent.FileOffset != nil {
				fmt.Fprintf(builder, "<fileoffset>%d</fileoffset>", *extent.FileOffset)
			}
			partition := extent.Partition
			if partition == "" {
				partition = "b"
			}
			fmt.Fprintf(builder, "<partition>%s</partition><startblock>%d</startblock><byteoffset>%d</byteoffset><bytecount>%d</bytecount></extent>\n",
				partition, extent.StartBlock, extent.ByteOffset, extent.ByteCount)
		}
		fmt.Fprintf(builder, "%s  </extentinfo>\n", indent)
	}
	fmt.Fprintf(builder, "%s</file>\n", indent)
}

// WriteIndex renders fixture into directory/name and returns the full
// path.
func WriteIndex(t testing.TB, directory, name string, fixture IndexFixture) string {
	t.Helper()
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, []byte(fixture.XML()), 0o644); err != nil {
		t.Fatalf("writing index fixture %s: %v", path, err)
	}
	return path
}

// Offset returns a pointer to value, for FixtureExtent.FileOffset.
func Offset(value int64) *int64 {
	return &value
}

func splitFixturePath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func formatFixtureTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
