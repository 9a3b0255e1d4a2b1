// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// ltfsTimeFormat is the fixed nine-digit form LTFS writers use.
const ltfsTimeFormat = "2006-01-02T15:04:05.000000000Z"

// WriteXML serializes the snapshot as a namespaced LTFS index
// document. Parsing the output yields a snapshot with the same header,
// tree and TreeHash. Excluded nodes (Problems) are not written.
func (s *Snapshot) WriteXML(w io.Writer) error {
	writer := &xmlWriter{out: bufio.NewWriter(w)}
	version := s.Header.Version
	if version == "" {
		version = "2.4.0"
	}

	writer.line(0, `<?xml version="1.0" encoding="UTF-8"?>`)
	writer.line(0, fmt.Sprintf(`<ltfsindex version="%s" xmlns="%s">`, escape(version), Namespace))
	writer.element(1, "creator", s.Header.Creator)
	if s.Header.Comment != "" {
		writer.element(1, "comment", s.Header.Comment)
	}
	writer.element(1, "volumeuuid", s.Header.VolumeUUID)
	writer.element(1, "generationnumber", fmt.Sprint(s.Header.Generation))
	if s.Header.UpdateTime != nil {
		writer.element(1, "updatetime", s.Header.UpdateTime.UTC().Format(ltfsTimeFormat))
	}
	location := s.Header.Location
	if location == "" {
		location = PartitionPrimary
	}
	writer.line(1, "<location>")
	writer.element(2, "partition", string(location))
	writer.element(2, "startblock", fmt.Sprint(s.Header.LocationBlock))
	writer.line(1, "</location>")
	if s.Header.HighestFileUID != 0 {
		writer.element(1, "highestfileuid", fmt.Sprint(s.Header.HighestFileUID))
	}
	s.writeDirectory(writer, 0, 1)
	writer.line(0, "</ltfsindex>")

	if writer.err != nil {
		return fmt.Errorf("ltfsindex: writing index: %w", writer.err)
	}
	if err := writer.out.Flush(); err != nil {
		return fmt.Errorf("ltfsindex: writing index: %w", err)
	}
	return nil
}

func (s *Snapshot) writeDirectory(writer *xmlWriter, index, depth int) {
	directory := &s.directories[index]
	writer.line(depth, "<directory>")
	writer.name(depth+1, directory.Name)
	writer.element(depth+1, "readonly", fmt.Sprint(directory.ReadOnly))
	writer.times(depth+1, directory.Times)
	if directory.UID != "" {
		writer.element(depth+1, "fileuid", directory.UID)
	}
	writer.line(depth+1, "<contents>")
	for _, fileIndex := range directory.Files {
		s.writeFile(writer, &s.files[fileIndex], depth+2)
	}
	for _, childIndex := range directory.Directories {
		s.writeDirectory(writer, childIndex, depth+2)
	}
	writer.line(depth+1, "</contents>")
	writer.line(depth, "</directory>")
}

func (s *Snapshot) writeFile(writer *xmlWriter, file *File, depth int) {
	writer.line(depth, "<file>")
	writer.name(depth+1, file.Name)
	writer.element(depth+1, "length", fmt.Sprint(file.Size))
	writer.element(depth+1, "readonly", fmt.Sprint(file.ReadOnly))
	writer.times(depth+1, file.Times)
	if file.UID != "" {
		writer.element(depth+1, "fileuid", file.UID)
	}
	if file.Symlink != "" {
		writer.element(depth+1, "symlink", file.Symlink)
	}
	if len(file.Extents) > 0 {
		writer.line(depth+1, "<extentinfo>")
		for _, extent := range file.Extents {
			writer.line(depth+2, fmt.Sprintf(
				"<extent><fileoffset>%d</fileoffset><partition>%s</partition><startblock>%d</startblock><byteoffset>%d</byteoffset><bytecount>%d</bytecount></extent>",
				extent.FileOffset, extent.Partition, extent.StartBlock, extent.ByteOffset, extent.ByteCount))
		}
		writer.line(depth+1, "</extentinfo>")
	}
	writer.line(depth, "</file>")
}

// xmlWriter keeps the first write error so the emitters stay linear.
type xmlWriter struct {
	out *bufio.Writer
	err error
}

func (w *xmlWriter) line(depth int, text string) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.out, "%s%s\n", strings.Repeat("  ", depth), text)
}

func (w *xmlWriter) element(depth int, name, value string) {
	w.line(depth, fmt.Sprintf("<%s>%s</%s>", name, escape(value), name))
}

// name writes a name element, percent-encoding it when it contains
// characters XML 1.0 cannot represent.
func (w *xmlWriter) name(depth int, name string) {
	if encoded, ok := percentEncode(name); ok {
		w.line(depth, fmt.Sprintf(`<name percentencoded="true">%s</name>`, escape(encoded)))
		return
	}
	w.element(depth, "name", name)
}

func (w *xmlWriter) times(depth int, times Times) {
	for _, field := range []struct {
		element string
		value   *time.Time
	}{
		{"creationtime", times.Creation},
		{"changetime", times.Change},
		{"modifytime", times.Modify},
		{"accesstime", times.Access},
		{"backuptime", times.Backup},
	} {
		if field.value != nil {
			w.element(depth, field.element, field.value.UTC().Format(ltfsTimeFormat))
		}
	}
}

func escape(value string) string {
	var builder strings.Builder
	// EscapeText only fails when the underlying writer does.
	_ = xml.EscapeText(&builder, []byte(value))
	return builder.String()
}

// percentEncode escapes control characters and '%' when the name
// holds any control character. The second result is false when the
// name can be written verbatim.
func percentEncode(name string) (string, bool) {
	needed := false
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			needed = true
			break
		}
	}
	if !needed {
		return name, false
	}
	var builder strings.Builder
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b < 0x20 || b == 0x7f || b == '%' {
			fmt.Fprintf(&builder, "%%%02X", b)
		} else {
			builder.WriteByte(b)
		}
	}
	return builder.String(), true
}
