// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hashlist

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimeFormat is the timestamp layout MHL files use.
const TimeFormat = "2006-01-02T15:04:05Z"

// Version is the MHL version written by WriteXML.
const Version = "1.1"

// CreatorInfo records who produced the list and when.
type CreatorInfo struct {
	Name       string
	Username   string
	Hostname   string
	Tool       string
	StartDate  time.Time
	FinishDate time.Time
}

// TapeInfo identifies the tape the listed files were written to.
type TapeInfo struct {
	Name    string
	Serial  string
	Vendor  string
	Product string
}

// Entry is one hashed file.
type Entry struct {
	// File is the NFC-normalized path relative to the tape root.
	File             string
	Size             int64
	LastModification time.Time
	// XXHash64BE is the lower-case hex XXH64 digest.
	XXHash64BE string
	HashDate   time.Time
}

// List is a parsed hash list.
type List struct {
	Version string
	Creator CreatorInfo
	// Tape is nil when the file has no tapeinfo element.
	Tape    *TapeInfo
	Entries []Entry
}

// xmlList mirrors the document. Dates are strings because unparsable
// dates are dropped rather than failing the whole list.
type xmlList struct {
	XMLName xml.Name   `xml:"hashlist"`
	Version string     `xml:"version,attr"`
	Creator xmlCreator `xml:"creatorinfo"`
	Tape    *xmlTape   `xml:"tapeinfo"`
	Hashes  []xmlHash  `xml:"hash"`
}

type xmlCreator struct {
	Name       string `xml:"name,omitempty"`
	Username   string `xml:"username,omitempty"`
	Hostname   string `xml:"hostname,omitempty"`
	Tool       string `xml:"tool,omitempty"`
	StartDate  string `xml:"startdate,omitempty"`
	FinishDate string `xml:"finishdate,omitempty"`
}

type xmlTape struct {
	Name    string `xml:"name,omitempty"`
	Serial  string `xml:"serial,omitempty"`
	Vendor  string `xml:"vendor,omitempty"`
	Product string `xml:"product,omitempty"`
}

type xmlHash struct {
	File             string `xml:"file"`
	Size             string `xml:"size"`
	LastModification string `xml:"lastmodificationdate,omitempty"`
	XXHash64BE       string `xml:"xxhash64be"`
	HashDate         string `xml:"hashdate,omitempty"`
}

// Parse decodes a hash list from r. source names the input in errors.
func Parse(r io.Reader, source string) (*List, error) {
	var document xmlList
	if err := xml.NewDecoder(r).Decode(&document); err != nil {
		return nil, fmt.Errorf("hashlist: %s: %w", source, err)
	}

	list := &List{
		Version: document.Version,
		Creator: CreatorInfo{
			Name:       document.Creator.Name,
			Username:   document.Creator.Username,
			Hostname:   document.Creator.Hostname,
			Tool:       document.Creator.Tool,
			StartDate:  parseTime(document.Creator.StartDate),
			FinishDate: parseTime(document.Creator.FinishDate),
		},
		Entries: make([]Entry, 0, len(document.Hashes)),
	}
	if list.Version == "" {
		list.Version = Version
	}
	if document.Tape != nil {
		list.Tape = &TapeInfo{
			Name:    strings.TrimSpace(document.Tape.Name),
			Serial:  strings.TrimSpace(document.Tape.Serial),
			Vendor:  document.Tape.Vendor,
			Product: document.Tape.Product,
		}
	}

	for i, hash := range document.Hashes {
		file := norm.NFC.String(strings.TrimSpace(hash.File))
		if file == "" {
			return nil, fmt.Errorf("hashlist: %s: hash %d has no file", source, i+1)
		}
		size := int64(0)
		if text := strings.TrimSpace(hash.Size); text != "" {
			parsed, err := strconv.ParseInt(text, 10, 64)
			if err != nil || parsed < 0 {
				return nil, fmt.Errorf("hashlist: %s: hash %d (%s): invalid size %q", source, i+1, file, hash.Size)
			}
			size = parsed
		}
		list.Entries = append(list.Entries, Entry{
			File:             file,
			Size:             size,
			LastModification: parseTime(hash.LastModification),
			XXHash64BE:       strings.ToLower(strings.TrimSpace(hash.XXHash64BE)),
			HashDate:         parseTime(hash.HashDate),
		})
	}
	return list, nil
}

// Load reads and parses the hash list at path.
func Load(path string) (*List, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hashlist: %w", err)
	}
	defer file.Close()
	return Parse(file, path)
}

// TapeName picks the tape a list belongs to: explicit when non-empty,
// else the list's tapeinfo name, else the part of the file name before
// the first underscore ("LTO001_projects_20250101.mhl" → "LTO001").
func (l *List) TapeName(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	if l.Tape != nil && l.Tape.Name != "" {
		return l.Tape.Name
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name, _, _ := strings.Cut(stem, "_")
	return name
}

// WriteXML encodes the list as an indented MHL document.
func (l *List) WriteXML(w io.Writer) error {
	document := xmlList{
		Version: l.Version,
		Creator: xmlCreator{
			Name:       l.Creator.Name,
			Username:   l.Creator.Username,
			Hostname:   l.Creator.Hostname,
			Tool:       l.Creator.Tool,
			StartDate:  formatTime(l.Creator.StartDate),
			FinishDate: formatTime(l.Creator.FinishDate),
		},
	}
	if document.Version == "" {
		document.Version = Version
	}
	if l.Tape != nil {
		document.Tape = &xmlTape{Name: l.Tape.Name, Serial: l.Tape.Serial, Vendor: l.Tape.Vendor, Product: l.Tape.Product}
	}
	for _, entry := range l.Entries {
		document.Hashes = append(document.Hashes, xmlHash{
			File:             sanitize(norm.NFC.String(entry.File)),
			Size:             strconv.FormatInt(entry.Size, 10),
			LastModification: formatTime(entry.LastModification),
			XXHash64BE:       entry.XXHash64BE,
			HashDate:         formatTime(entry.HashDate),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "    ")
	if err := encoder.Encode(document); err != nil {
		return fmt.Errorf("hashlist: encoding: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func parseTime(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(TimeFormat, text); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return parsed.UTC()
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// sanitize drops runes XML 1.0 cannot carry, which some filesystems
// allow in names.
func sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r >= 0x7f && r <= 0x9f, r == 0xfffe, r == 0xffff:
			return -1
		}
		return r
	}, text)
}
