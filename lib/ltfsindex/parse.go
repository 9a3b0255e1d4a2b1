// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ltfsindex

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parse decodes one LTFS index document from r. Source labels the
// input in errors and in Snapshot.Source.
func Parse(r io.Reader, source string) (*Snapshot, error) {
	p := newParser(r, source)
	if err := p.parseDocument(); err != nil {
		return nil, err
	}
	return p.assemble(), nil
}

// ParseHeader decodes only the volume header, stopping at the root
// directory element. LTFS writers emit every header field before the
// tree, so this reads a few hundred bytes of even the largest index.
func ParseHeader(r io.Reader, source string) (Header, error) {
	p := newParser(r, source)
	p.headerOnly = true
	if err := p.parseDocument(); err != nil {
		return Header{}, err
	}
	return p.header, nil
}

// errHeaderComplete stops a header-only parse once the tree begins.
var errHeaderComplete = errors.New("header complete")

type rawDirectory struct {
	name     string
	readOnly bool
	uid      string
	times    Times
	dirs     []int
	files    []int
}

type rawFile struct {
	name     string
	size     uint64
	readOnly bool
	uid      string
	symlink  string
	times    Times
	extents  []rawExtent
}

type rawExtent struct {
	Extent
	hasFileOffset bool
}

type parser struct {
	decoder    *xml.Decoder
	source     string
	headerOnly bool

	// stack holds the local names of the elements currently open, for
	// ParseError.Element.
	stack []string

	header        Header
	sawUUID       bool
	sawGeneration bool
	dirs          []rawDirectory
	files         []rawFile
	root          int
}

func newParser(r io.Reader, source string) *parser {
	return &parser{
		decoder: xml.NewDecoder(r),
		source:  source,
		root:    -1,
		header:  Header{Location: PartitionPrimary},
	}
}

// accepted reports whether an element belongs to the LTFS vocabulary.
// Some writers omit the default namespace declaration; unqualified
// elements are accepted for them. Elements from any other namespace
// are vendor extensions and are skipped.
func accepted(name xml.Name) bool {
	return name.Space == Namespace || name.Space == ""
}

func (p *parser) push(name string) { p.stack = append(p.stack, name) }
func (p *parser) pop()             { p.stack = p.stack[:len(p.stack)-1] }

func (p *parser) fail(err error) error {
	return p.failIn("", err)
}

// failIn builds a ParseError for a failure in child element name of
// the current element. An empty name reports the current element.
func (p *parser) failIn(name string, err error) error {
	line, column := p.decoder.InputPos()
	element := strings.Join(p.stack, "/")
	if name != "" {
		if element != "" {
			element += "/"
		}
		element += name
	}
	return &ParseError{
		Source:  p.source,
		Element: element,
		Line:    line,
		Column:  column,
		Err:     err,
	}
}

func (p *parser) token() (xml.Token, error) {
	token, err := p.decoder.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, p.fail(io.ErrUnexpectedEOF)
		}
		return nil, p.fail(err)
	}
	return token, nil
}

func (p *parser) skip() error {
	if err := p.decoder.Skip(); err != nil {
		return p.fail(err)
	}
	return nil
}

// children iterates the child elements of start, calling handle for
// each accepted one. handle must consume its element completely.
func (p *parser) children(start xml.StartElement, handle func(child xml.StartElement) error) error {
	p.push(start.Name.Local)
	defer p.pop()
	for {
		token, err := p.token()
		if err != nil {
			return err
		}
		switch element := token.(type) {
		case xml.StartElement:
			if !accepted(element.Name) {
				if err := p.skip(); err != nil {
					return err
				}
				continue
			}
			if err := handle(element); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// rawText returns the character data of start without trimming.
// Nested elements are skipped.
func (p *parser) rawText(start xml.StartElement) (string, error) {
	p.push(start.Name.Local)
	defer p.pop()
	var builder strings.Builder
	for {
		token, err := p.token()
		if err != nil {
			return "", err
		}
		switch element := token.(type) {
		case xml.CharData:
			builder.Write(element)
		case xml.StartElement:
			if err := p.skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return builder.String(), nil
		}
	}
}

func (p *parser) text(start xml.StartElement) (string, error) {
	text, err := p.rawText(start)
	return strings.TrimSpace(text), err
}

// name decodes a name element, honoring the percentencoded attribute
// LTFS 2.4 uses for characters XML cannot carry.
func (p *parser) name(start xml.StartElement) (string, error) {
	text, err := p.rawText(start)
	if err != nil {
		return "", err
	}
	for _, attribute := range start.Attr {
		if attribute.Name.Local == "percentencoded" && attribute.Value == "true" {
			decoded, err := url.PathUnescape(text)
			if err != nil {
				return "", p.failIn(start.Name.Local, fmt.Errorf("invalid percent-encoded name %q", text))
			}
			return decoded, nil
		}
	}
	return text, nil
}

func (p *parser) unsigned(start xml.StartElement) (uint64, error) {
	text, err := p.text(start)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, p.failIn(start.Name.Local, fmt.Errorf("invalid unsigned integer %q", text))
	}
	return value, nil
}

func (p *parser) boolean(start xml.StartElement) (bool, error) {
	text, err := p.text(start)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(text)
	if err != nil {
		return false, p.failIn(start.Name.Local, fmt.Errorf("invalid boolean %q", text))
	}
	return value, nil
}

// timestamp parses an LTFS time value. An empty element means the
// time is unset.
func (p *parser) timestamp(start xml.StartElement) (*time.Time, error) {
	text, err := p.text(start)
	if err != nil || text == "" {
		return nil, err
	}
	value, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return nil, p.failIn(start.Name.Local, fmt.Errorf("invalid timestamp %q", text))
	}
	value = value.UTC()
	return &value, nil
}

func (p *parser) partition(start xml.StartElement) (Partition, error) {
	text, err := p.text(start)
	if err != nil {
		return "", err
	}
	partition, err := ParsePartition(text)
	if err != nil {
		return "", p.failIn(start.Name.Local, err)
	}
	return partition, nil
}

// setTime stores value into the Times field named by an LTFS element
// and reports whether element was a timestamp.
func setTime(times *Times, element string, value *time.Time) bool {
	switch element {
	case "creationtime":
		times.Creation = value
	case "changetime":
		times.Change = value
	case "modifytime":
		times.Modify = value
	case "accesstime":
		times.Access = value
	case "backuptime":
		times.Backup = value
	default:
		return false
	}
	return true
}

func isTimeElement(element string) bool {
	return setTime(&Times{}, element, nil)
}

func (p *parser) parseDocument() error {
	for {
		token, err := p.decoder.Token()
		if errors.Is(err, io.EOF) {
			return p.fail(errors.New("document has no ltfsindex element"))
		}
		if err != nil {
			return p.fail(err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !accepted(start.Name) || start.Name.Local != "ltfsindex" {
			return p.fail(fmt.Errorf("root element is <%s>, want <ltfsindex>", start.Name.Local))
		}
		return p.parseIndex(start)
	}
}

func (p *parser) parseIndex(start xml.StartElement) error {
	for _, attribute := range start.Attr {
		if attribute.Name.Local == "version" {
			p.header.Version = attribute.Value
		}
	}

	err := p.children(start, func(child xml.StartElement) error {
		var err error
		switch child.Name.Local {
		case "volumeuuid":
			var text string
			if text, err = p.text(child); err != nil {
				return err
			}
			id, parseErr := uuid.Parse(text)
			if parseErr != nil {
				return p.failIn(child.Name.Local, fmt.Errorf("invalid volume UUID %q", text))
			}
			p.header.VolumeUUID = id.String()
			p.sawUUID = true
		case "generationnumber":
			p.header.Generation, err = p.unsigned(child)
			p.sawGeneration = true
		case "updatetime":
			p.header.UpdateTime, err = p.timestamp(child)
		case "creator":
			p.header.Creator, err = p.text(child)
		case "comment":
			p.header.Comment, err = p.text(child)
		case "highestfileuid":
			p.header.HighestFileUID, err = p.unsigned(child)
		case "location":
			err = p.children(child, func(field xml.StartElement) error {
				var err error
				switch field.Name.Local {
				case "partition":
					p.header.Location, err = p.partition(field)
				case "startblock":
					p.header.LocationBlock, err = p.unsigned(field)
				default:
					err = p.skip()
				}
				return err
			})
		case "directory":
			if p.headerOnly {
				return errHeaderComplete
			}
			if p.root >= 0 {
				return p.failIn(child.Name.Local, errors.New("index has more than one root directory"))
			}
			p.root, err = p.parseDirectory(child)
		default:
			err = p.skip()
		}
		return err
	})
	if err != nil && !(p.headerOnly && errors.Is(err, errHeaderComplete)) {
		return err
	}

	p.push(start.Name.Local)
	defer p.pop()
	if !p.sawUUID {
		return p.fail(errors.New("missing volumeuuid"))
	}
	if !p.sawGeneration {
		return p.fail(errors.New("missing generationnumber"))
	}
	if p.headerOnly {
		return nil
	}
	if p.root < 0 {
		return p.fail(errors.New("missing root directory"))
	}
	return nil
}

func (p *parser) parseDirectory(start xml.StartElement) (int, error) {
	index := len(p.dirs)
	p.dirs = append(p.dirs, rawDirectory{})

	err := p.children(start, func(child xml.StartElement) error {
		// p.dirs may grow while contents are parsed; always index it
		// rather than holding a pointer across the recursion.
		switch element := child.Name.Local; {
		case element == "name":
			name, err := p.name(child)
			p.dirs[index].name = name
			return err
		case element == "readonly":
			readOnly, err := p.boolean(child)
			p.dirs[index].readOnly = readOnly
			return err
		case element == "fileuid":
			uid, err := p.text(child)
			p.dirs[index].uid = uid
			return err
		case isTimeElement(element):
			value, err := p.timestamp(child)
			setTime(&p.dirs[index].times, element, value)
			return err
		case element == "contents":
			return p.children(child, func(entry xml.StartElement) error {
				switch entry.Name.Local {
				case "directory":
					childIndex, err := p.parseDirectory(entry)
					if err != nil {
						return err
					}
					p.dirs[index].dirs = append(p.dirs[index].dirs, childIndex)
				case "file":
					fileIndex, err := p.parseFile(entry)
					if err != nil {
						return err
					}
					p.dirs[index].files = append(p.dirs[index].files, fileIndex)
				default:
					return p.skip()
				}
				return nil
			})
		default:
			return p.skip()
		}
	})
	return index, err
}

func (p *parser) parseFile(start xml.StartElement) (int, error) {
	var file rawFile
	err := p.children(start, func(child xml.StartElement) error {
		var err error
		switch element := child.Name.Local; {
		case element == "name":
			file.name, err = p.name(child)
		case element == "length":
			file.size, err = p.unsigned(child)
		case element == "readonly":
			file.readOnly, err = p.boolean(child)
		case element == "fileuid":
			file.uid, err = p.text(child)
		case element == "symlink":
			file.symlink, err = p.rawText(child)
		case isTimeElement(element):
			var value *time.Time
			value, err = p.timestamp(child)
			setTime(&file.times, element, value)
		case element == "extentinfo":
			err = p.children(child, func(entry xml.StartElement) error {
				if entry.Name.Local != "extent" {
					return p.skip()
				}
				extent, err := p.parseExtent(entry)
				if err != nil {
					return err
				}
				file.extents = append(file.extents, extent)
				return nil
			})
		default:
			err = p.skip()
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	p.files = append(p.files, file)
	return len(p.files) - 1, nil
}

func (p *parser) parseExtent(start xml.StartElement) (rawExtent, error) {
	var extent rawExtent
	sawPartition := false
	err := p.children(start, func(field xml.StartElement) error {
		var err error
		switch field.Name.Local {
		case "fileoffset":
			extent.FileOffset, err = p.unsigned(field)
			extent.hasFileOffset = true
		case "partition":
			extent.Partition, err = p.partition(field)
			sawPartition = true
		case "startblock":
			extent.StartBlock, err = p.unsigned(field)
		case "byteoffset":
			extent.ByteOffset, err = p.unsigned(field)
		case "bytecount":
			extent.ByteCount, err = p.unsigned(field)
		default:
			err = p.skip()
		}
		return err
	})
	if err == nil && !sawPartition {
		p.push(start.Name.Local)
		err = p.fail(errors.New("extent has no partition"))
		p.pop()
	}
	return extent, err
}
