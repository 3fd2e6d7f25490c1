// Package document holds the in-memory state of one open org file.
package document

import (
	"fmt"

	"orgls/internal/org"
	"orgls/internal/textpos"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Location identifies a document, usually by URI.
type Location string

// TextRange is a half-open byte range.
type TextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty returns a zero-width range at offset.
func Empty(offset int) TextRange { return TextRange{offset, offset} }

// Span converts an org span into a range.
func Span(s org.Span) TextRange { return TextRange{s.Start, s.End} }

// Document owns a text buffer and the line index and tree derived from it.
// It does no locking of its own.
type Document struct {
	text       string
	lineStarts []int
	tree       *org.Tree
	config     org.ParseConfig
}

// New parses text. It never fails.
func New(text string, config org.ParseConfig) *Document {
	d := &Document{config: config}
	d.reset(text)
	return d
}

func (d *Document) reset(text string) {
	d.text = text
	d.lineStarts = textpos.LineStarts(text)
	d.tree = org.Parse(text, d.config)
}

// ReplaceRange splices text into [start, end) and rebuilds the line index
// and tree.
func (d *Document) ReplaceRange(start, end int, text string) error {
	if start < 0 || start > end || end > len(d.text) {
		return fmt.Errorf("range %d..%d out of bounds for document of length %d", start, end, len(d.text))
	}
	d.reset(d.text[:start] + text + d.text[end:])
	return nil
}

// ReplaceAll swaps in a new buffer.
func (d *Document) ReplaceAll(text string) { d.reset(text) }

func (d *Document) Text() string { return d.text }

func (d *Document) Tree() *org.Tree { return d.tree }

func (d *Document) LineStarts() []int { return d.lineStarts }

func (d *Document) Config() org.ParseConfig { return d.config }

// Traverse walks the syntax tree.
func (d *Document) Traverse(v org.Visitor) { d.tree.Traverse(v) }

func (d *Document) PositionOf(offset int) protocol.Position {
	return textpos.PositionOf(d.lineStarts, d.text, offset)
}

func (d *Document) OffsetOf(pos protocol.Position) int {
	return textpos.OffsetOf(d.lineStarts, d.text, pos)
}

// LineOf returns the 0-based line of offset.
func (d *Document) LineOf(offset int) int {
	return textpos.LineOf(d.lineStarts, offset)
}

// LineCount returns the number of lines, counting a trailing empty line.
func (d *Document) LineCount() int { return len(d.lineStarts) }

func (d *Document) RangeOf(r TextRange) protocol.Range {
	return textpos.RangeOf(d.lineStarts, d.text, r.Start, r.End)
}

// HeadlineAt returns the deepest headline containing the start of the
// given 1-based line.
func (d *Document) HeadlineAt(line int) *org.Node {
	if line < 1 {
		return nil
	}
	offset := d.OffsetOf(protocol.Position{Line: uint32(line - 1)})
	return d.tree.NodeAt(offset, org.KindHeadline)
}
