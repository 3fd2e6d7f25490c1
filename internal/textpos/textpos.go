// Package textpos converts between byte offsets and line/character
// positions. Characters are counted in Unicode scalar values.
package textpos

import (
	"sort"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// LineStarts returns the byte offset of every line start in text.
// A line ends at "\n" or at a "\r" that is not followed by "\n".
func LineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			starts = append(starts, i+1)
		}
	}
	return starts
}

// LineOf returns the 0-based line containing offset.
func LineOf(lineStarts []int, offset int) int {
	// first line start strictly greater than offset, minus one
	i := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > offset })
	if i == 0 {
		return 0
	}
	return i - 1
}

// PositionOf converts a byte offset into a position.
func PositionOf(lineStarts []int, text string, offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	line := LineOf(lineStarts, offset)
	start := lineStarts[line]
	if start == offset {
		return protocol.Position{Line: uint32(line)}
	}
	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(utf8.RuneCountInString(text[start:offset])),
	}
}

// OffsetOf converts a position into a byte offset. Characters past the
// end of the line clamp to the end of the line, lines past the end of
// the text clamp to the end of the text.
func OffsetOf(lineStarts []int, text string, pos protocol.Position) int {
	line := int(pos.Line)
	if line >= len(lineStarts) {
		return len(text)
	}
	start := lineStarts[line]
	if pos.Character == 0 {
		return start
	}

	end := lineEnd(lineStarts, text, line)
	offset := start
	for n := uint32(0); n < pos.Character && offset < end; n++ {
		_, size := utf8.DecodeRuneInString(text[offset:end])
		offset += size
	}
	return offset
}

// RangeOf converts a byte range into a protocol range.
func RangeOf(lineStarts []int, text string, start, end int) protocol.Range {
	return protocol.Range{
		Start: PositionOf(lineStarts, text, start),
		End:   PositionOf(lineStarts, text, end),
	}
}

// lineEnd returns the offset of the line terminator of line, or the end
// of the text for the last line.
func lineEnd(lineStarts []int, text string, line int) int {
	if line+1 >= len(lineStarts) {
		return len(text)
	}
	end := lineStarts[line+1]
	if end > 0 && text[end-1] == '\n' {
		end--
	}
	if end > lineStarts[line] && text[end-1] == '\r' {
		end--
	}
	return end
}
