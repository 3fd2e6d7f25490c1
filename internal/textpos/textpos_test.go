package textpos

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestLineStarts(t *testing.T) {
	cases := []struct {
		text string
		want []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"a\r\nb", []int{0, 3}},
		{"a\rb", []int{0, 2}},
		{"a\n", []int{0, 2}},
		{"\r\n\n\r", []int{0, 2, 3, 4}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LineStarts(c.text), "text %q", c.text)
	}
}

func TestPositionOf(t *testing.T) {
	text := "* a\nłódź\r\nend"
	starts := LineStarts(text)

	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, PositionOf(starts, text, 0))
	assert.Equal(t, protocol.Position{Line: 0, Character: 3}, PositionOf(starts, text, 3))
	assert.Equal(t, protocol.Position{Line: 1, Character: 0}, PositionOf(starts, text, 4))
	// "ł" is two bytes
	assert.Equal(t, protocol.Position{Line: 1, Character: 1}, PositionOf(starts, text, 6))
	assert.Equal(t, protocol.Position{Line: 2, Character: 3}, PositionOf(starts, text, len(text)))
}

func TestOffsetOfClamps(t *testing.T) {
	text := "ab\ncd"
	starts := LineStarts(text)

	assert.Equal(t, 2, OffsetOf(starts, text, protocol.Position{Line: 0, Character: 10}))
	assert.Equal(t, len(text), OffsetOf(starts, text, protocol.Position{Line: 7, Character: 1}))
	assert.Equal(t, 3, OffsetOf(starts, text, protocol.Position{Line: 1}))
}

func TestOffsetOfCRLF(t *testing.T) {
	text := "ab\r\ncd\rx"
	starts := LineStarts(text)

	assert.Equal(t, 2, OffsetOf(starts, text, protocol.Position{Line: 0, Character: 5}))
	assert.Equal(t, 6, OffsetOf(starts, text, protocol.Position{Line: 1, Character: 5}))
	assert.Equal(t, 8, OffsetOf(starts, text, protocol.Position{Line: 2, Character: 1}))
}

func TestRoundTripOffsets(t *testing.T) {
	texts := []string{
		"",
		"* a",
		"* héllo wörld\n:LOGBOOK:\r\nCLOCK: [2000-01-01 Sat 00:00]\r:END:\n",
		"日本語\n\n😀 x\n",
	}
	for _, text := range texts {
		starts := LineStarts(text)
		for o := 0; o <= len(text); o++ {
			if o < len(text) && !utf8.RuneStart(text[o]) {
				continue
			}
			// inside a "\r\n" terminator
			if o > 0 && o < len(text) && text[o] == '\n' && text[o-1] == '\r' {
				continue
			}
			pos := PositionOf(starts, text, o)
			if got := OffsetOf(starts, text, pos); got != o {
				t.Fatalf("text %q: offset %d -> %v -> %d", text, o, pos, got)
			}
		}
	}
}

func TestRoundTripPositions(t *testing.T) {
	text := "日本語\nab\r\n😀 x"
	starts := LineStarts(text)
	lengths := []uint32{3, 2, 3}
	for line, n := range lengths {
		for c := uint32(0); c <= n; c++ {
			pos := protocol.Position{Line: uint32(line), Character: c}
			if got := PositionOf(starts, text, OffsetOf(starts, text, pos)); got != pos {
				t.Fatalf("position %v round-tripped to %v", pos, got)
			}
		}
	}
}

func TestLineOf(t *testing.T) {
	starts := LineStarts("a\nb\nc")
	assert.Equal(t, 0, LineOf(starts, 0))
	assert.Equal(t, 0, LineOf(starts, 1))
	assert.Equal(t, 1, LineOf(starts, 2))
	assert.Equal(t, 2, LineOf(starts, 5))
}
