package document

import (
	"testing"

	"orgls/internal/org"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestReplaceRangeRederives(t *testing.T) {
	doc := New("* a", org.DefaultParseConfig())
	if err := doc.ReplaceRange(3, 3, "\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 00:00]\n:END:\n"); err != nil {
		t.Fatalf("ReplaceRange failed: %v", err)
	}

	want := "* a\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 00:00]\n:END:\n"
	if doc.Text() != want {
		t.Fatalf("text = %q, want %q", doc.Text(), want)
	}
	if got := doc.LineOf(4); got != 1 {
		t.Errorf("LineOf(4) = %d, want 1", got)
	}
	if got := len(doc.LineStarts()); got != 5 {
		t.Errorf("expected 5 line starts, got %d", got)
	}
	h := doc.Tree().Root.Headlines()[0]
	if h.Logbook() == nil {
		t.Errorf("expected the tree to be reparsed with a logbook")
	}
}

func TestReplaceRangeOutOfBounds(t *testing.T) {
	doc := New("abc", org.DefaultParseConfig())
	if err := doc.ReplaceRange(2, 10, "x"); err == nil {
		t.Fatalf("expected an error for an out of range edit")
	}
	if doc.Text() != "abc" {
		t.Errorf("document changed after a failed edit: %q", doc.Text())
	}
}

func TestRangeOf(t *testing.T) {
	doc := New("ab\ncdé\n", org.DefaultParseConfig())
	got := doc.RangeOf(TextRange{Start: 1, End: 7})
	want := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 1},
		End:   protocol.Position{Line: 1, Character: 3},
	}
	if got != want {
		t.Errorf("RangeOf = %v, want %v", got, want)
	}
}

func TestHeadlineAt(t *testing.T) {
	doc := New("\n* a\nbody\n", org.DefaultParseConfig())
	if h := doc.HeadlineAt(1); h != nil {
		t.Errorf("expected no headline on line 1")
	}
	h := doc.HeadlineAt(3)
	if h == nil || doc.Tree().TitleOf(h) != "a" {
		t.Fatalf("expected headline a on line 3, got %v", h)
	}
}
