package edit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"orgls/internal/document"
	"orgls/internal/env"

	"github.com/charmbracelet/lipgloss"
	"github.com/sourcegraph/go-diff/diff"
)

// Marker renders a replaced span in a preview.
type Marker func(s string) string

var changed = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

// Highlight marks replacements in cyan.
func Highlight(s string) string { return changed.Render(s) }

// DryRunApplier never writes. It prints every target either as its
// original text with replacements marked, or as a unified diff.
type DryRunApplier struct {
	storage env.Storage
	mark    Marker
	diff    bool

	mu  sync.Mutex
	out io.Writer
}

// NewDryRunApplier returns an applier that previews edits on out. A nil
// marker uses Highlight.
func NewDryRunApplier(storage env.Storage, out io.Writer, mark Marker) *DryRunApplier {
	if mark == nil {
		mark = Highlight
	}
	return &DryRunApplier{storage: storage, out: out, mark: mark}
}

// WithDiff switches the preview to unified diffs.
func (a *DryRunApplier) WithDiff() *DryRunApplier {
	a.diff = true
	return a
}

func (a *DryRunApplier) Mode() string { return "dry-run" }

func (a *DryRunApplier) Apply(ctx context.Context, target document.Location, edits []Edit) error {
	text, err := readOrEmpty(ctx, a.storage, target)
	if err != nil {
		return err
	}

	var rendered string
	if a.diff {
		rendered, err = UnifiedDiff(target, text, edits)
	} else {
		rendered, err = Render(text, edits, a.mark)
	}
	if err != nil {
		return err
	}

	// targets are rendered concurrently; keep each one contiguous
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = io.WriteString(a.out, rendered)
	return err
}

// Render returns text with sorted edits applied and every replacement
// that changes the text passed through mark.
func Render(text string, sorted []Edit, mark Marker) (string, error) {
	var b strings.Builder
	cursor := 0
	for _, ed := range sorted {
		if ed.Range.Start < cursor || ed.Range.End > len(text) {
			return "", fmt.Errorf("%w: %d..%d in text of length %d", ErrOutOfBounds, ed.Range.Start, ed.Range.End, len(text))
		}
		b.WriteString(text[cursor:ed.Range.Start])
		if text[ed.Range.Start:ed.Range.End] == ed.Replacement {
			b.WriteString(ed.Replacement)
		} else {
			b.WriteString(mark(ed.Replacement))
		}
		cursor = ed.Range.End
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

// UnifiedDiff renders sorted edits as a single-hunk diff covering the
// lines they touch. Edits that change nothing produce no output.
func UnifiedDiff(target document.Location, text string, sorted []Edit) (string, error) {
	out, err := Splice(text, sorted)
	if err != nil {
		return "", err
	}
	if out == text || len(sorted) == 0 {
		return "", nil
	}

	from := lineStart(text, sorted[0].Range.Start)
	to := lineEnd(text, sorted[len(sorted)-1].Range.End)
	shifted := make([]Edit, len(sorted))
	for i, ed := range sorted {
		ed.Range.Start -= from
		ed.Range.End -= from
		shifted[i] = ed
	}
	newChunk, err := Splice(text[from:to], shifted)
	if err != nil {
		return "", err
	}

	oldLines := splitKeep(text[from:to])
	newLines := splitKeep(newChunk)
	var body strings.Builder
	var origNoNewlineAt int32
	for _, l := range oldLines {
		body.WriteString("-" + l)
	}
	if n := len(oldLines); n > 0 && !strings.HasSuffix(oldLines[n-1], "\n") {
		body.WriteByte('\n')
		origNoNewlineAt = int32(body.Len())
	}
	// a new side without a final newline is marked by the printer
	for _, l := range newLines {
		body.WriteString("+" + l)
	}

	startLine := int32(strings.Count(text[:from], "\n")) + 1
	hunk := &diff.Hunk{
		OrigStartLine: startLine,
		OrigLines:     int32(len(oldLines)),
		NewStartLine:  startLine,
		NewLines:      int32(len(newLines)),
		Body:          []byte(body.String()),

		OrigNoNewlineAt: origNoNewlineAt,
	}
	if len(oldLines) == 0 {
		hunk.OrigStartLine--
	}
	if len(newLines) == 0 {
		hunk.NewStartLine--
	}
	fd := &diff.FileDiff{
		OrigName: "a/" + string(target),
		NewName:  "b/" + string(target),
		Hunks:    []*diff.Hunk{hunk},
	}
	printed, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("failed to print diff: %w", err)
	}
	return string(printed), nil
}

func lineStart(text string, offset int) int {
	return strings.LastIndexByte(text[:offset], '\n') + 1
}

func lineEnd(text string, offset int) int {
	if offset > 0 && text[offset-1] == '\n' && offset == lineStart(text, offset) {
		// the range ends exactly at a line start
		return offset
	}
	if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
		return offset + i + 1
	}
	return len(text)
}

// splitKeep splits s into lines that keep their newline. Only the last
// line can lack one.
func splitKeep(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
