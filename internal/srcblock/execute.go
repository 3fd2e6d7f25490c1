package srcblock

import (
	"strings"

	"orgls/internal/document"
	"orgls/internal/org"
)

// Format is the :results rendering of a block's output.
type Format int

const (
	FormatCode Format = iota
	FormatList
	FormatVerbatim
	FormatHTML
	FormatLatex
	FormatRaw
)

// ParseResults maps a :results value such as "output code" to a format.
func ParseResults(s string) (Format, bool) {
	fields := strings.Fields(s)
	if len(fields) == 2 && fields[0] == "output" {
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return 0, false
	}
	switch fields[0] {
	case "code":
		return FormatCode, true
	case "list":
		return FormatList, true
	case "scalar", "verbatim":
		return FormatVerbatim, true
	case "html":
		return FormatHTML, true
	case "latex":
		return FormatLatex, true
	case "raw":
		return FormatRaw, true
	}
	return 0, false
}

// Execution describes how to run a block and where its results go.
type Execution struct {
	Format  Format
	Program string
	Content string
	// Results is the range of existing results, or an empty range at
	// the end of the block.
	Results document.TextRange
}

// NewExecution returns false when the block has no usable :results or
// no known interpreter.
func NewExecution(tree *org.Tree, block *org.Node) (*Execution, bool) {
	results := ArgsOf(tree, block).Get(":results", "no")
	if results == "no" {
		return nil, false
	}
	format, ok := ParseResults(results)
	if !ok {
		return nil, false
	}
	program, ok := Program(block.Language)
	if !ok {
		return nil, false
	}
	r, ok := ExistingResults(block)
	if !ok {
		r = document.Empty(block.End)
	}
	return &Execution{
		Format:  format,
		Program: program,
		Content: tree.ValueOf(block),
		Results: r,
	}, true
}

// ExistingResults returns the range of the element holding the block's
// previous results: the next sibling when it carries a RESULTS keyword.
func ExistingResults(block *org.Node) (document.TextRange, bool) {
	next := block.NextSibling()
	if next == nil || !next.HasAffiliated("RESULTS") {
		return document.TextRange{}, false
	}
	switch next.Kind {
	case org.KindSourceBlock, org.KindBlock, org.KindList, org.KindTable, org.KindFixedWidth:
		return document.TextRange{Start: next.Begin, End: next.Blank}, true
	}
	return document.TextRange{}, false
}

// Render formats output for insertion at e.Results.
func (e *Execution) Render(output string) string {
	var b strings.Builder
	lines := splitLines(output)
	wrap := func(open, close string) {
		b.WriteString(open + "\n")
		for _, l := range lines {
			b.WriteString(l + "\n")
		}
		b.WriteString(close + "\n")
	}
	switch e.Format {
	case FormatCode:
		wrap("#+begin_src", "#+end_src")
	case FormatHTML:
		wrap("#+begin_export html", "#+end_export")
	case FormatLatex:
		wrap("#+begin_export latex", "#+end_export")
	case FormatList:
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	case FormatVerbatim:
		for _, l := range lines {
			b.WriteString(": " + l + "\n")
		}
	case FormatRaw:
		b.WriteString(output)
	}

	if e.Results.Start == e.Results.End {
		return "\n#+RESULTS:\n" + b.String() + "\n"
	}
	return b.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
