// Package format computes the edits that normalise an org document:
// blank lines after elements, horizontal rules and list bullets.
package format

import (
	"fmt"
	"strings"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/org"
)

// Options selects the optional rewrites.
type Options struct {
	// Lists renumbers ordered lists, unifies bullets and indents nested
	// lists by three spaces per level.
	Lists bool `json:"formatLists" yaml:"formatLists" toml:"formatLists"`
}

func DefaultOptions() Options {
	return Options{Lists: true}
}

type formatter struct {
	text   string
	target document.Location
	edits  []edit.Edit
}

func (f *formatter) add(start, end int, replacement string) {
	f.edits = append(f.edits, edit.Edit{
		Target:      f.target,
		Replacement: replacement,
		Range:       document.TextRange{Start: start, End: end},
	})
}

// Edits returns the formatting edits for tree, in document order.
func Edits(target document.Location, tree *org.Tree, opts Options) []edit.Edit {
	f := &formatter{text: tree.Text(), target: target}
	f.blankLines(0, leadingBlank(f.text))

	level := 0
	tree.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if n.Kind == org.KindList && ev == org.Leave {
			level--
			return org.Continue
		}
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindRule:
			f.rule(n)
			f.blankLines(n.Blank, n.End)
		case org.KindList:
			if opts.Lists {
				f.list(n, level)
			}
			f.blankLines(n.Blank, n.End)
			level++
		case org.KindClock, org.KindParagraph, org.KindTable, org.KindBlock, org.KindSourceBlock:
			f.blankLines(n.Blank, n.End)
		}
		return org.Continue
	})
	return f.edits
}

// leadingBlank returns the end of the blank lines at the start of text.
func leadingBlank(text string) int {
	end := 0
	for end < len(text) {
		next := lineEnd(text, end)
		if strings.TrimSpace(text[end:next]) != "" {
			break
		}
		end = next
	}
	return end
}

// lineEnd returns the start of the line after the one starting at offset.
func lineEnd(text string, offset int) int {
	i := strings.IndexAny(text[offset:], "\r\n")
	if i < 0 {
		return len(text)
	}
	i += offset
	if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
		return i + 2
	}
	return i + 1
}

// blankLines keeps one blank line in [start, end) and drops the rest.
func (f *formatter) blankLines(start, end int) {
	if start >= end {
		return
	}
	first := lineEnd(f.text, start)
	if first > end {
		first = end
	}
	if f.text[start:first] != "\n" {
		f.add(start, first, "\n")
	}
	if first < end {
		f.add(first, end, "")
	}
}

func (f *formatter) rule(n *org.Node) {
	if f.text[n.Begin:n.LineEnd] != "-----" {
		f.add(n.Begin, n.LineEnd, "-----")
	}
	if term := f.text[n.LineEnd:n.Blank]; term != "" && term != "\n" {
		f.add(n.LineEnd, n.Blank, "\n")
	}
}

// list rewrites the items of one list. The first item decides between a
// plain bullet and numbering with "." or ")".
func (f *formatter) list(n *org.Node, level int) {
	var items []*org.Node
	for _, c := range n.Children {
		if c.Kind == org.KindListItem {
			items = append(items, c)
		}
	}
	if len(items) == 0 {
		return
	}

	indent := strings.Repeat(" ", 3*level)
	first := f.text[items[0].Bullet.Start:items[0].Bullet.End]
	ordered := first != "-" && first != "+" && first != "*"
	delim := "."
	if strings.HasSuffix(first, ")") {
		delim = ")"
	}

	for i, item := range items {
		if item.Indent != len(indent) {
			f.add(item.Start, item.Start+item.Indent, indent)
		}
		want := first
		if ordered {
			want = fmt.Sprintf("%d%s", i+1, delim)
		}
		if f.text[item.Bullet.Start:item.Bullet.End] != want {
			f.add(item.Bullet.Start, item.Bullet.End, want)
		}
	}
}
