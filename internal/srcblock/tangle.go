package srcblock

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"orgls/internal/document"
	"orgls/internal/org"
)

// Resolver resolves a path relative to a base location.
type Resolver func(path string, base document.Location) (document.Location, error)

// Tangle describes where and how a block is written out.
type Tangle struct {
	Destination document.Location
	// Mode is zero when no :tangle-mode is given.
	Mode    fs.FileMode
	Mkdir   bool
	Padline bool
	Shebang string
	Content string

	orgComments string
	links       *commentLinks
}

type commentLinks struct {
	begin, end string
}

// NewTangle reads the tangle header arguments of block. It returns nil
// when the block is not tangled.
func NewTangle(tree *org.Tree, block *org.Node, base document.Location, resolve Resolver) (*Tangle, error) {
	args := ArgsOf(tree, block)
	target := args.Get(":tangle", "no")
	if target == "no" {
		return nil, nil
	}

	dest, err := resolve(target, base)
	if err != nil {
		return nil, err
	}

	comments := args.Get(":comments", "no")
	shebang := args.Get(":shebang", "no")
	defaultMode := "no"
	if shebang != "no" {
		defaultMode = "o755"
	}

	t := &Tangle{
		Destination: dest,
		Mode:        parseMode(args.Get(":tangle-mode", defaultMode)),
		Mkdir:       args.Get(":mkdir", "no") != "no",
		Padline:     args.Get(":padline", "no") != "no",
		Content:     tree.ValueOf(block),
	}
	if shebang != "no" {
		t.Shebang = shebang
	}

	begin, end, ok := Comments(block.Language)
	if ok && (comments == "org" || comments == "both") {
		t.orgComments = orgComments(tree, block, begin, end)
	}
	if ok && linksEnabled(comments) {
		t.links = newCommentLinks(tree, block, dest, begin, end)
	}
	return t, nil
}

func linksEnabled(comments string) bool {
	switch comments {
	case "yes", "link", "noweb", "both":
		return true
	}
	return false
}

// parseMode accepts modes like "o755".
func parseMode(s string) fs.FileMode {
	if len(s) != 4 || s[0] != 'o' {
		return 0
	}
	v, err := strconv.ParseUint(s[1:], 8, 32)
	if err != nil {
		return 0
	}
	return fs.FileMode(v)
}

func newCommentLinks(tree *org.Tree, block *org.Node, dest document.Location, begin, end string) *commentLinks {
	title := "No heading"
	if h := block.Ancestor(org.KindHeadline); h != nil {
		title = tree.TitleOf(h)
	}
	nth := blockIndex(block)
	return &commentLinks{
		begin: strings.TrimSpace(fmt.Sprintf("%s [[%s::*%s][%s:%d]] %s", begin, dest, title, title, nth, end)),
		end:   strings.TrimSpace(fmt.Sprintf("%s %s:%d ends here %s", begin, title, nth, end)),
	}
}

// blockIndex returns the 1-based position of block among the source
// blocks of its section.
func blockIndex(block *org.Node) int {
	if block.Parent == nil {
		return 1
	}
	nth := 0
	for _, c := range block.Parent.Children {
		if c.Kind == org.KindSourceBlock {
			nth++
		}
		if c == block {
			return nth
		}
	}
	return 1
}

// orgComments renders the elements between the previous source block
// and block as comments.
func orgComments(tree *org.Tree, block *org.Node, begin, end string) string {
	if block.Parent == nil {
		return ""
	}
	var prose []*org.Node
	for _, c := range block.Parent.Children {
		if c == block {
			break
		}
		if c.Kind == org.KindSourceBlock {
			prose = prose[:0]
			continue
		}
		prose = append(prose, c)
	}

	var b strings.Builder
	for _, n := range prose {
		for _, line := range strings.Split(strings.TrimSuffix(tree.Raw(n), "\n"), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				b.WriteByte('\n')
				continue
			}
			b.WriteString(strings.TrimSpace(begin + " " + line + " " + end))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Render returns the range of existing to replace and its replacement.
// With comment links, a previously tangled region is replaced in place;
// otherwise the block is appended.
func (t *Tangle) Render(existing string) (document.TextRange, string) {
	var b strings.Builder
	if t.links != nil {
		if r, ok := findRegion(existing, t.links.begin, t.links.end); ok {
			t.writeLinked(&b)
			return r, b.String()
		}
	}

	if t.Shebang != "" {
		b.WriteString(t.Shebang)
		b.WriteByte('\n')
	}
	b.WriteString(t.orgComments)
	b.WriteByte('\n')
	if t.links != nil {
		t.writeLinked(&b)
	} else {
		b.WriteString(t.Content)
		if t.Padline {
			b.WriteByte('\n')
		}
	}
	return document.Empty(len(existing)), b.String()
}

func (t *Tangle) writeLinked(b *strings.Builder) {
	b.WriteString(t.links.begin)
	b.WriteByte('\n')
	b.WriteString(t.Content)
	if t.Padline {
		b.WriteByte('\n')
	}
	b.WriteString(t.links.end)
	b.WriteByte('\n')
}

// findRegion finds the lines from begin through end, including the
// terminator of the end line.
func findRegion(text, begin, end string) (document.TextRange, bool) {
	start := -1
	offset := 0
	for offset < len(text) {
		next := strings.IndexByte(text[offset:], '\n')
		lineEnd := len(text)
		if next >= 0 {
			lineEnd = offset + next + 1
		}
		line := strings.TrimRight(text[offset:lineEnd], "\r\n")
		switch {
		case start < 0 && line == begin:
			start = offset
		case start >= 0 && line == end:
			return document.TextRange{Start: start, End: lineEnd}, true
		}
		offset = lineEnd
	}
	return document.TextRange{}, false
}

// Detangle describes how to read a block back from its tangled file.
type Detangle struct {
	Destination document.Location
	// Contents is the block body to replace.
	Contents document.TextRange

	links *commentLinks
}

// NewDetangle returns nil when the block is not tangled.
func NewDetangle(tree *org.Tree, block *org.Node, base document.Location, resolve Resolver) (*Detangle, error) {
	args := ArgsOf(tree, block)
	target := args.Get(":tangle", "no")
	if target == "no" {
		return nil, nil
	}
	dest, err := resolve(target, base)
	if err != nil {
		return nil, err
	}
	d := &Detangle{Destination: dest, Contents: document.Span(block.Contents)}
	if begin, end, ok := Comments(block.Language); ok && linksEnabled(args.Get(":comments", "no")) {
		d.links = newCommentLinks(tree, block, dest, begin, end)
	}
	return d, nil
}

// Extract returns the new block body from the tangled file content.
func (d *Detangle) Extract(content string) string {
	if d.links == nil {
		return content
	}
	var b strings.Builder
	inside := false
	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inside {
			inside = trimmed == d.links.begin
			continue
		}
		if trimmed == d.links.end {
			break
		}
		b.WriteString(strings.TrimRight(line, "\r\n"))
		b.WriteByte('\n')
	}
	return b.String()
}
