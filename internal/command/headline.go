package command

import (
	"context"
	"strings"
	"time"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/index"
	"orgls/internal/manager"
	"orgls/internal/org"
)

// HeadlineCreate appends a headline to the end of a document.
type HeadlineCreate struct {
	URL       document.Location `json:"url" validate:"required"`
	Priority  string            `json:"priority,omitempty"`
	Keyword   string            `json:"keyword,omitempty"`
	Heading   string            `json:"title,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Section   string            `json:"section,omitempty"`
	Scheduled *time.Time        `json:"scheduled,omitempty"`
	Deadline  *time.Time        `json:"deadline,omitempty"`
}

// HeadlineLocation points at a headline by its 1-based line.
type HeadlineLocation struct {
	URL  document.Location `json:"url"`
	Line int               `json:"line"`
}

func (*HeadlineCreate) Name() string  { return "headline-create" }
func (*HeadlineCreate) Title() string { return "Create headline" }

func (cmd *HeadlineCreate) Execute(ctx context.Context, c *Context) (any, error) {
	type target struct{ end, lines int }
	t, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) target {
		return target{len(doc.Text()), doc.LineCount()}
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("\n*")
	if cmd.Keyword != "" {
		b.WriteString(" " + cmd.Keyword)
	}
	if cmd.Priority != "" {
		b.WriteString(" [#" + cmd.Priority + "]")
	}
	b.WriteString(" " + firstLine(cmd.Heading))
	if len(cmd.Tags) > 0 {
		b.WriteString(" :" + strings.Join(cmd.Tags, ":") + ":")
	}
	b.WriteByte('\n')
	b.WriteString(planningLine(cmd.Scheduled, cmd.Deadline))
	if cmd.Section != "" {
		b.WriteString(cmd.Section + "\n")
	}

	err := c.apply(ctx, []edit.Edit{{Target: cmd.URL, Replacement: b.String(), Range: document.Empty(t.end)}})
	if err != nil {
		return nil, err
	}
	return HeadlineLocation{URL: cmd.URL, Line: t.lines + 1}, nil
}

// HeadlineUpdate rewrites the parts of a headline that are set. An empty
// string or list removes the part.
type HeadlineUpdate struct {
	URL       document.Location `json:"url" validate:"required"`
	Line      int               `json:"line" validate:"min=1"`
	Keyword   *string           `json:"keyword,omitempty"`
	Priority  *string           `json:"priority,omitempty"`
	Heading   *string           `json:"title,omitempty"`
	Section   *string           `json:"section,omitempty"`
	Tags      *[]string         `json:"tags,omitempty"`
	Scheduled *time.Time        `json:"scheduled,omitempty"`
	Deadline  *time.Time        `json:"deadline,omitempty"`
}

func (*HeadlineUpdate) Name() string  { return "headline-update" }
func (*HeadlineUpdate) Title() string { return "Update headline" }

func (cmd *HeadlineUpdate) Execute(ctx context.Context, c *Context) (any, error) {
	edits, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) ([]edit.Edit, bool) {
		h := doc.HeadlineAt(cmd.Line)
		if h == nil {
			return nil, false
		}
		return cmd.edits(doc.Tree(), h), true
	})
	if !ok {
		c.missing(ctx, "cannot find headline at %s:%d", cmd.URL, cmd.Line)
		return false, nil
	}
	if err := c.apply(ctx, edits); err != nil {
		return nil, err
	}
	return true, nil
}

// edits are ordered so that insertions at the same offset come out as
// keyword, priority, title.
func (cmd *HeadlineUpdate) edits(tree *org.Tree, h *org.Node) []edit.Edit {
	text := tree.Text()
	var out []edit.Edit
	add := func(replacement string, start, end int) {
		out = append(out, edit.Edit{Target: cmd.URL, Replacement: replacement, Range: document.TextRange{Start: start, End: end}})
	}
	// removes a span together with one following blank
	remove := func(s org.Span) {
		end := s.End
		if end < h.LineEnd && isBlank(text[end]) {
			end++
		}
		add("", s.Start, end)
	}
	head := h.Start + h.Level
	if head < h.LineEnd && isBlank(text[head]) {
		head++
	}

	if cmd.Keyword != nil {
		switch {
		case !h.Todo.Empty() && *cmd.Keyword == "":
			remove(h.Todo)
		case !h.Todo.Empty():
			add(*cmd.Keyword, h.Todo.Start, h.Todo.End)
		case *cmd.Keyword != "":
			add(*cmd.Keyword+" ", head, head)
		}
	}

	if cmd.Priority != nil {
		switch {
		case !h.Priority.Empty() && *cmd.Priority == "":
			remove(h.Priority)
		case !h.Priority.Empty():
			add("[#"+*cmd.Priority+"]", h.Priority.Start, h.Priority.End)
		case *cmd.Priority != "" && !h.Todo.Empty():
			if at := h.Todo.End; at < h.LineEnd && isBlank(text[at]) {
				add("[#"+*cmd.Priority+"] ", at+1, at+1)
			} else {
				add(" [#"+*cmd.Priority+"]", at, at)
			}
		case *cmd.Priority != "":
			add("[#"+*cmd.Priority+"] ", head, head)
		}
	}

	if cmd.Heading != nil {
		add(firstLine(*cmd.Heading), h.Title.Start, h.Title.End)
	}

	if cmd.Tags != nil {
		tags := *cmd.Tags
		switch {
		case len(h.Tags) > 0 && len(tags) == 0:
			add("", h.Title.End, h.LineEnd)
		case len(h.Tags) > 0:
			// the tag spans exclude the surrounding colons
			add(":"+strings.Join(tags, ":")+":", h.Tags[0].Start-1, h.Tags[len(h.Tags)-1].End+1)
		case len(tags) > 0:
			add(" :"+strings.Join(tags, ":")+":", h.LineEnd, h.LineEnd)
		}
	}

	// the first piece inserted at the end of an unterminated text starts a new line
	next, _ := lineAfter(text, h.LineEnd)
	needBreak := text != "" && !endsLine(text)
	below := func(s string, at int) {
		if needBreak && at == len(text) {
			s = "\n" + s
			needBreak = false
		}
		add(s, at, at)
	}

	if cmd.Scheduled != nil || cmd.Deadline != nil {
		planning := planningLine(cmd.Scheduled, cmd.Deadline)
		if p := h.Planning(); p != nil {
			add(planning, p.Begin, p.Blank)
		} else {
			below(planning, next)
		}
	}

	if cmd.Section != nil {
		section := sectionText(tree, h, *cmd.Section)
		switch s := h.Section(); {
		case s != nil:
			add(section, s.Start, s.End)
		case section != "":
			below(section, afterMeta(text, h))
		}
	}
	return out
}

// sectionText builds a section body, keeping the drawers of the current
// section ahead of the new text.
func sectionText(tree *org.Tree, h *org.Node, text string) string {
	var parts []string
	if s := h.Section(); s != nil {
		for _, c := range s.Children {
			if c.Kind == org.KindDrawer {
				parts = append(parts, strings.TrimRight(tree.Slice(org.Span{Start: c.Start, End: c.Blank}), "\r\n"))
			}
		}
	}
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n"
}

// HeadlineRemove deletes the subtree of a headline.
type HeadlineRemove struct {
	URL  document.Location `json:"url" validate:"required"`
	Line int               `json:"line" validate:"min=1"`
}

func (*HeadlineRemove) Name() string  { return "headline-remove" }
func (*HeadlineRemove) Title() string { return "Remove headline" }

func (cmd *HeadlineRemove) Execute(ctx context.Context, c *Context) (any, error) {
	if !c.Documents.Contains(cmd.URL) {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return false, nil
	}
	span, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (org.Span, bool) {
		h := doc.HeadlineAt(cmd.Line)
		if h == nil {
			return org.Span{}, false
		}
		return h.Span, true
	})
	if !ok {
		c.missing(ctx, "cannot find headline in line %d", cmd.Line)
		return false, nil
	}
	if err := c.apply(ctx, []edit.Edit{{Target: cmd.URL, Range: document.Span(span)}}); err != nil {
		return nil, err
	}
	return true, nil
}

// HeadlineDuplicate inserts a copy of a subtree right after it.
type HeadlineDuplicate struct {
	URL  document.Location `json:"url" validate:"required"`
	Line int               `json:"line" validate:"min=1"`
}

func (*HeadlineDuplicate) Name() string  { return "headline-duplicate" }
func (*HeadlineDuplicate) Title() string { return "Duplicate headline" }

func (cmd *HeadlineDuplicate) Execute(ctx context.Context, c *Context) (any, error) {
	e, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (edit.Edit, bool) {
		h := doc.HeadlineAt(cmd.Line)
		if h == nil {
			return edit.Edit{}, false
		}
		raw := doc.Tree().Raw(h)
		if !strings.HasSuffix(raw, "\n") && !strings.HasSuffix(raw, "\r") {
			raw = "\n" + raw
		}
		return edit.Edit{Target: cmd.URL, Replacement: raw, Range: document.Empty(h.End)}, true
	})
	if !ok {
		c.missing(ctx, "cannot find headline at %s:%d", cmd.URL, cmd.Line)
		return false, nil
	}
	if err := c.apply(ctx, []edit.Edit{e}); err != nil {
		return nil, err
	}
	return true, nil
}

// HeadlineToc replaces the body of a headline with a table of contents
// linking to every other headline.
type HeadlineToc struct {
	URL            document.Location `json:"url" validate:"required"`
	HeadlineOffset int               `json:"headlineOffset" validate:"min=0"`
}

func (*HeadlineToc) Name() string  { return "headline-toc" }
func (*HeadlineToc) Title() string { return "Generate TOC" }

func (cmd *HeadlineToc) Execute(ctx context.Context, c *Context) (any, error) {
	e, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (edit.Edit, bool) {
		return cmd.toc(doc)
	})
	if !ok {
		c.missing(ctx, "cannot find headline at offset %d of %s", cmd.HeadlineOffset, cmd.URL)
		return false, nil
	}
	if err := c.apply(ctx, []edit.Edit{e}); err != nil {
		return nil, err
	}
	return true, nil
}

func (cmd *HeadlineToc) toc(doc *document.Document) (edit.Edit, bool) {
	tree := doc.Tree()
	var (
		b      strings.Builder
		indent int
		rng    *document.TextRange
		prefix string
	)
	b.WriteString("#+begin_quote\n")
	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		switch {
		case n.Kind == org.KindSection && ev == org.Enter:
			return org.Skip
		case n.Kind != org.KindHeadline:
			return org.Continue
		case ev == org.Leave:
			indent -= 2
			return org.Continue
		}
		if n.Start == cmd.HeadlineOffset {
			start, unterminated := lineAfter(tree.Text(), n.LineEnd)
			rng = &document.TextRange{Start: min(start, n.End), End: n.End}
			if unterminated {
				prefix = "\n"
			}
		} else {
			title := tree.TitleOf(n)
			b.WriteString(strings.Repeat(" ", indent) + "- [[#" + Slug(title) + "][" + title + "]]\n")
		}
		indent += 2
		return org.Continue
	})
	b.WriteString("#+end_quote\n\n")
	if rng == nil {
		return edit.Edit{}, false
	}
	return edit.Edit{Target: cmd.URL, Replacement: prefix + b.String(), Range: *rng}, true
}

// Slug keeps the printable ASCII characters of a title, dropping spaces.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range title {
		if r > ' ' && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HeadlineSearch lists headlines, optionally restricted to a document and
// a time window on their planning timestamps.
type HeadlineSearch struct {
	index.Query
}

func (*HeadlineSearch) Name() string  { return "headline-search" }
func (*HeadlineSearch) Title() string { return "Search headlines" }

func (cmd *HeadlineSearch) Execute(ctx context.Context, c *Context) (any, error) {
	if c.Index != nil {
		return c.Index.Search(ctx, cmd.Query)
	}
	results := []index.Headline{}
	c.Documents.ForEach(func(loc document.Location, doc *document.Document) {
		if cmd.URL != nil && *cmd.URL != loc {
			return
		}
		for _, h := range index.Collect(loc, doc) {
			if cmd.Match(h) {
				results = append(results, h)
			}
		}
	})
	return results, nil
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func planningLine(scheduled, deadline *time.Time) string {
	var parts []string
	if scheduled != nil {
		parts = append(parts, "SCHEDULED: "+org.FormatActive(*scheduled))
	}
	if deadline != nil {
		parts = append(parts, "DEADLINE: "+org.FormatActive(*deadline))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + "\n"
}

// lineAfter returns the start of the line following the one ending at
// lineEnd, and whether that line has no terminator.
func lineAfter(text string, lineEnd int) (int, bool) {
	switch {
	case lineEnd >= len(text):
		return len(text), true
	case text[lineEnd] == '\r' && lineEnd+1 < len(text) && text[lineEnd+1] == '\n':
		return lineEnd + 2, false
	default:
		return lineEnd + 1, false
	}
}

// afterMeta returns where content below a headline's line, planning and
// property drawer begins.
func afterMeta(text string, h *org.Node) int {
	at, _ := lineAfter(text, h.LineEnd)
	for _, c := range h.Children {
		if c.Kind == org.KindPlanning || c.Kind == org.KindPropertyDrawer {
			at = c.Blank
		}
	}
	return at
}

func endsLine(s string) bool {
	return strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\r")
}
