// Package org parses org-mode text into a tree of byte-ranged nodes.
//
// The parser is line oriented and never fails: anything it does not
// recognize becomes a paragraph.
package org

import (
	"regexp"
	"strings"
)

var (
	blockBeginRe = regexp.MustCompile(`(?i)^[ \t]*#\+begin_(\S+)(?:[ \t]+(.*))?$`)
	keywordRe    = regexp.MustCompile(`^[ \t]*#\+([^\s:]+):(?:[ \t]+(.*))?$`)
	drawerRe     = regexp.MustCompile(`^[ \t]*:([\w-]+):[ \t]*$`)
	drawerEndRe  = regexp.MustCompile(`(?i)^[ \t]*:end:[ \t]*$`)
	propertyRe   = regexp.MustCompile(`^[ \t]*:([^\s:]+):(?:[ \t]+(.*))?$`)
	clockRe      = regexp.MustCompile(`^[ \t]*CLOCK:[ \t]*(\[[^\]\n]*\])(?:--(\[[^\]\n]*\])(?:[ \t]*=>[ \t]*(\S+))?)?[ \t]*$`)
	planningRe   = regexp.MustCompile(`(SCHEDULED|DEADLINE|CLOSED):[ \t]*([<\[][^>\]\n]*[>\]])`)
	ruleRe       = regexp.MustCompile(`^[ \t]*-{5,}[ \t]*$`)
	tableRe      = regexp.MustCompile(`^[ \t]*\|`)
	fixedRe      = regexp.MustCompile(`^[ \t]*:([ \t]|$)`)
	itemRe       = regexp.MustCompile(`^([ \t]*)([-+*]|\d+[.)])([ \t]|$)`)
	priorityRe   = regexp.MustCompile(`^\[#([A-Za-z0-9])\]`)
	tagsRe       = regexp.MustCompile(`[ \t]+(:(?:[\w@#%]+:)+)[ \t]*$`)
)

var affiliatedKeys = []string{
	"NAME", "RESULTS", "CAPTION", "HEADER", "PLOT", "DATA", "LABEL",
	"SRCNAME", "TBLNAME", "SOURCE", "RESNAME", "RESULT",
}

// Tree is a parsed document. Nodes hold byte offsets into Text.
type Tree struct {
	Root   *Node
	text   string
	config ParseConfig
}

type line struct {
	start int // first byte
	end   int // end of content, before the terminator
	next  int // first byte of the following line
}

type parser struct {
	text   string
	lines  []line
	config ParseConfig
}

// Parse builds a tree for text.
func Parse(text string, config ParseConfig) *Tree {
	p := &parser{text: text, lines: splitLines(text), config: config}
	root := &Node{Kind: KindDocument, Span: Span{0, len(text)}, Blank: len(text)}
	p.fill(root, 0, len(p.lines))
	link(root)
	return &Tree{Root: root, text: text, config: config}
}

// Text returns the source text of the tree.
func (t *Tree) Text() string { return t.text }

// Config returns the configuration the tree was parsed with.
func (t *Tree) Config() ParseConfig { return t.config }

// Slice returns the text covered by s.
func (t *Tree) Slice(s Span) string {
	if s.Start < 0 || s.End > len(t.text) || s.Start > s.End {
		return ""
	}
	return t.text[s.Start:s.End]
}

// Raw returns the full text of a node.
func (t *Tree) Raw(n *Node) string { return t.Slice(n.Span) }

// TitleOf returns the title text of a headline.
func (t *Tree) TitleOf(h *Node) string { return t.Slice(h.Title) }

// TagsOf returns the tag names of a headline.
func (t *Tree) TagsOf(h *Node) []string {
	tags := make([]string, 0, len(h.Tags))
	for _, s := range h.Tags {
		tags = append(tags, t.Slice(s))
	}
	return tags
}

// KeywordOf returns the task keyword of a headline, or "".
func (t *Tree) KeywordOf(h *Node) string { return t.Slice(h.Todo) }

// PriorityOf returns the priority letter of a headline, or "".
func (t *Tree) PriorityOf(h *Node) string {
	if h.Priority.Len() < 4 {
		return ""
	}
	return t.text[h.Priority.Start+2 : h.Priority.End-1]
}

// ValueOf returns the body of a block.
func (t *Tree) ValueOf(block *Node) string { return t.Slice(block.Contents) }

// NodeAt returns the deepest node of the given kind containing offset.
func (t *Tree) NodeAt(offset int, kind Kind) *Node {
	var found *Node
	n := t.Root
	for n != nil {
		if n.Kind == kind {
			found = n
		}
		var next *Node
		for _, c := range n.Children {
			if c.Contains(offset) {
				next = c
				break
			}
		}
		n = next
	}
	return found
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			end := i
			if end > start && text[end-1] == '\r' {
				end--
			}
			lines = append(lines, line{start, end, i + 1})
			start = i + 1
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			lines = append(lines, line{start, i, i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, line{start, len(text), len(text)})
	}
	return lines
}

func (p *parser) content(i int) string {
	return p.text[p.lines[i].start:p.lines[i].end]
}

func (p *parser) blank(i int) bool {
	return strings.TrimSpace(p.content(i)) == ""
}

// offset returns the start of line i, or the end of the text.
func (p *parser) offset(i int) int {
	if i >= len(p.lines) {
		return len(p.text)
	}
	return p.lines[i].start
}

// headlineLevel returns the number of leading stars of a headline line, or 0.
func (p *parser) headlineLevel(i int) int {
	s := p.content(i)
	n := 0
	for n < len(s) && s[n] == '*' {
		n++
	}
	if n == 0 || n >= len(s) || (s[n] != ' ' && s[n] != '\t') {
		return 0
	}
	return n
}

// fill parses lines [from, to) as the body of a document or headline.
func (p *parser) fill(parent *Node, from, to int) {
	first := to
	for i := from; i < to; i++ {
		if p.headlineLevel(i) > 0 {
			first = i
			break
		}
	}
	if section := p.section(from, first); section != nil {
		parent.Children = append(parent.Children, section)
	}
	for i := first; i < to; {
		j := i + 1
		lvl := p.headlineLevel(i)
		for j < to && (p.headlineLevel(j) == 0 || p.headlineLevel(j) > lvl) {
			j++
		}
		parent.Children = append(parent.Children, p.headline(i, j))
		i = j
	}
}

func (p *parser) section(from, to int) *Node {
	for from < to && p.blank(from) {
		from++
	}
	if from >= to {
		return nil
	}
	return &Node{
		Kind:     KindSection,
		Span:     Span{p.offset(from), p.offset(to)},
		Begin:    p.offset(from),
		Blank:    p.offset(to),
		Children: p.elements(from, to),
	}
}

func (p *parser) headline(from, to int) *Node {
	ln := p.lines[from]
	h := &Node{
		Kind:    KindHeadline,
		Span:    Span{ln.start, p.offset(to)},
		Begin:   ln.start,
		Blank:   p.offset(to),
		LineEnd: ln.end,
		Level:   p.headlineLevel(from),
	}
	p.headlineTitle(h)

	i := from + 1
	if i < to && p.headlineLevel(i) == 0 {
		if planning := p.planning(i); planning != nil {
			h.Children = append(h.Children, planning)
			i++
		}
	}
	if i < to && strings.EqualFold(strings.TrimSpace(p.content(i)), ":PROPERTIES:") {
		for j := i + 1; j < to && p.headlineLevel(j) == 0; j++ {
			if drawerEndRe.MatchString(p.content(j)) {
				h.Children = append(h.Children, p.propertyDrawer(i, j))
				i = j + 1
				break
			}
		}
	}
	p.fill(h, i, to)
	return h
}

func (p *parser) headlineTitle(h *Node) {
	s := p.text[h.Start:h.LineEnd]
	pos := h.Level
	skip := func() {
		for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
			pos++
		}
	}
	skip()

	if word := s[pos:]; word != "" {
		end := strings.IndexAny(word, " \t")
		if end < 0 {
			end = len(word)
		}
		if done, ok := p.config.keyword(word[:end]); ok {
			h.Todo = Span{h.Start + pos, h.Start + pos + end}
			h.Done = done
			pos += end
			skip()
		}
	}
	if m := priorityRe.FindStringIndex(s[pos:]); m != nil {
		h.Priority = Span{h.Start + pos, h.Start + pos + m[1]}
		pos += m[1]
		skip()
	}

	titleEnd := len(s)
	if m := tagsRe.FindStringSubmatchIndex(s[pos:]); m != nil {
		tags := s[pos+m[2] : pos+m[3]]
		offset := h.Start + pos + m[2]
		for _, tag := range strings.Split(tags, ":") {
			if tag != "" {
				h.Tags = append(h.Tags, Span{offset, offset + len(tag)})
			}
			offset += len(tag) + 1
		}
		titleEnd = pos + m[0]
	}
	title := strings.TrimRight(s[pos:titleEnd], " \t")
	h.Title = Span{h.Start + pos, h.Start + pos + len(title)}
}

func (p *parser) planning(i int) *Node {
	s := p.content(i)
	trimmed := strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(trimmed, "SCHEDULED:") &&
		!strings.HasPrefix(trimmed, "DEADLINE:") &&
		!strings.HasPrefix(trimmed, "CLOSED:") {
		return nil
	}
	ln := p.lines[i]
	n := &Node{
		Kind:    KindPlanning,
		Span:    Span{ln.start, ln.next},
		Begin:   ln.start,
		Blank:   ln.next,
		LineEnd: ln.end,
	}
	for _, m := range planningRe.FindAllStringSubmatchIndex(s, -1) {
		ts, ok := ParseTimestamp(s[m[4]:m[5]])
		if !ok {
			continue
		}
		ts.Start += ln.start + m[4]
		ts.End += ln.start + m[4]
		switch s[m[2]:m[3]] {
		case "SCHEDULED":
			n.Scheduled = ts
		case "DEADLINE":
			n.Deadline = ts
		case "CLOSED":
			n.Closed = ts
		}
	}
	return n
}

func (p *parser) propertyDrawer(from, end int) *Node {
	n := &Node{
		Kind:     KindPropertyDrawer,
		Name:     "PROPERTIES",
		Span:     Span{p.lines[from].start, p.lines[end].next},
		Begin:    p.lines[from].start,
		Blank:    p.lines[end].next,
		LineEnd:  p.lines[from].end,
		Contents: Span{p.offset(from + 1), p.lines[end].start},
	}
	for i := from + 1; i < end; i++ {
		if m := propertyRe.FindStringSubmatch(p.content(i)); m != nil {
			n.Properties = append(n.Properties, Property{Key: m[1], Value: strings.TrimSpace(m[2])})
		}
	}
	return n
}

// elements parses lines [from, to) into a flat list of elements.
// Blank lines are attached to the preceding element.
func (p *parser) elements(from, to int) []*Node {
	var out []*Node
	var last *Node
	for i := from; i < to; {
		if p.blank(i) {
			if last != nil {
				last.End = p.lines[i].next
			}
			i++
			continue
		}

		var affiliated []*Node
		if j := p.affiliatedRun(i, to); j > i {
			for k := i; k < j; k++ {
				affiliated = append(affiliated, p.keyword(k))
			}
			i = j
		}

		n, next := p.element(i, to)
		if len(affiliated) > 0 {
			n.Start = affiliated[0].Start
			n.Affiliated = affiliated
		}
		out = append(out, n)
		last = n
		i = next
	}
	return out
}

// affiliatedRun returns the end of a run of affiliated keywords starting
// at i that is directly followed by another element, or i.
func (p *parser) affiliatedRun(i, to int) int {
	j := i
	for j < to && p.isAffiliated(j) {
		j++
	}
	if j == i || j >= to || p.blank(j) {
		return i
	}
	return j
}

func (p *parser) isAffiliated(i int) bool {
	m := keywordRe.FindStringSubmatch(p.content(i))
	if m == nil {
		return false
	}
	key := strings.ToUpper(m[1])
	if strings.HasPrefix(key, "ATTR_") {
		return true
	}
	for _, k := range affiliatedKeys {
		if key == k {
			return true
		}
	}
	return false
}

// element parses the element starting at line i and returns the index of
// the line after it.
func (p *parser) element(i, to int) (*Node, int) {
	s := p.content(i)

	if m := blockBeginRe.FindStringSubmatch(s); m != nil {
		endRe := regexp.MustCompile(`(?i)^[ \t]*#\+end_` + regexp.QuoteMeta(m[1]) + `[ \t]*$`)
		for j := i + 1; j < to; j++ {
			if endRe.MatchString(p.content(j)) {
				return p.block(i, j, m[1], m[2]), j + 1
			}
		}
	}
	if m := drawerRe.FindStringSubmatch(s); m != nil && !strings.EqualFold(m[1], "END") {
		for j := i + 1; j < to; j++ {
			if drawerEndRe.MatchString(p.content(j)) {
				n := p.simple(KindDrawer, i, j+1)
				n.Name = m[1]
				n.Contents = Span{p.lines[i].next, p.lines[j].start}
				n.Children = p.elements(i+1, j)
				return n, j + 1
			}
		}
	}
	if m := clockRe.FindStringSubmatchIndex(s); m != nil {
		return p.clock(i, m), i + 1
	}
	if keywordRe.MatchString(s) {
		return p.keyword(i), i + 1
	}
	if ruleRe.MatchString(s) {
		return p.simple(KindRule, i, i+1), i + 1
	}
	if tableRe.MatchString(s) {
		j := i + 1
		for j < to && tableRe.MatchString(p.content(j)) {
			j++
		}
		return p.simple(KindTable, i, j), j
	}
	if fixedRe.MatchString(s) {
		j := i + 1
		for j < to && fixedRe.MatchString(p.content(j)) {
			j++
		}
		return p.simple(KindFixedWidth, i, j), j
	}
	if indent, ok := p.item(i); ok {
		return p.list(i, to, indent)
	}

	j := i + 1
	for j < to && !p.blank(j) && !p.startsElement(j) {
		j++
	}
	return p.simple(KindParagraph, i, j), j
}

func (p *parser) startsElement(i int) bool {
	s := p.content(i)
	if _, ok := p.item(i); ok {
		return true
	}
	return blockBeginRe.MatchString(s) || keywordRe.MatchString(s) ||
		drawerRe.MatchString(s) || clockRe.MatchString(s) || ruleRe.MatchString(s) ||
		tableRe.MatchString(s) || fixedRe.MatchString(s)
}

func (p *parser) simple(kind Kind, from, to int) *Node {
	end := p.lines[to-1].next
	return &Node{
		Kind:    kind,
		Span:    Span{p.lines[from].start, end},
		Begin:   p.lines[from].start,
		Blank:   end,
		LineEnd: p.lines[from].end,
	}
}

func (p *parser) keyword(i int) *Node {
	m := keywordRe.FindStringSubmatch(p.content(i))
	n := p.simple(KindKeyword, i, i+1)
	n.Name = m[1]
	n.Value = strings.TrimSpace(m[2])
	return n
}

func (p *parser) block(from, end int, name, params string) *Node {
	n := p.simple(KindBlock, from, end+1)
	n.Name = strings.ToLower(name)
	n.Value = strings.TrimSpace(params)
	n.Contents = Span{p.lines[from].next, p.lines[end].start}
	if n.Name == "src" {
		n.Kind = KindSourceBlock
		fields := strings.Fields(params)
		if len(fields) > 0 {
			n.Language = fields[0]
			n.Value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(params), fields[0]))
		}
	}
	return n
}

func (p *parser) clock(i int, m []int) *Node {
	s := p.content(i)
	base := p.lines[i].start
	n := p.simple(KindClock, i, i+1)
	if ts, ok := ParseTimestamp(s[m[2]:m[3]]); ok {
		ts.Start += base + m[2]
		ts.End += base + m[2]
		n.ClockStart = ts
	}
	if m[4] >= 0 {
		if ts, ok := ParseTimestamp(s[m[4]:m[5]]); ok {
			ts.Start += base + m[4]
			ts.End += base + m[4]
			n.ClockEnd = ts
		}
	}
	if m[6] >= 0 {
		n.Duration = s[m[6]:m[7]]
	}
	return n
}

// item reports whether line i starts a list item and returns its indent.
func (p *parser) item(i int) (int, bool) {
	m := itemRe.FindStringSubmatchIndex(p.content(i))
	if m == nil {
		return 0, false
	}
	indent := m[3] - m[2]
	// a star in the first column is a headline
	if indent == 0 && p.content(i)[m[4]] == '*' {
		return 0, false
	}
	if ruleRe.MatchString(p.content(i)) {
		return 0, false
	}
	return indent, true
}

func (p *parser) indentOf(i int) int {
	s := p.content(i)
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

func (p *parser) list(from, to, indent int) (*Node, int) {
	list := &Node{Kind: KindList, Begin: p.lines[from].start, Indent: indent}
	list.Start = list.Begin
	i := from
	for i < to {
		ind, ok := p.item(i)
		if !ok || ind != indent {
			break
		}
		j := i + 1
		for j < to {
			if p.blank(j) {
				// a single blank line continues the item when more indented text follows
				if j+1 < to && !p.blank(j+1) && p.indentOf(j+1) > indent {
					j++
					continue
				}
				break
			}
			if p.indentOf(j) <= indent {
				break
			}
			j++
		}
		m := itemRe.FindStringSubmatchIndex(p.content(i))
		item := p.simple(KindListItem, i, j)
		item.Indent = ind
		item.Bullet = Span{p.lines[i].start + m[4], p.lines[i].start + m[5]}
		item.Children = p.elements(i+1, j)
		list.Children = append(list.Children, item)
		i = j

		// one blank line between items of the same list
		if i+1 < to && p.blank(i) && !p.blank(i+1) {
			if ind, ok := p.item(i + 1); ok && ind == indent {
				item.End = p.lines[i].next
				i++
			}
		}
	}
	last := list.Children[len(list.Children)-1]
	list.End = last.End
	list.Blank = list.End
	list.LineEnd = p.lines[from].end
	return list, i
}

func link(n *Node) {
	for _, c := range n.Children {
		c.Parent = n
		link(c)
	}
	for _, c := range n.Affiliated {
		c.Parent = n
	}
}
