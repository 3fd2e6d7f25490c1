package org

import "strings"

type Kind int

const (
	KindDocument Kind = iota
	KindHeadline
	KindSection
	KindPlanning
	KindPropertyDrawer
	KindDrawer
	KindClock
	KindSourceBlock
	KindBlock
	KindKeyword
	KindRule
	KindList
	KindListItem
	KindTable
	KindFixedWidth
	KindParagraph
)

var kindNames = [...]string{
	KindDocument:       "Document",
	KindHeadline:       "Headline",
	KindSection:        "Section",
	KindPlanning:       "Planning",
	KindPropertyDrawer: "PropertyDrawer",
	KindDrawer:         "Drawer",
	KindClock:          "Clock",
	KindSourceBlock:    "SourceBlock",
	KindBlock:          "Block",
	KindKeyword:        "Keyword",
	KindRule:           "Rule",
	KindList:           "List",
	KindListItem:       "ListItem",
	KindTable:          "Table",
	KindFixedWidth:     "FixedWidth",
	KindParagraph:      "Paragraph",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Span is a half-open byte range.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Empty() bool { return s.Start == s.End }

// Contains reports whether offset lies in [Start, End).
func (s Span) Contains(offset int) bool { return s.Start <= offset && offset < s.End }

// Property is one entry of a property drawer.
type Property struct {
	Key   string
	Value string
}

// Node is one element of the syntax tree. Field usage depends on Kind.
type Node struct {
	Kind Kind
	// Span covers affiliated keywords through trailing blank lines.
	Span
	// Begin is where the element itself starts, after affiliated keywords.
	Begin int
	// Blank is where trailing blank lines start; equal to End when there are none.
	Blank int
	// LineEnd is the end of the first line, excluding its terminator.
	LineEnd int

	Parent     *Node
	Children   []*Node
	Affiliated []*Node

	// headline
	Level    int
	Todo     Span
	Done     bool
	Priority Span
	Title    Span
	Tags     []Span

	// planning
	Scheduled *Timestamp
	Deadline  *Timestamp
	Closed    *Timestamp

	// clock
	ClockStart *Timestamp
	ClockEnd   *Timestamp
	Duration   string

	// block name, drawer name or keyword key
	Name string
	// keyword value or block parameters
	Value string
	// source block language
	Language string
	// block or drawer body, between the begin and end lines
	Contents Span

	Properties []Property

	// list item
	Indent int
	Bullet Span
}

// Running reports whether a clock has no end timestamp.
func (n *Node) Running() bool {
	return n.Kind == KindClock && n.ClockStart != nil && n.ClockEnd == nil
}

// Child returns the first child of the given kind.
func (n *Node) Child(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// Section returns the section of a headline or document.
func (n *Node) Section() *Node { return n.Child(KindSection) }

// Planning returns the planning line of a headline.
func (n *Node) Planning() *Node { return n.Child(KindPlanning) }

// Headlines returns the direct child headlines.
func (n *Node) Headlines() []*Node {
	var hs []*Node
	for _, c := range n.Children {
		if c.Kind == KindHeadline {
			hs = append(hs, c)
		}
	}
	return hs
}

// Property looks up a headline property, ignoring case.
func (n *Node) Property(key string) (string, bool) {
	drawer := n.Child(KindPropertyDrawer)
	if drawer == nil {
		return "", false
	}
	for _, p := range drawer.Properties {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// Logbook returns the LOGBOOK drawer in a headline's section.
func (n *Node) Logbook() *Node {
	section := n.Section()
	if section == nil {
		return nil
	}
	for _, c := range section.Children {
		if c.Kind == KindDrawer && strings.EqualFold(c.Name, "LOGBOOK") {
			return c
		}
	}
	return nil
}

// Clocks returns the clock lines of a headline, not of its children.
func (n *Node) Clocks() []*Node {
	section := n.Section()
	if section == nil {
		return nil
	}
	var clocks []*Node
	var walk func(*Node)
	walk = func(node *Node) {
		for _, c := range node.Children {
			switch c.Kind {
			case KindClock:
				clocks = append(clocks, c)
			case KindDrawer:
				walk(c)
			}
		}
	}
	walk(section)
	return clocks
}

// Ancestor returns the closest ancestor of the given kind.
func (n *Node) Ancestor(kind Kind) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == kind {
			return p
		}
	}
	return nil
}

// NextSibling returns the node following n in its parent.
func (n *Node) NextSibling() *Node {
	if n.Parent == nil {
		return nil
	}
	siblings := n.Parent.Children
	for i, c := range siblings {
		if c == n && i+1 < len(siblings) {
			return siblings[i+1]
		}
	}
	return nil
}

// HasAffiliated reports whether n carries the given affiliated keyword.
func (n *Node) HasAffiliated(key string) bool {
	for _, k := range n.Affiliated {
		if strings.EqualFold(k.Name, key) {
			return true
		}
	}
	return false
}
