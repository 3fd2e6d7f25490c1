package feature

import (
	"orgls/internal/document"
	"orgls/internal/manager"
	"orgls/internal/org"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

type symbolKind int

const (
	symbolKeyword symbolKind = iota
	symbolPriority
	symbolTag
)

// symbol is a headline keyword, priority letter or tag.
type symbol struct {
	kind symbolKind
	text string
}

// locateSymbol returns the headline symbol under offset. An offset just
// past a keyword or tag still selects it; a priority cookie is selected
// from its opening bracket through its end.
func locateSymbol(tree *org.Tree, offset int) (symbol, bool) {
	h := tree.NodeAt(offset, org.KindHeadline)
	if h == nil || offset > h.LineEnd {
		return symbol{}, false
	}
	if !h.Todo.Empty() && h.Todo.Start < offset && offset <= h.Todo.End {
		return symbol{symbolKeyword, tree.KeywordOf(h)}, true
	}
	if !h.Priority.Empty() && h.Priority.Start <= offset && offset <= h.Priority.End {
		return symbol{symbolPriority, tree.PriorityOf(h)}, true
	}
	for _, tag := range h.Tags {
		if tag.Start < offset && offset <= tag.End {
			return symbol{symbolTag, tree.Slice(tag)}, true
		}
	}
	return symbol{}, false
}

// References returns every headline in the open documents sharing the
// keyword, priority or tag found at pos.
func References(docs *manager.DocumentManager, loc document.Location, pos protocol.Position) []protocol.Location {
	sym, ok := manager.WithAndThen(docs, loc, func(doc *document.Document) (symbol, bool) {
		return locateSymbol(doc.Tree(), doc.OffsetOf(pos))
	})
	if !ok {
		return nil
	}

	locations := []protocol.Location{}
	docs.ForEach(func(l document.Location, doc *document.Document) {
		tree := doc.Tree()
		add := func(s org.Span) {
			locations = append(locations, protocol.Location{
				URI:   string(l),
				Range: doc.RangeOf(document.Span(s)),
			})
		}
		doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
			if ev != org.Enter {
				return org.Continue
			}
			if n.Kind == org.KindSection {
				return org.Skip
			}
			if n.Kind != org.KindHeadline {
				return org.Continue
			}
			switch sym.kind {
			case symbolKeyword:
				if !n.Todo.Empty() && tree.KeywordOf(n) == sym.text {
					add(n.Todo)
				}
			case symbolPriority:
				if !n.Priority.Empty() && tree.PriorityOf(n) == sym.text {
					add(n.Priority)
				}
			case symbolTag:
				for _, tag := range n.Tags {
					if tree.Slice(tag) == sym.text {
						add(tag)
						break
					}
				}
			}
			return org.Continue
		})
	})
	return locations
}
