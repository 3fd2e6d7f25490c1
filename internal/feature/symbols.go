package feature

import (
	"strings"

	"orgls/internal/document"
	"orgls/internal/org"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DocumentSymbols returns the headline outline, nested by level.
func DocumentSymbols(doc *document.Document) []protocol.DocumentSymbol {
	return symbolsOf(doc, doc.Tree().Root)
}

func symbolsOf(doc *document.Document, parent *org.Node) []protocol.DocumentSymbol {
	tree := doc.Tree()
	symbols := []protocol.DocumentSymbol{}
	for _, h := range parent.Headlines() {
		end := max(h.Begin, h.End-1)
		rng := doc.RangeOf(document.TextRange{Start: h.Begin, End: end})
		symbol := protocol.DocumentSymbol{
			Name:           strings.Repeat("*", h.Level) + " " + tree.TitleOf(h),
			Kind:           protocol.SymbolKindString,
			Range:          rng,
			SelectionRange: rng,
		}
		if children := symbolsOf(doc, h); len(children) > 0 {
			symbol.Children = children
		}
		symbols = append(symbols, symbol)
	}
	return symbols
}
