package feature

import (
	"sort"

	"orgls/internal/document"
	"orgls/internal/org"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Token types, in legend order.
const (
	TokenTimestamp = iota
	TokenTodoKeyword
	TokenDoneKeyword
	TokenPriority
	TokenTags
)

// Legend is advertised in the server capabilities.
var Legend = protocol.SemanticTokensLegend{
	TokenTypes: []string{
		"timestamp",
		"headlineTodoKeyword",
		"headlineDoneKeyword",
		"headlinePriority",
		"headlineTags",
	},
	TokenModifiers: []string{},
}

type token struct {
	start, end int
	typ        int
}

// SemanticTokens returns the delta encoded tokens of the whole document,
// or of the tokens lying inside rng when it is not nil.
func SemanticTokens(doc *document.Document, rng *document.TextRange) []protocol.UInteger {
	tokens := collectTokens(doc.Tree())
	if rng != nil {
		kept := tokens[:0]
		for _, t := range tokens {
			if t.start >= rng.Start && t.end <= rng.End {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}
	return encode(doc, tokens)
}

func collectTokens(tree *org.Tree) []token {
	var tokens []token
	add := func(s org.Span, typ int) {
		if !s.Empty() {
			tokens = append(tokens, token{s.Start, s.End, typ})
		}
	}
	timestamps := func(start, end int) {
		if start >= end {
			return
		}
		for _, ts := range org.FindTimestamps(tree.Slice(org.Span{Start: start, End: end}), start) {
			add(ts.Span, TokenTimestamp)
		}
	}

	tree.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindHeadline:
			if n.Done {
				add(n.Todo, TokenDoneKeyword)
			} else {
				add(n.Todo, TokenTodoKeyword)
			}
			add(n.Priority, TokenPriority)
			timestamps(n.Title.Start, n.Title.End)
			if len(n.Tags) > 0 {
				// the colons around the tags belong to the token
				add(org.Span{Start: n.Tags[0].Start - 1, End: n.Tags[len(n.Tags)-1].End + 1}, TokenTags)
			}
		case org.KindPlanning, org.KindClock, org.KindListItem:
			timestamps(n.Begin, n.LineEnd)
		case org.KindParagraph, org.KindTable:
			timestamps(n.Begin, n.Blank)
		case org.KindSourceBlock, org.KindBlock, org.KindFixedWidth:
			return org.Skip
		}
		return org.Continue
	})

	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })
	return tokens
}

// encode writes each token as (deltaLine, deltaStart, length, type, 0)
// relative to the previous token.
func encode(doc *document.Document, tokens []token) []protocol.UInteger {
	data := make([]protocol.UInteger, 0, 5*len(tokens))
	var prevLine, prevChar protocol.UInteger
	for _, t := range tokens {
		start := doc.PositionOf(t.start)
		end := doc.PositionOf(t.end)
		length := end.Character - start.Character
		if end.Line != start.Line {
			length = protocol.UInteger(t.end - t.start)
		}
		line, char := start.Line, start.Character
		deltaChar := char
		if line == prevLine {
			deltaChar = char - prevChar
		}
		data = append(data, line-prevLine, deltaChar, length, protocol.UInteger(t.typ), 0)
		prevLine, prevChar = line, char
	}
	return data
}
