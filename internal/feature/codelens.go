package feature

import (
	"strings"

	"orgls/internal/command"
	"orgls/internal/document"
	"orgls/internal/org"
	"orgls/internal/srcblock"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// CodeLenses offers execute, tangle and detangle on source blocks and
// TOC generation on headlines tagged "TOC".
func CodeLenses(loc document.Location, doc *document.Document) []protocol.CodeLens {
	tree := doc.Tree()
	lenses := []protocol.CodeLens{}
	lens := func(offset int, cmd command.Command) {
		runnable := command.Runnable(cmd)
		lenses = append(lenses, protocol.CodeLens{
			Range:   doc.RangeOf(document.Empty(offset)),
			Command: &runnable,
		})
	}

	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindSourceBlock:
			args := srcblock.ArgsOf(tree, n)
			if args.Get(":results", "no") != "no" {
				lens(n.Begin, &command.SrcBlockExecute{URL: loc, BlockOffset: n.Begin})
			}
			if args.Get(":tangle", "no") != "no" {
				lens(n.Begin, &command.SrcBlockTangle{URL: loc, BlockOffset: n.Begin})
				lens(n.Begin, &command.SrcBlockDetangle{URL: loc, BlockOffset: n.Begin})
			}
			return org.Skip
		case org.KindHeadline:
			for _, tag := range tree.TagsOf(n) {
				if strings.EqualFold(tag, "TOC") {
					lens(n.Start, &command.HeadlineToc{URL: loc, HeadlineOffset: n.Start})
					break
				}
			}
		}
		return org.Continue
	})
	return lenses
}

// ResolveCodeLens returns lens unchanged; lenses carry their command.
func ResolveCodeLens(lens protocol.CodeLens) protocol.CodeLens {
	return lens
}
