// Package feature computes the read-only document intelligence served
// to editors: folding, outline, semantic tokens, code lenses, links and
// references. Everything here works on a Document already held under
// the store's read lock.
package feature

import (
	"orgls/internal/document"
	"orgls/internal/org"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("orgls.feature")

var regionKind = string(protocol.FoldingRangeKindRegion)

// FoldingRanges returns one region per headline subtree and per block
// like element spanning more than one line. Trailing blank lines of
// blocks are not folded.
func FoldingRanges(doc *document.Document) []protocol.FoldingRange {
	ranges := []protocol.FoldingRange{}
	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		var start, end int
		switch n.Kind {
		case org.KindHeadline:
			start, end = n.Start, n.End
		case org.KindTable, org.KindList, org.KindDrawer, org.KindPropertyDrawer,
			org.KindBlock, org.KindSourceBlock:
			start, end = n.Start, n.Blank
		default:
			return org.Continue
		}
		if end <= start {
			return org.Continue
		}
		startLine, endLine := doc.LineOf(start), doc.LineOf(end-1)
		if startLine != endLine {
			ranges = append(ranges, protocol.FoldingRange{
				StartLine: protocol.UInteger(startLine),
				EndLine:   protocol.UInteger(endLine),
				Kind:      &regionKind,
			})
		}
		return org.Continue
	})
	return ranges
}
