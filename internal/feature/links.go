package feature

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"orgls/internal/command"
	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/manager"
	"orgls/internal/org"
	"orgls/internal/srcblock"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var linkRe = regexp.MustCompile(`\[\[([^\]]+)\](?:\[([^\]]*)\])?\]`)

// Link data kinds.
const (
	LinkResolve    = "resolve"
	LinkHeadlineID = "headline-id"
)

// LinkData is attached to links whose target is computed on resolve.
type LinkData struct {
	Kind string            `json:"kind"`
	Base document.Location `json:"base"`
	Path string            `json:"path"`
}

// DocumentLinks returns the links of doc. Only web links carry a target;
// file and headline links are resolved lazily through ResolveLink.
func DocumentLinks(loc document.Location, doc *document.Document) []protocol.DocumentLink {
	tree := doc.Tree()
	text := tree.Text()
	links := []protocol.DocumentLink{}

	scan := func(start, end int) {
		if start >= end {
			return
		}
		for _, m := range linkRe.FindAllStringSubmatchIndex(text[start:end], -1) {
			from, to := start+m[2], start+m[3]
			if link, ok := pathLink(loc, text[from:to]); ok {
				link.Range = doc.RangeOf(document.TextRange{Start: from, End: to})
				links = append(links, link)
			}
		}
	}

	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindHeadline:
			scan(n.Title.Start, n.Title.End)
		case org.KindListItem:
			scan(n.Begin, n.LineEnd)
		case org.KindParagraph, org.KindTable:
			scan(n.Begin, n.Blank)
		case org.KindSourceBlock:
			if link, ok := tangleLink(loc, doc, n); ok {
				links = append(links, link)
			}
			return org.Skip
		case org.KindBlock, org.KindPropertyDrawer:
			return org.Skip
		}
		return org.Continue
	})
	return links
}

func pathLink(base document.Location, path string) (protocol.DocumentLink, bool) {
	link := protocol.DocumentLink{Tooltip: ptr("Jump to link")}
	switch {
	case strings.HasPrefix(path, "file:"):
		link.Data = LinkData{Kind: LinkResolve, Base: base, Path: strings.TrimPrefix(path, "file:")}
	case strings.HasPrefix(path, "/"), strings.HasPrefix(path, "./"), strings.HasPrefix(path, "~/"):
		link.Data = LinkData{Kind: LinkResolve, Base: base, Path: path}
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		link.Target = ptr(path)
	case strings.HasPrefix(path, "#"):
		link.Data = LinkData{Kind: LinkHeadlineID, Base: base, Path: path[1:]}
	default:
		return link, false
	}
	return link, true
}

// tangleLink turns the :tangle destination of a block into a link.
func tangleLink(base document.Location, doc *document.Document, block *org.Node) (protocol.DocumentLink, bool) {
	dest, ok := srcblock.Extract(block.Value, ":tangle")
	if !ok || dest == "" || dest == "no" {
		return protocol.DocumentLink{}, false
	}
	line := doc.Text()[block.Begin:block.LineEnd]
	params := strings.LastIndex(line, block.Value)
	if params < 0 {
		return protocol.DocumentLink{}, false
	}
	i := strings.Index(block.Value, dest)
	if i < 0 {
		return protocol.DocumentLink{}, false
	}
	start := block.Begin + params + i
	return protocol.DocumentLink{
		Range:   doc.RangeOf(document.TextRange{Start: start, End: start + len(dest)}),
		Tooltip: ptr("Jump to tangle destination"),
		Data:    LinkData{Kind: LinkResolve, Base: base, Path: dest},
	}, true
}

// ResolveLink fills in the target of a lazily resolved link. Links that
// already have a target, or whose data cannot be resolved, are returned
// unchanged.
func ResolveLink(docs *manager.DocumentManager, storage env.Storage, link protocol.DocumentLink) protocol.DocumentLink {
	if link.Target != nil || link.Data == nil {
		return link
	}
	data, err := decodeLinkData(link.Data)
	if err != nil {
		log.Debugf("ignoring link data: %v", err)
		return link
	}

	switch data.Kind {
	case LinkHeadlineID:
		line, ok := manager.With(docs, data.Base, func(doc *document.Document) int {
			return headlineLine(doc, data.Path)
		})
		if !ok {
			return link
		}
		target := string(data.Base)
		if line > 0 {
			target = fmt.Sprintf("%s#%d", data.Base, line)
		}
		link.Target = &target
	case LinkResolve:
		loc, err := storage.Resolve(data.Path, data.Base)
		if err != nil {
			log.Debugf("cannot resolve %s: %v", data.Path, err)
			return link
		}
		target := string(loc)
		link.Target = &target
	default:
		return link
	}
	link.Data = nil
	return link
}

func decodeLinkData(v any) (LinkData, error) {
	if data, ok := v.(LinkData); ok {
		return data, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return LinkData{}, err
	}
	var data LinkData
	if err := json.Unmarshal(raw, &data); err != nil {
		return LinkData{}, err
	}
	return data, nil
}

// headlineLine returns the 1-based line of the headline whose slug or
// CUSTOM_ID equals id, or 0.
func headlineLine(doc *document.Document, id string) int {
	tree := doc.Tree()
	line := 0
	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindSection:
			return org.Skip
		case org.KindHeadline:
			custom, _ := n.Property("CUSTOM_ID")
			if (custom != "" && custom == id) || command.Slug(tree.TitleOf(n)) == id {
				line = doc.LineOf(n.Begin) + 1
				return org.Stop
			}
		}
		return org.Continue
	})
	return line
}

func ptr[T any](v T) *T { return &v }
