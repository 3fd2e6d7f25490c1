package command

import (
	"context"
	"encoding/json"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/format"
	"orgls/internal/manager"
)

// DocumentFormat applies the formatting edits to a document.
type DocumentFormat struct {
	URL document.Location `json:"url" validate:"required"`
}

func (*DocumentFormat) Name() string  { return "document-format" }
func (*DocumentFormat) Title() string { return "Format document" }

func (cmd *DocumentFormat) Execute(ctx context.Context, c *Context) (any, error) {
	edits, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) []edit.Edit {
		return format.Edits(cmd.URL, doc.Tree(), c.formatOptions())
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return false, nil
	}
	if err := c.apply(ctx, edits); err != nil {
		return nil, err
	}
	return true, nil
}

// SyntaxTree returns a dump of the parsed tree. Its argument is either
// the bare url or an object holding it.
type SyntaxTree struct {
	URL document.Location `json:"url" validate:"required"`
}

func (*SyntaxTree) Name() string  { return "syntax-tree" }
func (*SyntaxTree) Title() string { return "Show syntax tree" }

func (cmd *SyntaxTree) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		cmd.URL = document.Location(url)
		return nil
	}
	type plain SyntaxTree
	return json.Unmarshal(data, (*plain)(cmd))
}

func (cmd *SyntaxTree) Execute(ctx context.Context, c *Context) (any, error) {
	dump, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) string {
		return doc.Tree().Dump()
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return nil, nil
	}
	return dump, nil
}
