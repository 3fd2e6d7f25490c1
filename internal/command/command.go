// Package command holds the closed set of commands reachable from every
// surface, their registry and the dispatcher that runs them.
package command

import (
	"context"
	"fmt"
	"time"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/format"
	"orgls/internal/index"
	"orgls/internal/manager"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.command")

// Command is a decoded payload bound to one operation.
type Command interface {
	Name() string
	Title() string
	Execute(ctx context.Context, c *Context) (any, error)
}

// Searcher answers headline queries without scanning the store.
type Searcher interface {
	Search(ctx context.Context, q index.Query) ([]index.Headline, error)
}

// Context is what a command runs against.
type Context struct {
	Documents *manager.DocumentManager
	Env       env.Env
	Edits     *edit.Engine
	// Index is optional.
	Index Searcher
	// Now defaults to time.Now.
	Now func() time.Time
	// Format defaults to format.DefaultOptions.
	Format *format.Options
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Context) formatOptions() format.Options {
	if c.Format != nil {
		return *c.Format
	}
	return format.DefaultOptions()
}

// Load makes sure loc is in the store, reading it through Storage when
// it is not open yet.
func (c *Context) Load(ctx context.Context, loc document.Location) bool {
	if c.Documents.Contains(loc) {
		return true
	}
	text, err := c.Env.ReadToString(ctx, loc)
	if err != nil {
		c.Env.Log(ctx, env.LevelWarning, fmt.Sprintf("cannot find document %s: %v", loc, err))
		return false
	}
	c.Documents.Insert(loc, text)
	return true
}

// Reload brings the store's copy of loc in line with storage, opening
// it if needed. When storage cannot be read, it reports whether the
// store already has the document.
func (c *Context) Reload(ctx context.Context, loc document.Location) bool {
	text, err := c.Env.ReadToString(ctx, loc)
	if err != nil {
		if c.Documents.Contains(loc) {
			return true
		}
		c.Env.Log(ctx, env.LevelWarning, fmt.Sprintf("cannot find document %s: %v", loc, err))
		return false
	}
	current, ok := manager.With(c.Documents, loc, func(doc *document.Document) string { return doc.Text() })
	switch {
	case !ok:
		c.Documents.Insert(loc, text)
	case current != text:
		c.Documents.Update(loc, nil, text)
	}
	return true
}

// missing reports a document or node that could not be found.
func (c *Context) missing(ctx context.Context, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	log.Warning(text)
	c.Env.Log(ctx, env.LevelWarning, text)
}

// fail reports an operation the user asked for but that could not run.
func (c *Context) fail(ctx context.Context, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	log.Error(text)
	c.Env.Show(ctx, env.LevelError, text)
}

func (c *Context) info(ctx context.Context, format string, args ...any) {
	c.Env.Show(ctx, env.LevelInfo, fmt.Sprintf(format, args...))
}

// apply hands edits to the engine; an empty batch is a no-op.
func (c *Context) apply(ctx context.Context, edits []edit.Edit) error {
	if len(edits) == 0 {
		return nil
	}
	return c.Edits.Apply(ctx, edits)
}
