package command

import (
	"context"
	"errors"
	"fmt"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/manager"
	"orgls/internal/srcblock"
)

// SrcBlockTangle writes one source block to its :tangle destination.
type SrcBlockTangle struct {
	URL         document.Location `json:"url" validate:"required"`
	BlockOffset int               `json:"blockOffset" validate:"min=0"`
}

func (*SrcBlockTangle) Name() string  { return "src-block-tangle" }
func (*SrcBlockTangle) Title() string { return "Tangle" }

type tangleLookup struct {
	tangle *srcblock.Tangle
	err    error
}

func (cmd *SrcBlockTangle) Execute(ctx context.Context, c *Context) (any, error) {
	found, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (tangleLookup, bool) {
		block := srcblock.At(doc.Tree(), cmd.BlockOffset)
		if block == nil {
			return tangleLookup{}, false
		}
		t, err := srcblock.NewTangle(doc.Tree(), block, cmd.URL, c.Env.Resolve)
		return tangleLookup{t, err}, true
	})
	if !ok {
		c.missing(ctx, "cannot find source block at offset %d of %s", cmd.BlockOffset, cmd.URL)
		return false, nil
	}
	if found.err != nil {
		c.fail(ctx, "Code block can't be tangled: %v", found.err)
		return false, nil
	}
	if found.tangle == nil {
		c.fail(ctx, "Code block can't be tangled.")
		return false, nil
	}

	t := found.tangle
	existing, err := readExisting(ctx, c.Env, t.Destination)
	if err != nil {
		return nil, err
	}
	rng, text := t.Render(existing)
	if err := c.writeTangled(ctx, []*srcblock.Tangle{t}, []edit.Edit{{Target: t.Destination, Replacement: text, Range: rng}}); err != nil {
		return nil, err
	}
	c.info(ctx, "Write to %s", t.Destination)
	return true, nil
}

// SrcBlockTangleAll tangles every source block of a document. Blocks
// sharing a destination are written in document order.
type SrcBlockTangleAll struct {
	URL document.Location `json:"url" validate:"required"`
}

func (*SrcBlockTangleAll) Name() string  { return "src-block-tangle-all" }
func (*SrcBlockTangleAll) Title() string { return "Tangle all source blocks" }

func (cmd *SrcBlockTangleAll) Execute(ctx context.Context, c *Context) (any, error) {
	tangles, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) []*srcblock.Tangle {
		var out []*srcblock.Tangle
		for _, block := range srcblock.Blocks(doc.Tree()) {
			t, err := srcblock.NewTangle(doc.Tree(), block, cmd.URL, c.Env.Resolve)
			if err != nil {
				log.Warningf("skipping block at %d of %s: %v", block.Start, cmd.URL, err)
				continue
			}
			if t != nil {
				out = append(out, t)
			}
		}
		return out
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return false, nil
	}
	if len(tangles) == 0 {
		return true, nil
	}

	// render every destination once, on top of the blocks before it
	original := make(map[document.Location]string)
	current := make(map[document.Location]string)
	var order []document.Location
	for _, t := range tangles {
		text, seen := current[t.Destination]
		if !seen {
			existing, err := readExisting(ctx, c.Env, t.Destination)
			if err != nil {
				return nil, err
			}
			original[t.Destination], text = existing, existing
			order = append(order, t.Destination)
		}
		rng, replacement := t.Render(text)
		next, err := edit.Splice(text, []edit.Edit{{Target: t.Destination, Replacement: replacement, Range: rng}})
		if err != nil {
			return nil, err
		}
		current[t.Destination] = next
	}

	edits := make([]edit.Edit, 0, len(order))
	for _, dest := range order {
		edits = append(edits, edit.Edit{
			Target:      dest,
			Replacement: current[dest],
			Range:       document.TextRange{Start: 0, End: len(original[dest])},
		})
	}
	if err := c.writeTangled(ctx, tangles, edits); err != nil {
		return nil, err
	}
	c.info(ctx, "Found %d code block from %s", len(tangles), cmd.URL)
	return true, nil
}

// writeTangled creates directories, applies the edits and sets file
// modes. Only the edits go through a dry-run engine.
func (c *Context) writeTangled(ctx context.Context, tangles []*srcblock.Tangle, edits []edit.Edit) error {
	dry := c.Edits.DryRun()
	if maker, ok := c.Env.Storage.(env.DirMaker); ok && !dry {
		for _, t := range tangles {
			if !t.Mkdir {
				continue
			}
			if err := maker.MkdirAll(ctx, t.Destination); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", t.Destination, err)
			}
		}
	}
	if err := c.apply(ctx, edits); err != nil {
		return err
	}
	if chmoder, ok := c.Env.Storage.(env.Chmoder); ok && !dry {
		for _, t := range tangles {
			if t.Mode == 0 {
				continue
			}
			if err := chmoder.Chmod(ctx, t.Destination, t.Mode); err != nil {
				return fmt.Errorf("failed to set mode of %s: %w", t.Destination, err)
			}
		}
	}
	return nil
}

// readExisting reads loc, treating a missing file as empty.
func readExisting(ctx context.Context, storage env.Storage, loc document.Location) (string, error) {
	text, err := storage.ReadToString(ctx, loc)
	if errors.Is(err, env.ErrNotFound) {
		return "", nil
	}
	return text, err
}

// SrcBlockDetangle reads a block back from its tangled file.
type SrcBlockDetangle struct {
	URL         document.Location `json:"url" validate:"required"`
	BlockOffset int               `json:"blockOffset" validate:"min=0"`
}

func (*SrcBlockDetangle) Name() string  { return "src-block-detangle" }
func (*SrcBlockDetangle) Title() string { return "Detangle" }

type detangleLookup struct {
	detangle *srcblock.Detangle
	err      error
}

func (cmd *SrcBlockDetangle) Execute(ctx context.Context, c *Context) (any, error) {
	found, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (detangleLookup, bool) {
		block := srcblock.At(doc.Tree(), cmd.BlockOffset)
		if block == nil {
			return detangleLookup{}, false
		}
		d, err := srcblock.NewDetangle(doc.Tree(), block, cmd.URL, c.Env.Resolve)
		return detangleLookup{d, err}, true
	})
	if !ok {
		c.missing(ctx, "cannot find source block at offset %d of %s", cmd.BlockOffset, cmd.URL)
		return false, nil
	}
	if found.err != nil {
		c.fail(ctx, "Code block can't be detangled: %v", found.err)
		return false, nil
	}
	if found.detangle == nil {
		c.missing(ctx, "Code block can't be detangled.")
		return false, nil
	}

	e, err := detangleEdit(ctx, c, cmd.URL, found.detangle)
	if err != nil {
		return nil, err
	}
	if err := c.apply(ctx, []edit.Edit{e}); err != nil {
		return nil, err
	}
	return true, nil
}

func detangleEdit(ctx context.Context, c *Context, loc document.Location, d *srcblock.Detangle) (edit.Edit, error) {
	content, err := c.Env.ReadToString(ctx, d.Destination)
	if err != nil {
		return edit.Edit{}, fmt.Errorf("failed to read %s: %w", d.Destination, err)
	}
	return edit.Edit{Target: loc, Replacement: d.Extract(content), Range: d.Contents}, nil
}

// SrcBlockDetangleAll detangles every tangled block of a document.
type SrcBlockDetangleAll struct {
	URL document.Location `json:"url" validate:"required"`
}

func (*SrcBlockDetangleAll) Name() string  { return "src-block-detangle-all" }
func (*SrcBlockDetangleAll) Title() string { return "Detangle all source blocks" }

func (cmd *SrcBlockDetangleAll) Execute(ctx context.Context, c *Context) (any, error) {
	detangles, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) []*srcblock.Detangle {
		var out []*srcblock.Detangle
		for _, block := range srcblock.Blocks(doc.Tree()) {
			d, err := srcblock.NewDetangle(doc.Tree(), block, cmd.URL, c.Env.Resolve)
			if err != nil {
				log.Warningf("skipping block at %d of %s: %v", block.Start, cmd.URL, err)
				continue
			}
			if d != nil {
				out = append(out, d)
			}
		}
		return out
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return false, nil
	}

	edits := make([]edit.Edit, 0, len(detangles))
	for _, d := range detangles {
		e, err := detangleEdit(ctx, c, cmd.URL, d)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	if err := c.apply(ctx, edits); err != nil {
		return nil, err
	}
	return true, nil
}

// SrcBlockExecute runs a block and writes its output below it.
type SrcBlockExecute struct {
	URL         document.Location `json:"url" validate:"required"`
	BlockOffset int               `json:"blockOffset" validate:"min=0"`
}

func (*SrcBlockExecute) Name() string  { return "src-block-execute" }
func (*SrcBlockExecute) Title() string { return "Execute" }

func (cmd *SrcBlockExecute) Execute(ctx context.Context, c *Context) (any, error) {
	type lookup struct {
		execution *srcblock.Execution
		ok        bool
	}
	found, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (lookup, bool) {
		block := srcblock.At(doc.Tree(), cmd.BlockOffset)
		if block == nil {
			return lookup{}, false
		}
		e, ok := srcblock.NewExecution(doc.Tree(), block)
		return lookup{e, ok}, true
	})
	if !ok {
		c.missing(ctx, "cannot find source block at offset %d of %s", cmd.BlockOffset, cmd.URL)
		return nil, nil
	}
	if !found.ok {
		c.fail(ctx, "Code block can't be executed.")
		return nil, nil
	}

	e, err := executeEdit(ctx, c, cmd.URL, found.execution)
	if err != nil {
		return nil, err
	}
	if err := c.apply(ctx, []edit.Edit{e}); err != nil {
		return nil, err
	}
	return true, nil
}

func executeEdit(ctx context.Context, c *Context, loc document.Location, e *srcblock.Execution) (edit.Edit, error) {
	output, err := c.Env.Execute(ctx, e.Program, e.Content)
	if err != nil {
		return edit.Edit{}, fmt.Errorf("failed to run %s: %w", e.Program, err)
	}
	return edit.Edit{Target: loc, Replacement: e.Render(output), Range: e.Results}, nil
}

// SrcBlockExecuteAll runs every executable block of a document.
type SrcBlockExecuteAll struct {
	URL document.Location `json:"url" validate:"required"`
}

func (*SrcBlockExecuteAll) Name() string  { return "src-block-execute-all" }
func (*SrcBlockExecuteAll) Title() string { return "Execute all source blocks" }

func (cmd *SrcBlockExecuteAll) Execute(ctx context.Context, c *Context) (any, error) {
	executions, ok := manager.With(c.Documents, cmd.URL, func(doc *document.Document) []*srcblock.Execution {
		var out []*srcblock.Execution
		for _, block := range srcblock.Blocks(doc.Tree()) {
			if e, ok := srcblock.NewExecution(doc.Tree(), block); ok {
				out = append(out, e)
			}
		}
		return out
	})
	if !ok {
		c.missing(ctx, "cannot find document with url %s", cmd.URL)
		return nil, nil
	}

	edits := make([]edit.Edit, 0, len(executions))
	for _, e := range executions {
		ed, err := executeEdit(ctx, c, cmd.URL, e)
		if err != nil {
			return nil, err
		}
		edits = append(edits, ed)
	}
	if err := c.apply(ctx, edits); err != nil {
		return nil, err
	}
	return true, nil
}
