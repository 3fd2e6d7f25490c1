package command

import (
	"context"
	"fmt"
	"time"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/manager"
	"orgls/internal/org"
)

// ClockingStart opens a new clock on a headline.
type ClockingStart struct {
	URL  document.Location `json:"url" validate:"required"`
	Line int               `json:"line" validate:"min=1"`
}

func (*ClockingStart) Name() string  { return "clocking-start" }
func (*ClockingStart) Title() string { return "Start clocking" }

func (cmd *ClockingStart) Execute(ctx context.Context, c *Context) (any, error) {
	now := c.now()
	e, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) (edit.Edit, bool) {
		h := doc.HeadlineAt(cmd.Line)
		if h == nil {
			return edit.Edit{}, false
		}
		clock := "CLOCK: " + org.FormatInactive(now) + "\n"
		if logbook := h.Logbook(); logbook != nil {
			return edit.Edit{Target: cmd.URL, Replacement: clock, Range: document.Empty(logbook.Contents.End)}, true
		}
		text := doc.Text()
		at := afterMeta(text, h)
		drawer := ":LOGBOOK:\n" + clock + ":END:\n"
		if at == len(text) && !endsLine(text) {
			drawer = "\n" + drawer
		}
		return edit.Edit{Target: cmd.URL, Replacement: drawer, Range: document.Empty(at)}, true
	})
	if !ok {
		c.missing(ctx, "cannot find headline at %s:%d", cmd.URL, cmd.Line)
		return false, nil
	}
	if err := c.apply(ctx, []edit.Edit{e}); err != nil {
		return nil, err
	}
	return true, nil
}

// ClockingStop closes every running clock of a headline.
type ClockingStop struct {
	URL  document.Location `json:"url" validate:"required"`
	Line int               `json:"line" validate:"min=1"`
}

func (*ClockingStop) Name() string  { return "clocking-stop" }
func (*ClockingStop) Title() string { return "Stop clocking" }

func (cmd *ClockingStop) Execute(ctx context.Context, c *Context) (any, error) {
	now := c.now()
	edits, ok := manager.WithAndThen(c.Documents, cmd.URL, func(doc *document.Document) ([]edit.Edit, bool) {
		h := doc.HeadlineAt(cmd.Line)
		if h == nil {
			return nil, false
		}
		var edits []edit.Edit
		for _, clock := range h.Clocks() {
			if !clock.Running() {
				continue
			}
			edits = append(edits, edit.Edit{
				Target:      cmd.URL,
				Replacement: closedClock(clock.ClockStart.Time, now),
				Range:       document.TextRange{Start: clock.Begin, End: clock.Blank},
			})
		}
		return edits, true
	})
	if !ok {
		c.missing(ctx, "cannot find headline at %s:%d", cmd.URL, cmd.Line)
		return false, nil
	}
	if err := c.apply(ctx, edits); err != nil {
		return nil, err
	}
	return true, nil
}

func closedClock(start, end time.Time) string {
	d := end.Sub(start)
	return fmt.Sprintf("CLOCK: %s--%s => %02d:%02d\n",
		org.FormatInactive(start), org.FormatInactive(end), int(d.Hours()), int(d.Minutes())%60)
}

// ClockingStatus reports the most recently started running clock across
// all open documents.
type ClockingStatus struct{}

// RunningClock is the headline a running clock belongs to.
type RunningClock struct {
	URL   document.Location `json:"url"`
	Line  int               `json:"line"`
	Start time.Time         `json:"start"`
	Title string            `json:"title"`
}

type ClockingStatusResult struct {
	Running *RunningClock `json:"running"`
}

func (*ClockingStatus) Name() string  { return "clocking-status" }
func (*ClockingStatus) Title() string { return "Clocking status" }

func (cmd *ClockingStatus) Execute(ctx context.Context, c *Context) (any, error) {
	var running *RunningClock
	c.Documents.ForEach(func(loc document.Location, doc *document.Document) {
		tree := doc.Tree()
		doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
			if ev != org.Enter {
				return org.Continue
			}
			switch n.Kind {
			case org.KindSection:
				return org.Skip
			case org.KindHeadline:
			default:
				return org.Continue
			}
			for _, clock := range n.Clocks() {
				if !clock.Running() {
					continue
				}
				start := clock.ClockStart.Time
				if running != nil && !running.Start.Before(start) {
					continue
				}
				running = &RunningClock{
					URL:   loc,
					Line:  doc.LineOf(n.Start) + 1,
					Start: start,
					Title: tree.TitleOf(n),
				}
			}
			return org.Continue
		})
	})
	return ClockingStatusResult{Running: running}, nil
}
