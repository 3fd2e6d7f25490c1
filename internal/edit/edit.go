// Package edit applies batches of byte-range edits to documents.
//
// An Engine groups a batch by target, orders and validates each group
// and hands it to an Applier. The applier decides what "apply" means:
// splice and write through storage, push to an editor client, or render
// a preview.
package edit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/metrics"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("orgls.edit")

// ErrOverlap is returned for a target whose edits overlap.
var ErrOverlap = fmt.Errorf("overlapping edits")

// ErrOutOfBounds is returned when an edit range does not fit the text.
var ErrOutOfBounds = fmt.Errorf("edit range out of bounds")

// ErrStale is returned when the stored text of a target no longer matches
// the copy its edits were computed from.
var ErrStale = fmt.Errorf("document changed on disk")

// Edit replaces Range of Target with Replacement. Range is in the
// coordinates of the text before any edit of the batch.
type Edit struct {
	Target      document.Location  `json:"target"`
	Replacement string             `json:"replacement"`
	Range       document.TextRange `json:"range"`
}

// Applier applies the ordered, non-overlapping edits of one target.
type Applier interface {
	Apply(ctx context.Context, target document.Location, edits []Edit) error
	// Mode names the applier in logs and metrics.
	Mode() string
}

// Engine applies edit batches. It is safe for concurrent use.
type Engine struct {
	applier Applier
	limit   int
}

func NewEngine(applier Applier) *Engine {
	return &Engine{applier: applier, limit: 8}
}

// DryRun reports whether the engine only renders edits.
func (e *Engine) DryRun() bool {
	_, ok := e.applier.(*DryRunApplier)
	return ok
}

// Apply groups edits by target and applies every group. A failing
// target does not stop the others; all failures are joined.
func (e *Engine) Apply(ctx context.Context, edits []Edit) error {
	groups := Group(edits)
	errs := make([]error, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, group := range groups {
		g.Go(func() error {
			errs[i] = e.applyGroup(ctx, group)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (e *Engine) applyGroup(ctx context.Context, group []Edit) error {
	target := group[0].Target
	if err := Validate(group); err != nil {
		log.Warningf("rejected edits for %s: %v", target, err)
		metrics.Edits.WithLabelValues(e.applier.Mode(), "error").Add(float64(len(group)))
		return fmt.Errorf("%s: %w", target, err)
	}
	err := e.applier.Apply(ctx, target, group)
	metrics.Edits.WithLabelValues(e.applier.Mode(), metrics.Outcome(err)).Add(float64(len(group)))
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	return nil
}

// Group splits edits by target in order of first appearance and stable
// sorts every group by range.
func Group(edits []Edit) [][]Edit {
	index := make(map[document.Location]int)
	var groups [][]Edit
	for _, ed := range edits {
		i, ok := index[ed.Target]
		if !ok {
			i = len(groups)
			index[ed.Target] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ed)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i].Range, group[j].Range
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return a.End < b.End
		})
	}
	return groups
}

// Validate checks that sorted edits of one target are well formed and do
// not overlap. Touching ranges and repeated inserts at one offset are
// allowed.
func Validate(sorted []Edit) error {
	for i, ed := range sorted {
		if ed.Range.Start < 0 || ed.Range.Start > ed.Range.End {
			return fmt.Errorf("%w: %d..%d", ErrOutOfBounds, ed.Range.Start, ed.Range.End)
		}
		if i > 0 && ed.Range.Start < sorted[i-1].Range.End {
			prev := sorted[i-1].Range
			return fmt.Errorf("%w: %d..%d and %d..%d", ErrOverlap, prev.Start, prev.End, ed.Range.Start, ed.Range.End)
		}
	}
	return nil
}

// Splice applies sorted, non-overlapping edits to text in one left to
// right pass.
func Splice(text string, sorted []Edit) (string, error) {
	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, ed := range sorted {
		if ed.Range.Start < cursor || ed.Range.End > len(text) {
			return "", fmt.Errorf("%w: %d..%d in text of length %d", ErrOutOfBounds, ed.Range.Start, ed.Range.End, len(text))
		}
		b.WriteString(text[cursor:ed.Range.Start])
		b.WriteString(ed.Replacement)
		cursor = ed.Range.End
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

// readOrEmpty reads loc, treating a missing target as empty so that
// edits can create files.
func readOrEmpty(ctx context.Context, storage env.Storage, loc document.Location) (string, error) {
	text, err := storage.ReadToString(ctx, loc)
	if errors.Is(err, env.ErrNotFound) {
		return "", nil
	}
	return text, err
}
