// Package index extracts headline records from documents and keeps them
// searchable, either by scanning the store or through a SQLite index.
package index

import (
	"strings"
	"time"

	"orgls/internal/document"
	"orgls/internal/org"
)

type Keyword struct {
	Value string `json:"value"`
	// Type is "TODO" or "DONE".
	Type string `json:"type"`
}

type Planning struct {
	Deadline  *time.Time `json:"deadline"`
	Scheduled *time.Time `json:"scheduled"`
	Closed    *time.Time `json:"closed"`
}

// Clocking summarizes the clock lines of a headline.
type Clocking struct {
	// Start of the running clock, if any.
	Start        *time.Time `json:"start"`
	TotalMinutes int64      `json:"totalMinutes"`
}

// Headline is the searchable summary of one headline.
type Headline struct {
	Title      string            `json:"title"`
	URL        document.Location `json:"url"`
	Line       int               `json:"line"` // 1-based
	Level      int               `json:"level"`
	Priority   *string           `json:"priority"`
	Tags       []string          `json:"tags"`
	Keyword    *Keyword          `json:"keyword"`
	Planning   Planning          `json:"planning"`
	Section    *string           `json:"section"`
	Clocking   Clocking          `json:"clocking"`
	Properties map[string]string `json:"properties"`
}

// Timestamps returns the planning timestamps of h.
func (h Headline) Timestamps() []time.Time {
	var ts []time.Time
	for _, t := range []*time.Time{h.Planning.Closed, h.Planning.Scheduled, h.Planning.Deadline} {
		if t != nil {
			ts = append(ts, *t)
		}
	}
	return ts
}

// Query selects headlines. A headline without planning timestamps never
// matches a query with a time bound.
type Query struct {
	URL  *document.Location `json:"url,omitempty"`
	From *time.Time         `json:"from,omitempty"`
	To   *time.Time         `json:"to,omitempty"`
}

func (q Query) Match(h Headline) bool {
	if q.URL != nil && *q.URL != h.URL {
		return false
	}
	ts := h.Timestamps()
	if q.From != nil && all(ts, func(t time.Time) bool { return t.Before(*q.From) }) {
		return false
	}
	if q.To != nil && all(ts, func(t time.Time) bool { return t.After(*q.To) }) {
		return false
	}
	return true
}

func all(ts []time.Time, fn func(time.Time) bool) bool {
	for _, t := range ts {
		if !fn(t) {
			return false
		}
	}
	return true
}

// Collect returns a record for every headline of doc in document order.
func Collect(loc document.Location, doc *document.Document) []Headline {
	tree := doc.Tree()
	var out []Headline
	doc.Traverse(func(ev org.Event, n *org.Node) org.Action {
		if ev != org.Enter {
			return org.Continue
		}
		switch n.Kind {
		case org.KindSection:
			return org.Skip
		case org.KindHeadline:
			out = append(out, record(loc, doc, tree, n))
		}
		return org.Continue
	})
	return out
}

func record(loc document.Location, doc *document.Document, tree *org.Tree, h *org.Node) Headline {
	r := Headline{
		Title:      tree.TitleOf(h),
		URL:        loc,
		Line:       doc.LineOf(h.Start) + 1,
		Level:      h.Level,
		Tags:       tree.TagsOf(h),
		Properties: map[string]string{},
	}
	if p := tree.PriorityOf(h); p != "" {
		r.Priority = &p
	}
	if kw := tree.KeywordOf(h); kw != "" {
		typ := "TODO"
		if h.Done {
			typ = "DONE"
		}
		r.Keyword = &Keyword{Value: kw, Type: typ}
	}
	if p := h.Planning(); p != nil {
		r.Planning = Planning{
			Deadline:  timeOf(p.Deadline),
			Scheduled: timeOf(p.Scheduled),
			Closed:    timeOf(p.Closed),
		}
	}
	if s := h.Section(); s != nil {
		var b strings.Builder
		for _, c := range s.Children {
			if c.Kind != org.KindDrawer {
				b.WriteString(tree.Raw(c))
			}
		}
		section := b.String()
		r.Section = &section
	}
	for _, c := range h.Clocks() {
		switch {
		case c.Running():
			if r.Clocking.Start == nil {
				r.Clocking.Start = timeOf(c.ClockStart)
			}
		case c.ClockStart != nil && c.ClockEnd != nil:
			r.Clocking.TotalMinutes += int64(c.ClockEnd.Time.Sub(c.ClockStart.Time).Minutes())
		}
	}
	if drawer := h.Child(org.KindPropertyDrawer); drawer != nil {
		for _, p := range drawer.Properties {
			r.Properties[p.Key] = p.Value
		}
	}
	return r
}

func timeOf(ts *org.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
