package index_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"orgls/internal/document"
	"orgls/internal/index"
	"orgls/internal/org"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agenda = `* TODO [#A] Write report :work:
SCHEDULED: <2024-03-04 Mon 09:00>
:PROPERTIES:
:EFFORT: 2h
:END:
draft the summary
:LOGBOOK:
CLOCK: [2024-03-04 Mon 09:00]--[2024-03-04 Mon 10:30] =>  1:30
CLOCK: [2024-03-05 Tue 09:00]
:END:
** DONE Gather numbers
CLOSED: [2024-02-01 Thu 12:00]
* Someday
`

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &t
}

func TestCollect(t *testing.T) {
	doc := document.New(agenda, org.DefaultParseConfig())
	hs := index.Collect("test://agenda.org", doc)
	require.Len(t, hs, 3)

	report := hs[0]
	assert.Equal(t, "Write report", report.Title)
	assert.Equal(t, 1, report.Line)
	assert.Equal(t, 1, report.Level)
	require.NotNil(t, report.Priority)
	assert.Equal(t, "A", *report.Priority)
	assert.Equal(t, []string{"work"}, report.Tags)
	assert.Equal(t, &index.Keyword{Value: "TODO", Type: "TODO"}, report.Keyword)
	require.NotNil(t, report.Planning.Scheduled)
	assert.True(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local).Equal(*report.Planning.Scheduled))
	require.NotNil(t, report.Section)
	assert.Equal(t, "draft the summary\n", *report.Section)
	assert.EqualValues(t, 90, report.Clocking.TotalMinutes)
	require.NotNil(t, report.Clocking.Start)
	assert.Equal(t, "2h", report.Properties["EFFORT"])

	gather := hs[1]
	assert.Equal(t, 11, gather.Line)
	assert.Equal(t, 2, gather.Level)
	assert.Equal(t, "DONE", gather.Keyword.Type)

	assert.Nil(t, hs[2].Section)
	assert.Nil(t, hs[2].Keyword)
}

func TestQueryMatch(t *testing.T) {
	doc := document.New(agenda, org.DefaultParseConfig())
	hs := index.Collect("test://agenda.org", doc)

	march := index.Query{From: day(2024, 3, 1), To: day(2024, 3, 31)}
	assert.True(t, march.Match(hs[0]))
	assert.False(t, march.Match(hs[1]), "closed in february")
	assert.False(t, march.Match(hs[2]), "no timestamps")

	other := document.Location("test://other.org")
	assert.False(t, index.Query{URL: &other}.Match(hs[0]))
	assert.True(t, index.Query{}.Match(hs[2]))
}

func TestIndexSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()
	loc := document.Location("test://agenda.org")
	doc := document.New(agenda, org.DefaultParseConfig())
	require.NoError(t, ix.Sync(ctx, loc, doc))

	all, err := ix.Search(ctx, index.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Write report", all[0].Title)
	assert.Equal(t, "Someday", all[2].Title)

	feb, err := ix.Search(ctx, index.Query{From: day(2024, 1, 1), To: day(2024, 2, 28)})
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, "Gather numbers", feb[0].Title)

	// re-syncing replaces previous records
	require.NoError(t, ix.Sync(ctx, loc, document.New("* Only\n", org.DefaultParseConfig())))
	all, err = ix.Search(ctx, index.Query{URL: &loc})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Only", all[0].Title)

	require.NoError(t, ix.Remove(ctx, loc))
	locs, err := ix.Locations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
}
