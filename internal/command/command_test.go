package command_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"orgls/internal/command"
	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/env/envtest"
	"orgls/internal/index"
	"orgls/internal/manager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const url = document.Location("test://test.org")

var now = time.Date(2000, 1, 1, 10, 0, 0, 0, time.Local)

func newContext(h *envtest.Host) *command.Context {
	return &command.Context{
		Documents: h.Documents,
		Env:       h.Env,
		Edits:     h.Edits,
		Now:       func() time.Time { return now },
	}
}

func run(t *testing.T, c *command.Context, cmd command.Command) any {
	t.Helper()
	result, err := cmd.Execute(context.Background(), c)
	require.NoError(t, err)
	return result
}

func ptr[T any](v T) *T { return &v }

func TestHeadlineCreate(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\n")
	c := newContext(h)

	result := run(t, c, &command.HeadlineCreate{
		URL:       url,
		Keyword:   "TODO",
		Priority:  "B",
		Heading:   "new",
		Tags:      []string{"x", "y"},
		Section:   "body",
		Scheduled: ptr(time.Date(2000, 1, 3, 9, 30, 0, 0, time.Local)),
	})
	assert.Equal(t, command.HeadlineLocation{URL: url, Line: 3}, result)
	assert.Equal(t, "* a\n\n* TODO [#B] new :x:y:\nSCHEDULED: <2000-01-03 Mon 09:30>\nbody\n", h.Text(url))
}

func TestHeadlineCreateMissingDocument(t *testing.T) {
	h := envtest.New()
	result := run(t, newContext(h), &command.HeadlineCreate{URL: url, Heading: "new"})
	assert.Nil(t, result)
	assert.True(t, h.Messages.Contains("cannot find document"))
}

func TestHeadlineUpdate(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* abc\nsection\n** abc")
	c := newContext(h)

	result := run(t, c, &command.HeadlineUpdate{
		URL:      url,
		Line:     3,
		Keyword:  ptr("TODO"),
		Priority: ptr("A"),
		Heading:  ptr("mon"),
		Section:  ptr("section"),
	})
	assert.Equal(t, true, result)
	assert.Equal(t, "* abc\nsection\n** TODO [#A] mon\nsection\n", h.Text(url))
}

func TestHeadlineUpdateReplacesAndRemoves(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* TODO [#A] old :a:b:\nSCHEDULED: <2000-01-01 Sat>\ntext\n* next\n")
	c := newContext(h)

	run(t, c, &command.HeadlineUpdate{
		URL:      url,
		Line:     1,
		Keyword:  ptr(""),
		Priority: ptr("C"),
		Tags:     &[]string{"c"},
		Deadline: ptr(time.Date(2000, 1, 2, 0, 0, 0, 0, time.Local)),
		Section:  ptr(""),
	})
	assert.Equal(t, "* [#C] old :c:\nDEADLINE: <2000-01-02 Sun 00:00>\n* next\n", h.Text(url))

	run(t, c, &command.HeadlineUpdate{URL: url, Line: 1, Tags: &[]string{}, Priority: ptr("")})
	assert.Equal(t, "* old\nDEADLINE: <2000-01-02 Sun 00:00>\n* next\n", h.Text(url))
}

func TestHeadlineUpdateKeepsDrawers(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 09:00]\n:END:\nold\n")

	run(t, newContext(h), &command.HeadlineUpdate{URL: url, Line: 1, Section: ptr("new")})
	assert.Equal(t, "* a\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 09:00]\n:END:\nnew\n", h.Text(url))
}

func TestHeadlineRemove(t *testing.T) {
	h := envtest.New()
	h.Open(url, "** \n* ")
	c := newContext(h)

	assert.Equal(t, true, run(t, c, &command.HeadlineRemove{URL: url, Line: 1}))
	assert.Equal(t, "* ", h.Text(url))
	assert.Equal(t, true, run(t, c, &command.HeadlineRemove{URL: url, Line: 1}))
	assert.Equal(t, "", h.Text(url))

	assert.Equal(t, false, run(t, c, &command.HeadlineRemove{URL: url, Line: 1}))
	assert.True(t, h.Messages.Contains("cannot find headline in line 1"))
	assert.Equal(t, false, run(t, c, &command.HeadlineRemove{URL: "test://missing.org", Line: 1}))
	assert.True(t, h.Messages.Contains("cannot find document with url test://missing.org"))
}

func TestHeadlineDuplicate(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\n** b\n* c")
	c := newContext(h)

	run(t, c, &command.HeadlineDuplicate{URL: url, Line: 1})
	assert.Equal(t, "* a\n** b\n* a\n** b\n* c", h.Text(url))

	run(t, c, &command.HeadlineDuplicate{URL: url, Line: 5})
	assert.Equal(t, "* a\n** b\n* a\n** b\n* c\n* c", h.Text(url))
}

func TestHeadlineToc(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* toc\n* a\n**** g\n* b\n* c\n*** d\n** e\n*** f")

	run(t, newContext(h), &command.HeadlineToc{URL: url, HeadlineOffset: 0})
	assert.Equal(t, `* toc
#+begin_quote
- [[#a][a]]
  - [[#g][g]]
- [[#b][b]]
- [[#c][c]]
  - [[#d][d]]
  - [[#e][e]]
    - [[#f][f]]
#+end_quote

* a
**** g
* b
* c
*** d
** e
*** f`, h.Text(url))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "HelloWorld!", command.Slug("Hello World!"))
	assert.Equal(t, "ab", command.Slug("a é b"))
}

func TestHeadlineSearch(t *testing.T) {
	h := envtest.New()
	h.Open("test://a.org", "* TODO a\nSCHEDULED: <2024-03-04 Mon>\n* b\n")
	h.Open("test://b.org", "* c\nDEADLINE: <2024-05-01 Wed>\n")
	c := newContext(h)

	titles := func(result any) []string {
		var out []string
		for _, hl := range result.([]index.Headline) {
			out = append(out, hl.Title)
		}
		return out
	}

	all := run(t, c, &command.HeadlineSearch{})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, titles(all))

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local)
	march := run(t, c, &command.HeadlineSearch{Query: index.Query{From: &from, To: &to}})
	assert.Equal(t, []string{"a"}, titles(march))

	b := document.Location("test://b.org")
	only := run(t, c, &command.HeadlineSearch{Query: index.Query{URL: &b}})
	assert.Equal(t, []string{"c"}, titles(only))
}

func TestClockingStart(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a")
	c := newContext(h)

	run(t, c, &command.ClockingStart{URL: url, Line: 1})
	run(t, c, &command.ClockingStart{URL: url, Line: 1})
	assert.Equal(t, "* a\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 10:00]\nCLOCK: [2000-01-01 Sat 10:00]\n:END:\n", h.Text(url))
}

func TestClockingStartAfterMeta(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\nSCHEDULED: <2000-01-01 Sat>\n:PROPERTIES:\n:ID: x\n:END:\nbody\n")

	run(t, newContext(h), &command.ClockingStart{URL: url, Line: 1})
	assert.Equal(t, "* a\nSCHEDULED: <2000-01-01 Sat>\n:PROPERTIES:\n:ID: x\n:END:\n"+
		":LOGBOOK:\nCLOCK: [2000-01-01 Sat 10:00]\n:END:\nbody\n", h.Text(url))
}

func TestClockingStop(t *testing.T) {
	h := envtest.New()
	h.Open(url, "\n* a\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 10:00]\nCLOCK: [2000-01-01 Sat 09:00]\n:END:\n")

	run(t, newContext(h), &command.ClockingStop{URL: url, Line: 2})
	assert.Equal(t, "\n* a\n:LOGBOOK:\n"+
		"CLOCK: [2000-01-01 Sat 10:00]--[2000-01-01 Sat 10:00] => 00:00\n"+
		"CLOCK: [2000-01-01 Sat 09:00]--[2000-01-01 Sat 10:00] => 01:00\n"+
		":END:\n", h.Text(url))
}

func TestClockingStatus(t *testing.T) {
	h := envtest.New()
	h.Open(url, `
* a
:LOGBOOK:
CLOCK: [2000-01-01 Web 00:00]--[2000-01-01 Web 01:00] => 01:00
CLOCK: [2000-01-02 Web 00:00]--[2000-01-03 Web 01:00] => 01:00
CLOCK: [2000-01-03 Web 00:00]--[2000-01-04 Web 01:00] => 01:00
CLOCK: [2000-01-04 Web 00:00]--[2000-01-05 Web 01:00] => 01:00
CLOCK: [2000-01-06 Web 00:00]
:END:
* b
:LOGBOOK:
CLOCK: [2000-01-05 Web 00:00]--[2000-01-06 Web 01:00] => 01:00
CLOCK: [2000-01-03 Web 00:00]--[2000-01-04 Web 01:00] => 01:00
CLOCK: [2000-01-07 Web 00:00]
:END:
`)

	result := run(t, newContext(h), &command.ClockingStatus{})
	status, ok := result.(command.ClockingStatusResult)
	require.True(t, ok)
	require.NotNil(t, status.Running)
	assert.Equal(t, url, status.Running.URL)
	assert.Equal(t, 10, status.Running.Line)
	assert.Equal(t, "b", status.Running.Title)
	assert.True(t, time.Date(2000, 1, 7, 0, 0, 0, 0, time.Local).Equal(status.Running.Start))
}

func TestClockingStatusIdle(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\n")
	result := run(t, newContext(h), &command.ClockingStatus{})
	assert.Equal(t, command.ClockingStatusResult{}, result)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"running": null}`, string(data))
}

const doc = document.Location("test://test.org/doc.org")

func TestSrcBlockTangle(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js :tangle ./a.js\nconsole.log('a')\n#+end_src\n")

	result := run(t, newContext(h), &command.SrcBlockTangle{URL: doc, BlockOffset: 0})
	assert.Equal(t, true, result)
	assert.Equal(t, "\nconsole.log('a')\n", h.Text("test://test.org/a.js"))
	assert.True(t, h.Messages.Contains("Write to test://test.org/a.js"))
}

func TestSrcBlockTangleNotTangled(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js\nconsole.log('a')\n#+end_src\n")

	result := run(t, newContext(h), &command.SrcBlockTangle{URL: doc, BlockOffset: 0})
	assert.Equal(t, false, result)
	assert.True(t, h.Messages.Contains("Code block can't be tangled."))
}

func TestSrcBlockTangleAllSharesDestination(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src sh :tangle a.sh\necho a\n#+end_src\n#+begin_src sh :tangle a.sh\necho b\n#+end_src\n")

	result := run(t, newContext(h), &command.SrcBlockTangleAll{URL: doc})
	assert.Equal(t, true, result)
	assert.Equal(t, "\necho a\n\necho b\n", h.Text("test://test.org/a.sh"))
	assert.True(t, h.Messages.Contains("Found 2 code block from test://test.org/doc.org"))
}

func TestSrcBlockTangleUnresolvable(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js :tangle ./a.js\nconsole.log('a')\n#+end_src\n")
	c := newContext(h)
	c.Env = env.Env{Storage: env.FileStorage{}, Process: h.Process, Messaging: h.Messages}

	result := run(t, c, &command.SrcBlockTangle{URL: doc, BlockOffset: 0})
	assert.Equal(t, false, result)
	assert.True(t, h.Messages.Contains("Code block can't be tangled"))
}

func TestSrcBlockTangleDryRun(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js :tangle ./a.js\nconsole.log('a')\n#+end_src\n")
	c := newContext(h)
	var out bytes.Buffer
	c.Edits = edit.NewEngine(edit.NewDryRunApplier(h.Storage, &out, func(s string) string { return s }))

	run(t, c, &command.SrcBlockTangle{URL: doc, BlockOffset: 0})
	assert.Contains(t, out.String(), "console.log('a')")
	assert.Empty(t, h.Text("test://test.org/a.js"))
}

func TestSrcBlockDetangle(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js :tangle ./a.js\nold\n#+end_src\n")
	require.NoError(t, h.Storage.Write(context.Background(), "test://test.org/a.js", "new\n"))

	result := run(t, newContext(h), &command.SrcBlockDetangle{URL: doc, BlockOffset: 0})
	assert.Equal(t, true, result)
	assert.Equal(t, "#+begin_src js :tangle ./a.js\nnew\n#+end_src\n", h.Text(doc))
}

func TestSrcBlockDetangleAll(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js :tangle a.js\n1\n#+end_src\n#+begin_src js :tangle b.js\n2\n#+end_src\n")
	ctx := context.Background()
	require.NoError(t, h.Storage.Write(ctx, "test://test.org/a.js", "one\n"))
	require.NoError(t, h.Storage.Write(ctx, "test://test.org/b.js", "two\n"))

	run(t, newContext(h), &command.SrcBlockDetangleAll{URL: doc})
	assert.Equal(t, "#+begin_src js :tangle a.js\none\n#+end_src\n#+begin_src js :tangle b.js\ntwo\n#+end_src\n", h.Text(doc))
}

func TestSrcBlockExecute(t *testing.T) {
	h := envtest.New()
	text := "#+begin_src js :results verbatim\nconsole.log(1)\n#+end_src\n"
	h.Open(doc, text)
	h.Process.Output = "1\n"
	c := newContext(h)

	run(t, c, &command.SrcBlockExecute{URL: doc, BlockOffset: 0})
	assert.Equal(t, text+"\n#+RESULTS:\n: 1\n\n", h.Text(doc))

	calls := h.Process.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "node", calls[0].Program)
	assert.Equal(t, "console.log(1)\n", calls[0].Payload)

	// running again replaces the previous results
	h.Process.Output = "2\n"
	run(t, c, &command.SrcBlockExecute{URL: doc, BlockOffset: 0})
	assert.Equal(t, text+"\n#+RESULTS:\n: 2\n\n", h.Text(doc))
}

func TestSrcBlockExecuteNotExecutable(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src js\nconsole.log(1)\n#+end_src\n")

	result := run(t, newContext(h), &command.SrcBlockExecute{URL: doc, BlockOffset: 0})
	assert.Nil(t, result)
	assert.True(t, h.Messages.Contains("Code block can't be executed."))
	assert.Empty(t, h.Process.Calls())
}

func TestSrcBlockExecuteAll(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src sh :results list\necho a\n#+end_src\n#+begin_src sh\necho b\n#+end_src\n")
	h.Process.Output = "a\n"

	run(t, newContext(h), &command.SrcBlockExecuteAll{URL: doc})
	assert.Equal(t, "#+begin_src sh :results list\necho a\n#+end_src\n\n#+RESULTS:\n- a\n\n#+begin_src sh\necho b\n#+end_src\n", h.Text(doc))
	assert.Len(t, h.Process.Calls(), 1)
}

func TestSrcBlockExecuteFailure(t *testing.T) {
	h := envtest.New()
	h.Open(doc, "#+begin_src sh :results raw\nexit 1\n#+end_src\n")
	h.Process.Err = errors.New("executable file not found")

	_, err := (&command.SrcBlockExecute{URL: doc, BlockOffset: 0}).Execute(context.Background(), newContext(h))
	assert.ErrorContains(t, err, "executable file not found")
}

func TestDocumentFormat(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\ntext\n\n\n\n    ----------\n - x\n + y\n")

	result := run(t, newContext(h), &command.DocumentFormat{URL: url})
	assert.Equal(t, true, result)
	assert.Equal(t, "* a\ntext\n\n-----\n- x\n- y\n", h.Text(url))
}

func TestSyntaxTree(t *testing.T) {
	h := envtest.New()
	h.Open(url, "* a\n")

	result := run(t, newContext(h), &command.SyntaxTree{URL: url})
	dump, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, dump, "Headline")
}

func TestReload(t *testing.T) {
	h := envtest.New()
	c := newContext(h)
	ctx := context.Background()

	h.Open(doc, "* a\n")
	require.NoError(t, h.Storage.Write(ctx, doc, "* b\n"))
	require.True(t, c.Reload(ctx, doc))
	text, _ := manager.With(h.Documents, doc, func(d *document.Document) string { return d.Text() })
	assert.Equal(t, "* b\n", text)

	other := document.Location("test://test.org/other.org")
	assert.False(t, c.Reload(ctx, other))
	require.NoError(t, h.Storage.Write(ctx, other, "x\n"))
	assert.True(t, c.Reload(ctx, other))
	assert.True(t, h.Documents.Contains(other))
}
