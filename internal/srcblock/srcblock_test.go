package srcblock_test

import (
	"testing"

	"orgls/internal/document"
	"orgls/internal/env/envtest"
	"orgls/internal/org"
	"orgls/internal/srcblock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(text string) *org.Tree {
	return org.Parse(text, org.DefaultParseConfig())
}

func TestExtract(t *testing.T) {
	absent := []struct{ input, key string }{
		{"", ":tangle"},
		{" :noweb yes", ":tangle1"},
		{":tangle", ":tangle"},
	}
	for _, c := range absent {
		_, ok := srcblock.Extract(c.input, c.key)
		assert.False(t, ok, "%q in %q", c.key, c.input)
	}

	present := []struct{ input, want string }{
		{":tangle  ", ""},
		{":tangle emacs.d/init.el", "emacs.d/init.el"},
		{":tangle emacs.d/init.el :noweb yes", "emacs.d/init.el"},
		{" :noweb yes :tangle emacs.d/init.el", "emacs.d/init.el"},
		{":tangle\temacs.d/init.el\t:noweb yes", "emacs.d/init.el"},
	}
	for _, c := range present {
		got, ok := srcblock.Extract(c.input, ":tangle")
		require.True(t, ok, c.input)
		assert.Equal(t, c.want, got, c.input)
	}

	got, ok := srcblock.Extract(":results output code", ":results")
	require.True(t, ok)
	assert.Equal(t, "output code", got)
}

func TestArgsPrecedence(t *testing.T) {
	args := srcblock.NewArgs(":results code", ":results list :tangle a.js", ":tangle b.js :mkdir yes")
	assert.Equal(t, "code", args.Get(":results", "no"))
	assert.Equal(t, "a.js", args.Get(":tangle", "no"))
	assert.Equal(t, "yes", args.Get(":mkdir", "no"))
	assert.Equal(t, "no", args.Get(":padline", "no"))
}

func TestArgsOfReadsPropertiesAndKeyword(t *testing.T) {
	tree := parse("#+PROPERTY: header-args :tangle file.sh\n* a\n:PROPERTIES:\n:header-args: :mkdir yes\n:END:\n#+begin_src sh\necho\n#+end_src\n")
	blocks := srcblock.Blocks(tree)
	require.Len(t, blocks, 1)

	args := srcblock.ArgsOf(tree, blocks[0])
	assert.Equal(t, "file.sh", args.Get(":tangle", "no"))
	assert.Equal(t, "yes", args.Get(":mkdir", "no"))
}

func TestParseResults(t *testing.T) {
	cases := map[string]srcblock.Format{
		"output code":     srcblock.FormatCode,
		"code":            srcblock.FormatCode,
		"output list":     srcblock.FormatList,
		"scalar":          srcblock.FormatVerbatim,
		"output verbatim": srcblock.FormatVerbatim,
		"html":            srcblock.FormatHTML,
		"output latex":    srcblock.FormatLatex,
		"raw":             srcblock.FormatRaw,
	}
	for in, want := range cases {
		got, ok := srcblock.ParseResults(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "table", "output code list", "value"} {
		_, ok := srcblock.ParseResults(in)
		assert.False(t, ok, in)
	}
}

func TestExistingResults(t *testing.T) {
	tree := parse("\n#+BEGIN_SRC bash :results output code\n#+END_SRC\n\n#+RESULTS:\n#+begin_src\n\n\n#+end_src\n\n\n")
	blocks := srcblock.Blocks(tree)
	require.NotEmpty(t, blocks)

	r, ok := srcblock.ExistingResults(blocks[0])
	require.True(t, ok)
	assert.Equal(t, document.TextRange{Start: 61, End: 85}, r)
}

func TestExecutionRender(t *testing.T) {
	tree := parse("#+begin_src sh :results output list\necho\n#+end_src\n")
	block := srcblock.Blocks(tree)[0]

	ex, ok := srcblock.NewExecution(tree, block)
	require.True(t, ok)
	assert.Equal(t, "bash", ex.Program)
	assert.Equal(t, "echo\n", ex.Content)
	assert.Equal(t, document.Empty(len(tree.Text())), ex.Results)
	assert.Equal(t, "\n#+RESULTS:\n- a\n- b\n\n", ex.Render("a\nb\n"))

	ex.Results = document.TextRange{Start: 1, End: 5}
	ex.Format = srcblock.FormatCode
	assert.Equal(t, "#+begin_src\na\n#+end_src\n", ex.Render("a\n"))
	ex.Format = srcblock.FormatVerbatim
	assert.Equal(t, ": a\n", ex.Render("a"))
	ex.Format = srcblock.FormatHTML
	assert.Equal(t, "#+begin_export html\n<b/>\n#+end_export\n", ex.Render("<b/>"))
}

func TestNotExecutable(t *testing.T) {
	for _, text := range []string{
		"#+begin_src sh\necho\n#+end_src\n",
		"#+begin_src sh :results table\necho\n#+end_src\n",
		"#+begin_src cobol :results code\nDISPLAY\n#+end_src\n",
	} {
		tree := parse(text)
		_, ok := srcblock.NewExecution(tree, srcblock.Blocks(tree)[0])
		assert.False(t, ok, text)
	}
}

func TestTangleAppendsToNewFile(t *testing.T) {
	tree := parse("#+begin_src js :tangle ./a.js\nconsole.log('a')\n#+end_src\n")
	block := srcblock.At(tree, 0)
	require.NotNil(t, block)

	storage := envtest.NewStorage()
	tangle, err := srcblock.NewTangle(tree, block, "test://test.org", storage.Resolve)
	require.NoError(t, err)
	require.NotNil(t, tangle)
	assert.Equal(t, document.Location("test://test.org/a.js"), tangle.Destination)

	r, text := tangle.Render("")
	assert.Equal(t, document.Empty(0), r)
	assert.Equal(t, "\nconsole.log('a')\n", text)
}

func TestTangleShebangAndMode(t *testing.T) {
	tree := parse("#+begin_src sh :tangle run.sh :shebang #!/bin/sh :padline yes\necho hi\n#+end_src\n")
	tangle, err := srcblock.NewTangle(tree, srcblock.At(tree, 0), "file:///tmp/notes.org", envtest.NewStorage().Resolve)
	require.NoError(t, err)
	assert.EqualValues(t, 0o755, tangle.Mode)

	_, text := tangle.Render("")
	assert.Equal(t, "#!/bin/sh\n\necho hi\n\n", text)
}

func TestTangleReplacesLinkedRegion(t *testing.T) {
	tree := parse("* Setup\n#+begin_src sh :tangle run.sh :comments link\necho new\n#+end_src\n")
	tangle, err := srcblock.NewTangle(tree, srcblock.Blocks(tree)[0], "file:///tmp/notes.org", envtest.NewStorage().Resolve)
	require.NoError(t, err)

	existing := "# head\n# [[file:///tmp/run.sh::*Setup][Setup:1]]\necho old\n# Setup:1 ends here\n# tail\n"
	r, text := tangle.Render(existing)
	assert.Equal(t, document.TextRange{Start: 7, End: 78}, r)
	assert.Equal(t, "# [[file:///tmp/run.sh::*Setup][Setup:1]]\necho new\n# Setup:1 ends here\n", text)
}

func TestUntangledBlock(t *testing.T) {
	tree := parse("#+begin_src sh\necho\n#+end_src\n")
	tangle, err := srcblock.NewTangle(tree, srcblock.At(tree, 0), "test://test.org", envtest.NewStorage().Resolve)
	require.NoError(t, err)
	assert.Nil(t, tangle)
}

func TestDetangleExtract(t *testing.T) {
	tree := parse("* Setup\n#+begin_src sh :tangle run.sh :comments link\necho old\n#+end_src\n")
	block := srcblock.Blocks(tree)[0]
	d, err := srcblock.NewDetangle(tree, block, "file:///tmp/notes.org", envtest.NewStorage().Resolve)
	require.NoError(t, err)
	assert.Equal(t, document.Span(block.Contents), d.Contents)

	content := "# [[file:///tmp/run.sh::*Setup][Setup:1]]\necho changed\r\n# Setup:1 ends here\n"
	assert.Equal(t, "echo changed\n", d.Extract(content))

	tree = parse("#+begin_src sh :tangle run.sh\nx\n#+end_src\n")
	plain, err := srcblock.NewDetangle(tree, srcblock.At(tree, 0), "file:///tmp/notes.org", envtest.NewStorage().Resolve)
	require.NoError(t, err)
	assert.Equal(t, "whole file\n", plain.Extract("whole file\n"))
}
