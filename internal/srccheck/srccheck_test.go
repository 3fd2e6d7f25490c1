package srccheck

import (
	"context"
	"testing"

	"orgls/internal/document"
	"orgls/internal/org"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func check(t *testing.T, text string) []protocol.Diagnostic {
	t.Helper()
	c := NewChecker(2)
	defer c.Close()
	return c.Check(context.Background(), document.New(text, org.DefaultParseConfig()))
}

func TestCheckReportsSyntaxErrors(t *testing.T) {
	diagnostics := check(t, "* a\n#+begin_src python\ndef f(:\n    pass\n#+end_src\n")
	require.NotEmpty(t, diagnostics)
	for _, d := range diagnostics {
		assert.GreaterOrEqual(t, d.Range.Start.Line, protocol.UInteger(2))
		assert.LessOrEqual(t, d.Range.End.Line, protocol.UInteger(4))
		require.NotNil(t, d.Severity)
		assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
		require.NotNil(t, d.Source)
		assert.Equal(t, Source, *d.Source)
	}
}

func TestCheckValidBlocks(t *testing.T) {
	text := "#+begin_src sh\necho hi\n#+end_src\n" +
		"#+begin_src python\nprint(1)\n#+end_src\n" +
		"#+begin_src yaml\na: 1\n#+end_src\n"
	assert.Empty(t, check(t, text))
}

func TestCheckSkipsUnknownLanguages(t *testing.T) {
	assert.Empty(t, check(t, "#+begin_src rust\nfn (\n#+end_src\n"))
	assert.Empty(t, check(t, "#+begin_src python\n#+end_src\n"))
}

func TestCheckReusesParsers(t *testing.T) {
	c := NewChecker(1)
	defer c.Close()
	doc := document.New("#+begin_src go\nfunc main() {\n#+end_src\n", org.DefaultParseConfig())
	first := c.Check(context.Background(), doc)
	second := c.Check(context.Background(), doc)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("Python"))
	assert.True(t, Supported("sh"))
	assert.False(t, Supported("rust"))
}
