package format

import (
	"testing"

	"orgls/internal/edit"
	"orgls/internal/org"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, text string, edits []edit.Edit) string {
	t.Helper()
	if len(edits) == 0 {
		return text
	}
	groups := edit.Group(edits)
	require.Len(t, groups, 1)
	out, err := edit.Splice(text, groups[0])
	require.NoError(t, err)
	return out
}

func formatted(t *testing.T, text string, opts Options) string {
	t.Helper()
	tree := org.Parse(text, org.DefaultParseConfig())
	return apply(t, text, Edits("test://test.org", tree, opts))
}

func TestBlankLines(t *testing.T) {
	cases := []struct {
		name, input, want string
	}{
		{"collapse after block", "#+begin_src\n#+end_src\n\r\n\n\r", "#+begin_src\n#+end_src\n\n"},
		{"single newline kept", "#+begin_src\n#+end_src\n", "#+begin_src\n#+end_src\n"},
		{"no terminator", "#+begin_src\n#+end_src", "#+begin_src\n#+end_src"},
		{"paragraphs", "a\n\n\n\nb\n", "a\n\nb\n"},
		{"document start", "\n\n* a\n", "\n* a\n"},
		{"clock", "* a\nCLOCK: [2000-01-01 Sat 00:00]\n\n\n* b\n", "* a\nCLOCK: [2000-01-01 Sat 00:00]\n\n* b\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatted(t, tc.input, DefaultOptions()))
		})
	}
}

func TestRule(t *testing.T) {
	assert.Equal(t, "-----\n", formatted(t, "    ------------\r\n", DefaultOptions()))
	assert.Equal(t, "-----", formatted(t, "-----", DefaultOptions()))
}

func TestList(t *testing.T) {
	cases := []struct {
		input, want string
	}{
		{"1.    item", "1.    item"},
		{"0. item\n- item\n+ item", "1. item\n2. item\n3. item"},
		{" + item\n - item\n 1. item", "+ item\n+ item\n+ item"},
		{"1) a\n1) b", "1) a\n2) b"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatted(t, tc.input, DefaultOptions()), tc.input)
	}
}

func TestNestedListLevel(t *testing.T) {
	text := " + item\n - item\n 1. item"
	tree := org.Parse(text, org.DefaultParseConfig())
	lists := tree.Collect(org.KindList)
	require.Len(t, lists, 1)

	f := &formatter{text: text, target: "test://test.org"}
	f.list(lists[0], 2)
	assert.Equal(t, "      + item\n      + item\n      + item", apply(t, text, f.edits))
}

func TestListsDisabled(t *testing.T) {
	text := "0. item\n- item"
	assert.Equal(t, text, formatted(t, text, Options{}))
}
