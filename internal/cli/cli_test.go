package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orgls/internal/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func write(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFmtDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.org"), "a\n\n\n\nb\n")
	write(t, filepath.Join(dir, "sub", "b.org"), "c\n\n\n\nd\n")
	write(t, filepath.Join(dir, ".git", "c.org"), "a\n\n\n\nb\n")

	_, err := run(t, "", "fmt", dir)
	require.NoError(t, err)

	assert.Equal(t, "a\n\nb\n", read(t, filepath.Join(dir, "a.org")))
	assert.Equal(t, "c\n\nd\n", read(t, filepath.Join(dir, "sub", "b.org")))
	assert.Equal(t, "a\n\n\n\nb\n", read(t, filepath.Join(dir, ".git", "c.org")))
}

func TestFmtDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.org")
	write(t, path, "a\n\n\n\nb\n")

	out, err := run(t, "", "fmt", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "b")
	assert.Equal(t, "a\n\n\n\nb\n", read(t, path))
}

func TestFmtDiff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.org")
	write(t, path, "a\n\n\n\nb\n")

	out, err := run(t, "", "fmt", "--dry-run", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "@@")
	assert.Equal(t, "a\n\n\n\nb\n", read(t, path))
}

func TestTangle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.org")
	write(t, path, "#+begin_src sh :tangle ./out.sh\necho hi\n#+end_src\n")

	_, err := run(t, "", "tangle", path)
	require.NoError(t, err)
	assert.Contains(t, read(t, filepath.Join(dir, "out.sh")), "echo hi")
}

func TestExecuteSrcBlockKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "a.org")
	good := filepath.Join(dir, "b.org")
	write(t, bad, "#+begin_src lua :results raw\nerror(\"boom\")\n#+end_src\n")
	write(t, good, "#+begin_src lua :results raw\nprint(\"hi\")\n#+end_src\n")

	_, err := run(t, "", "execute-src-block", dir)
	require.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "1 of 2 files")

	assert.NotContains(t, read(t, bad), "#+RESULTS:")
	text := read(t, good)
	assert.Contains(t, text, "#+RESULTS:")
	assert.Contains(t, text, "hi")
}

func TestFileArgumentsRequired(t *testing.T) {
	_, err := run(t, "", "fmt")
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.org")
	write(t, path, "* a\n")
	loc, err := env.FileLocation(path)
	require.NoError(t, err)

	out, err := run(t, "", "command", "syntax-tree", `"`+string(loc)+`"`)
	require.NoError(t, err)
	var dump string
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	assert.Contains(t, dump, "Headline")
}

func TestCommandFromStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.org")
	write(t, path, "* a\n")
	loc, err := env.FileLocation(path)
	require.NoError(t, err)

	arg := `{"url":"` + string(loc) + `","line":1}`
	_, err = run(t, arg, "command", "orgls.headline-duplicate", "-")
	require.NoError(t, err)
	assert.Equal(t, "* a\n* a\n", read(t, path))
}

func TestCommandMalformed(t *testing.T) {
	_, err := run(t, "", "command", "nothing", "{}")
	assert.ErrorIs(t, err, env.ErrMalformedInput)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	write(t, cfg, "verbosity = 9\n")

	_, err := run(t, "", "--config", cfg, "fmt", dir)
	assert.Error(t, err)
}
