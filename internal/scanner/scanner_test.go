package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.org":          "* a\n",
		"b.txt":          "b\n",
		"sub/c.org":      "* c\n",
		"sub/deep/D.ORG": "* d\n",
		".git/e.org":     "* e\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestScan(t *testing.T) {
	root := tree(t)

	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	err := Scan(context.Background(), root, 4, nil, func(path string, data []byte) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		mu.Lock()
		seen[filepath.ToSlash(rel)] = string(data)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.org":          "* a\n",
		"sub/c.org":      "* c\n",
		"sub/deep/D.ORG": "* d\n",
	}, seen)
}

func TestScanSkipAndError(t *testing.T) {
	root := tree(t)
	skip := func(path string, _ fs.FileInfo) bool { return filepath.Base(path) != "a.org" }

	calls := 0
	boom := errors.New("boom")
	err := Scan(context.Background(), root, 1, skip, func(string, []byte) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestFiles(t *testing.T) {
	root := tree(t)
	single := filepath.Join(root, "b.txt")

	files, err := Files(context.Background(), []string{single, root})
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "a.org"),
		filepath.Join(root, "sub", "c.org"),
		filepath.Join(root, "sub", "deep", "D.ORG"),
	}
	sort.Strings(want)
	assert.Equal(t, append([]string{single}, want...), files)

	_, err = Files(context.Background(), []string{filepath.Join(root, "missing.org")})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIgnoreDir(t *testing.T) {
	assert.True(t, IgnoreDir("/x/.git"))
	assert.False(t, IgnoreDir("/x/notes"))
	assert.False(t, IgnoreDir("."))
}
