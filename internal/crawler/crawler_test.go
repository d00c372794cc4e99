package crawler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestCrawler_ScanProject(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py":                   "",
		"a.py":                   "",
		"pkg/__init__.py":        "",
		"pkg/mod.py":             "",
		"pkg/readme.md":          "",
		"__pycache__/a.py":       "",
		".venv/lib/x.py":         "",
		"generated/out.py":       "",
		"tests/fixtures/f.py":    "",
		"tests/test_a.py":        "",
		"thing.egg-info/meta.py": "",
		".gitignore":             "generated/\n",
	})

	t.Run("lexical order with skipped and ignored dirs", func(t *testing.T) {
		files, err := NewCrawler().SourceFiles(root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"a.py", "b.py", "pkg/__init__.py", "pkg/mod.py",
			"tests/fixtures/f.py", "tests/test_a.py",
		}, relAll(t, root, files))
	})

	t.Run("exclude globs", func(t *testing.T) {
		files, err := NewCrawler("tests/**").SourceFiles(root)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.py", "b.py", "pkg/__init__.py", "pkg/mod.py"}, relAll(t, root, files))
	})

	t.Run("stable across runs", func(t *testing.T) {
		first, err := NewCrawler().SourceFiles(root)
		require.NoError(t, err)
		second, err := NewCrawler().SourceFiles(root)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("stop early", func(t *testing.T) {
		var seen []string
		err := NewCrawler().ScanProject(root, func(path string) error {
			seen = append(seen, path)
			return ErrStop
		})
		require.NoError(t, err)
		assert.Len(t, seen, 1)
	})

	t.Run("callback errors abort", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewCrawler().ScanProject(root, func(string) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
