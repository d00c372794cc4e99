package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pyctx/internal/resolver"
	"pyctx/internal/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func walkTarget(t *testing.T, root, file, function string, opts WalkOptions) CallGraph {
	t.Helper()
	ctx := context.Background()
	tree, err := syntax.ParseFile(ctx, filepath.Join(root, file))
	require.NoError(t, err)
	decl, err := tree.FindTopLevel(syntax.KindFunction, function)
	require.NoError(t, err)

	s, err := resolver.NewSession(root, resolver.Options{})
	require.NoError(t, err)
	return NewExtractor(s, opts).WalkCalls(ctx, decl)
}

func TestExtractor_WalkCalls(t *testing.T) {
	t.Run("cross-file function call", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": "from b import bar\n\ndef foo():\n    bar()\n",
			"b.py": "def bar():\n    return 1\n",
		})
		got := walkTarget(t, root, "a.py", "foo", WalkOptions{})

		assert.Equal(t, []string{"bar()"}, got.FunctionCalls)
		assert.Empty(t, got.ClassCalls)
		assert.Equal(t, map[string]string{"bar": "def bar():\n    return 1"}, got.Definitions)
		assert.Empty(t, got.Unresolved)
	})

	t.Run("import of a missing module stays unresolved", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": "from nowhere import thing\n\ndef foo():\n    thing(1)\n",
		})
		got := walkTarget(t, root, "a.py", "foo", WalkOptions{})

		assert.Equal(t, []string{"thing(1)"}, got.FunctionCalls)
		assert.NotContains(t, got.Definitions, "thing")
		assert.Equal(t, []string{"thing"}, got.Unresolved)
	})

	t.Run("instantiation without definition", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": "def foo():\n    x = Widget()\n",
		})
		got := walkTarget(t, root, "a.py", "foo", WalkOptions{})

		assert.Equal(t, []string{"x = Widget()"}, got.ClassCalls)
		assert.Empty(t, got.Definitions)
	})

	t.Run("classification and same-file lookup", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": `import os

class Widget:
    def run(self):
        pass

def helper(v):
    return v

def foo(path):
    w = Widget()   # build it
    w.run()
    os.path.exists(path)
    helper(path)
    print(path)
    total = 1 + 2
    if path:
        helper(0)
`,
		})
		got := walkTarget(t, root, "a.py", "foo", WalkOptions{})

		assert.Equal(t, []string{"w = Widget()", "w.run()", "os.path.exists(path)"}, got.ClassCalls)
		assert.Equal(t, []string{"helper(path)", "print(path)"}, got.FunctionCalls)
		assert.Equal(t, "class Widget:\n    def run(self):\n        pass", got.Definitions["Widget"])
		assert.Equal(t, "def helper(v):\n    return v", got.Definitions["helper"])
		assert.Equal(t, []string{"print"}, got.Unresolved)
	})

	t.Run("nested blocks only with Deep", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": `def inner_call():
    pass

def foo(items):
    for i in items:
        inner_call()
    with open("f") as fh:
        fh.read()
    try:
        risky()
    except ValueError:
        handle()
    def nested():
        hidden()
`,
		})

		shallow := walkTarget(t, root, "a.py", "foo", WalkOptions{})
		assert.Empty(t, shallow.FunctionCalls)
		assert.Empty(t, shallow.ClassCalls)

		deep := walkTarget(t, root, "a.py", "foo", WalkOptions{Deep: true})
		assert.Equal(t, []string{"inner_call()", "risky()", "handle()"}, deep.FunctionCalls)
		assert.Equal(t, []string{"fh.read()"}, deep.ClassCalls)
		assert.Contains(t, deep.Definitions, "inner_call")
		assert.NotContains(t, deep.FunctionCalls, "hidden()")
	})

	t.Run("nil resolver keeps lookups local", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"a.py": "from b import bar\n\ndef foo():\n    bar()\n",
			"b.py": "def bar():\n    return 1\n",
		})
		tree, err := syntax.ParseFile(context.Background(), filepath.Join(root, "a.py"))
		require.NoError(t, err)
		decl, err := tree.FindTopLevel(syntax.KindFunction, "foo")
		require.NoError(t, err)

		got := NewExtractor(nil, WalkOptions{}).WalkCalls(context.Background(), decl)
		assert.Empty(t, got.Definitions)
		assert.Equal(t, []string{"bar"}, got.Unresolved)
	})
}

func TestExtractSemantic(t *testing.T) {
	src := `# module header
import os  # os module

def first():
    """First doc."""
    x = 1  # set x
    if x:  # header comment
        y = 2
    return x

class Box:
    """Class docs are not collected."""
    size = 3

    def method(self):
        '''Method doc.'''
        z: int = 4
        self.w = 5
        data = [
            1,  # inside brackets
        ]

def undocumented():
    a = b = 0  # chained
    c = 1  ## doubled #
`
	tree, err := syntax.Parse(context.Background(), "s.py", []byte(src))
	require.NoError(t, err)

	got := ExtractSemantic(tree)
	assert.Equal(t, []string{"First doc.", "Method doc."}, got.Docstrings)
	assert.Equal(t, []string{"os module", "set x", "chained", "doubled"}, got.Comments)
	assert.Equal(t, []string{"x", "y", "size", "z", "data", "a", "b", "c"}, got.Variables)
}

func TestRelationships(t *testing.T) {
	src := `import os, sys as system
from pkg.models import Widget, Gadget as G
from . import sibling
from util import *

def f():
    import json
    return os.getcwd(), Widget, sibling
`
	tree, err := syntax.Parse(context.Background(), "r.py", []byte(src))
	require.NoError(t, err)

	t.Run("relationships", func(t *testing.T) {
		assert.Equal(t, map[string][]string{
			"imports": {"os", "sys", "pkg.models.Widget", "pkg.models.Gadget", ".sibling", "util.*", "json"},
		}, Relationships(tree))
	})

	t.Run("dependencies", func(t *testing.T) {
		assert.Equal(t, []string{"os", "sys", "pkg.models", ".", "util", "json"}, Dependencies(tree))
	})

	t.Run("unused imports", func(t *testing.T) {
		unused, err := UnusedImports(tree)
		require.NoError(t, err)
		assert.Equal(t, []string{"json", "pkg.models.Gadget", "sys"}, unused)
	})

	t.Run("empty file", func(t *testing.T) {
		empty, err := syntax.Parse(context.Background(), "e.py", []byte(""))
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{"imports": {}}, Relationships(empty))
		assert.Empty(t, Dependencies(empty))
	})
}

func TestReadMetadata(t *testing.T) {
	root := writeProject(t, map[string]string{"m.py": "x = 1\n"})

	t.Run("existing file", func(t *testing.T) {
		md, err := ReadMetadata(filepath.Join(root, "m.py"))
		require.NoError(t, err)
		assert.Equal(t, int64(6), md.Size)
		assert.True(t, filepath.IsAbs(md.Path))
		assert.False(t, md.LastModified.IsZero())
		assert.Nil(t, md.UsageFrequency)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadMetadata(filepath.Join(root, "gone.py"))
		var rerr *ReadError
		require.True(t, errors.As(err, &rerr))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
