package syntax

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrNotFound is returned when a declaration is absent from a tree.
// Callers treat it as "not here, try elsewhere".
var ErrNotFound = errors.New("declaration not found")

// ParseError reports source text that does not conform to the grammar.
// No tree is produced when it is returned.
type ParseError struct {
	Path    string
	Message string
	Line    int // 1-based, 0 when unknown
	Column  int // 1-based, 0 when unknown
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Tree is one parsed source file. It is never mutated after Parse returns.
type Tree struct {
	Path   string
	source []byte
	tree   *sitter.Tree
	root   *sitter.Node
}

// Parse turns file contents into a Tree. Grammar violations are reported as
// *ParseError; partially recovered trees are discarded.
func Parse(ctx context.Context, path string, source []byte) (*Tree, error) {
	if !utf8.Valid(source) {
		return nil, &ParseError{Path: path, Message: "source is not valid UTF-8"}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, &ParseError{Path: path, Message: "parser returned no root node"}
	}

	if root.HasError() {
		perr := &ParseError{Path: path, Message: "invalid syntax"}
		if bad := firstErrorNode(root); bad != nil {
			perr.Line = int(bad.StartPoint().Row) + 1
			perr.Column = int(bad.StartPoint().Column) + 1
			if bad.IsMissing() {
				perr.Message = fmt.Sprintf("missing %q", bad.Type())
			}
		}
		tree.Close()
		return nil, perr
	}

	if bad, msg := layoutError(root); bad != nil {
		tree.Close()
		return nil, &ParseError{
			Path:    path,
			Message: msg,
			Line:    int(bad.StartPoint().Row) + 1,
			Column:  int(bad.StartPoint().Column) + 1,
		}
	}

	return &Tree{Path: path, source: source, tree: tree, root: root}, nil
}

// ParseFile reads and parses the file at path.
func ParseFile(ctx context.Context, path string) (*Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", abs, err)
	}
	return Parse(ctx, abs, source)
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() []byte {
	return t.source
}

// Root returns the module node.
func (t *Tree) Root() *sitter.Node {
	return t.root
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.source)
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstErrorNode(child); bad != nil {
			return bad
		}
	}
	return nil
}

// layoutError finds what the grammar recovers from without an ERROR node:
// Python 2 statements, empty suites and misaligned statements.
func layoutError(n *sitter.Node) (*sitter.Node, string) {
	switch n.Type() {
	case "print_statement", "exec_statement":
		kw := strings.TrimSuffix(n.Type(), "_statement")
		return n, fmt.Sprintf("%s statement is not valid in Python 3", kw)
	case "module":
		if bad := misaligned(n, 0); bad != nil {
			return bad, "unexpected indent"
		}
	case "block":
		if n.StartByte() == n.EndByte() || !hasStatement(n) {
			return n, "expected an indented block"
		}
		if bad := misaligned(n, -1); bad != nil {
			return bad, "unindent does not match the block indentation"
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if bad, msg := layoutError(n.NamedChild(i)); bad != nil {
			return bad, msg
		}
	}
	return nil, ""
}

func hasStatement(block *sitter.Node) bool {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if block.NamedChild(i).Type() != "comment" {
			return true
		}
	}
	return false
}

// misaligned returns the first statement that opens a line at a column other
// than col. A negative col takes the column of the first statement.
// Statements sharing a line after ';' are skipped, and so are comments.
func misaligned(n *sitter.Node, col int) *sitter.Node {
	prevRow := -1
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		start := child.StartPoint()
		sameLine := int(start.Row) == prevRow
		prevRow = int(child.EndPoint().Row)
		if sameLine {
			continue
		}
		if col < 0 {
			col = int(start.Column)
			continue
		}
		if int(start.Column) != col {
			return child
		}
	}
	return nil
}
