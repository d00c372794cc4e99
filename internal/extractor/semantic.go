package extractor

import (
	"strings"

	"pyctx/internal/syntax"

	sitter "github.com/smacker/go-tree-sitter"
)

// SemanticContext is collected in one depth-first pass over a whole file.
// Each list keeps traversal order and duplicates.
type SemanticContext struct {
	Docstrings []string `json:"docstrings"`
	Comments   []string `json:"comments"`
	Variables  []string `json:"variables"`
}

// ExtractSemantic collects function docstrings, trailing comments and the
// names bound by plain assignments, at any depth.
func ExtractSemantic(tree *syntax.Tree) SemanticContext {
	return visitSemantic(tree, tree.Root(), SemanticContext{})
}

func visitSemantic(tree *syntax.Tree, n *sitter.Node, acc SemanticContext) SemanticContext {
	switch n.Type() {
	case "function_definition":
		if doc, ok := tree.Docstring(n); ok {
			acc.Docstrings = append(acc.Docstrings, doc)
		}
	case "assignment":
		if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
			acc.Variables = append(acc.Variables, tree.Text(left))
		}
	case "comment":
		if isTrailingComment(tree, n) {
			acc.Comments = append(acc.Comments, commentText(tree.Text(n)))
		}
		return acc
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			acc = visitSemantic(tree, child, acc)
		}
	}
	return acc
}

// isTrailingComment reports whether a comment ends a simple statement's line:
// code precedes it on the same line, and that code is not a block header.
// Comments inside brackets belong to an expression, not a statement.
func isTrailingComment(tree *syntax.Tree, c *sitter.Node) bool {
	if parent := c.Parent(); parent != nil && !statementLevel(parent.Type()) {
		return false
	}

	src := tree.Source()
	start := int(c.StartByte())
	lineStart := strings.LastIndexByte(string(src[:start]), '\n') + 1
	before := strings.TrimSpace(string(src[lineStart:start]))
	if before == "" {
		return false
	}
	return !strings.HasSuffix(before, ":")
}

func statementLevel(nodeType string) bool {
	switch nodeType {
	case "module", "block":
		return true
	}
	return strings.HasSuffix(nodeType, "_statement") ||
		strings.HasSuffix(nodeType, "_definition") ||
		strings.HasSuffix(nodeType, "_clause")
}

func commentText(raw string) string {
	return strings.TrimSpace(strings.Trim(raw, "# "))
}
