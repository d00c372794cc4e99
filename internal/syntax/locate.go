package syntax

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

type DeclKind int

const (
	KindAny DeclKind = iota
	KindFunction
	KindClass
)

func (k DeclKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	default:
		return "declaration"
	}
}

// Declaration is a top-level function or class of a Tree.
type Declaration struct {
	Kind DeclKind
	Name string
	Path string
	Line int          // 1-based line of the def/class keyword (or first decorator)
	Node *sitter.Node // includes decorators

	def  *sitter.Node
	tree *Tree
}

// Text returns the canonical rendering of the declaration.
func (d *Declaration) Text() string {
	return Render(d.Node, d.tree.source)
}

// Body returns the direct statements of the declaration's body.
func (d *Declaration) Body() []Statement {
	return d.tree.blockStatements(d.def.ChildByFieldName("body"))
}

// Docstring returns the declaration's docstring, if its body opens with one.
func (d *Declaration) Docstring() (string, bool) {
	return d.tree.Docstring(d.def)
}

func (d *Declaration) Tree() *Tree {
	return d.tree
}

// FindTopLevel looks for a declaration directly under the module. Nested
// functions, methods and definitions inside compound statements are never
// returned. When names repeat, the first one in source order wins.
func (t *Tree) FindTopLevel(kind DeclKind, name string) (*Declaration, error) {
	for _, st := range t.Statements() {
		var k DeclKind
		switch st.Kind {
		case StmtFunctionDecl:
			k = KindFunction
		case StmtClassDecl:
			k = KindClass
		default:
			continue
		}
		if kind != KindAny && kind != k {
			continue
		}
		if st.Name() != name {
			continue
		}
		return &Declaration{
			Kind: k,
			Name: name,
			Path: t.Path,
			Line: int(st.Node.StartPoint().Row) + 1,
			Node: st.Node,
			def:  st.Inner,
			tree: t,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s %q in %s", ErrNotFound, kind, name, t.Path)
}

// Lookup searches the hinted kind first and then any kind. A call Name() does
// not say whether Name is a class or a factory function.
func (t *Tree) Lookup(hint DeclKind, name string) (*Declaration, error) {
	if hint != KindAny {
		if decl, err := t.FindTopLevel(hint, name); err == nil {
			return decl, nil
		}
	}
	return t.FindTopLevel(KindAny, name)
}

// Docstring returns the docstring of a function_definition or
// class_definition node.
func (t *Tree) Docstring(def *sitter.Node) (string, bool) {
	if def == nil {
		return "", false
	}
	body := def.ChildByFieldName("body")
	if body == nil {
		return "", false
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		first := body.NamedChild(i)
		if first.Type() == "comment" {
			continue
		}
		if first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
			return "", false
		}
		lit := first.NamedChild(0)
		if t.formatted(lit) {
			return "", false
		}
		switch lit.Type() {
		case "string":
			return StringValue(t.Text(lit)), true
		case "concatenated_string":
			var s string
			for j := 0; j < int(lit.NamedChildCount()); j++ {
				if part := lit.NamedChild(j); part.Type() == "string" {
					s += StringValue(t.Text(part))
				}
			}
			return s, true
		}
		return "", false
	}
	return "", false
}

// formatted reports whether a string literal, or any part of a concatenated
// one, is an f-string. Those are expressions, not docstrings.
func (t *Tree) formatted(lit *sitter.Node) bool {
	if lit.Type() == "concatenated_string" {
		for i := 0; i < int(lit.NamedChildCount()); i++ {
			if t.formatted(lit.NamedChild(i)) {
				return true
			}
		}
		return false
	}
	if lit.Type() != "string" {
		return false
	}
	for i := 0; i < int(lit.NamedChildCount()); i++ {
		if lit.NamedChild(i).Type() == "interpolation" {
			return true
		}
	}
	text := t.Text(lit)
	if i := strings.IndexAny(text, `"'`); i > 0 {
		return strings.ContainsAny(text[:i], "fF")
	}
	return false
}
