package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// StatementKind is the closed set of statement shapes the analyzers branch on.
type StatementKind int

const (
	StmtOther StatementKind = iota
	StmtFunctionDecl
	StmtClassDecl
	StmtAssignment
	StmtExprCall
	StmtImport
	StmtImportFrom
)

func (k StatementKind) String() string {
	switch k {
	case StmtFunctionDecl:
		return "function"
	case StmtClassDecl:
		return "class"
	case StmtAssignment:
		return "assignment"
	case StmtExprCall:
		return "call"
	case StmtImport:
		return "import"
	case StmtImportFrom:
		return "import_from"
	default:
		return "other"
	}
}

// Statement is one statement of a module or block.
//
// Node is the whole statement (a decorated_definition keeps its decorators).
// Inner is the node the kind refers to: the function/class definition, the
// assignment, the call or the import statement.
type Statement struct {
	Kind  StatementKind
	Node  *sitter.Node
	Inner *sitter.Node
	tree  *Tree
}

// Call describes the callee of a call expression.
type Call struct {
	Callee    string // bare name, or the full dotted text for attribute calls
	Attribute bool   // obj.method(...)
	Node      *sitter.Node
}

// ImportEdge is one imported name. Plain imports leave Name empty.
type ImportEdge struct {
	Module   string // dotted module path, relative imports keep their leading dots
	Name     string
	Alias    string
	Wildcard bool
	Line     int
}

// Bound returns the name the import introduces into the importing scope.
func (e ImportEdge) Bound() string {
	switch {
	case e.Alias != "":
		return e.Alias
	case e.Name != "":
		return e.Name
	default:
		if i := strings.Index(e.Module, "."); i > 0 {
			return e.Module[:i]
		}
		return e.Module
	}
}

// Qualified joins module and name the way relationship reports show them.
func (e ImportEdge) Qualified() string {
	if e.Name == "" {
		return e.Module
	}
	if strings.HasSuffix(e.Module, ".") {
		return e.Module + e.Name
	}
	return e.Module + "." + e.Name
}

// Statements returns the top-level statements of the module in source order.
func (t *Tree) Statements() []Statement {
	return t.blockStatements(t.root)
}

func (t *Tree) blockStatements(block *sitter.Node) []Statement {
	if block == nil {
		return nil
	}
	var out []Statement
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, t.classify(child))
	}
	return out
}

func (t *Tree) classify(n *sitter.Node) Statement {
	st := Statement{Kind: StmtOther, Node: n, Inner: n, tree: t}

	switch n.Type() {
	case "function_definition":
		st.Kind = StmtFunctionDecl
	case "class_definition":
		st.Kind = StmtClassDecl
	case "decorated_definition":
		def := n.ChildByFieldName("definition")
		if def == nil {
			return st
		}
		st.Inner = def
		switch def.Type() {
		case "function_definition":
			st.Kind = StmtFunctionDecl
		case "class_definition":
			st.Kind = StmtClassDecl
		}
	case "import_statement":
		st.Kind = StmtImport
	case "import_from_statement":
		st.Kind = StmtImportFrom
	case "expression_statement":
		if n.NamedChildCount() != 1 {
			return st
		}
		expr := n.NamedChild(0)
		if expr.Type() == "await" && expr.NamedChildCount() > 0 {
			expr = expr.NamedChild(0)
		}
		switch expr.Type() {
		case "assignment":
			st.Kind = StmtAssignment
			st.Inner = expr
		case "call":
			if t.callOf(expr) != nil {
				st.Kind = StmtExprCall
				st.Inner = expr
			}
		}
	}
	return st
}

// Name returns the declared name of a function or class statement.
func (s Statement) Name() string {
	if s.Kind != StmtFunctionDecl && s.Kind != StmtClassDecl {
		return ""
	}
	if name := s.Inner.ChildByFieldName("name"); name != nil {
		return s.tree.Text(name)
	}
	return ""
}

// Target returns the assigned name when the left-hand side is a bare name.
func (s Statement) Target() string {
	if s.Kind != StmtAssignment {
		return ""
	}
	left := s.Inner.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return ""
	}
	return s.tree.Text(left)
}

// Call returns the call performed by an expression statement, or the call on
// the right-hand side of an assignment. It is nil otherwise.
func (s Statement) Call() *Call {
	switch s.Kind {
	case StmtExprCall:
		return s.tree.callOf(s.Inner)
	case StmtAssignment:
		right := s.Inner.ChildByFieldName("right")
		if right == nil {
			return nil
		}
		if right.Type() == "await" && right.NamedChildCount() > 0 {
			right = right.NamedChild(0)
		}
		if right.Type() != "call" {
			return nil
		}
		return s.tree.callOf(right)
	}
	return nil
}

// Text returns the canonical rendering of the statement.
func (s Statement) Text() string {
	return Render(s.Node, s.tree.source)
}

// Blocks returns the blocks nested directly in a compound statement
// (if/elif/else, loops, with, try/except/finally, match cases). Function and
// class bodies are not returned: they open a new scope.
func (s Statement) Blocks() []*sitter.Node {
	if s.Kind == StmtFunctionDecl || s.Kind == StmtClassDecl {
		return nil
	}
	var blocks []*sitter.Node
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "block":
				blocks = append(blocks, child)
			case "function_definition", "class_definition", "decorated_definition":
			default:
				if strings.HasSuffix(child.Type(), "_clause") || child.Type() == "case_clause" {
					collect(child)
				}
			}
		}
	}
	collect(s.Node)
	return blocks
}

// BlockStatements classifies the statements of a block node.
func (t *Tree) BlockStatements(block *sitter.Node) []Statement {
	return t.blockStatements(block)
}

func (t *Tree) callOf(call *sitter.Node) *Call {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	switch fn.Type() {
	case "identifier":
		return &Call{Callee: t.Text(fn), Node: call}
	case "attribute":
		return &Call{Callee: t.Text(fn), Attribute: true, Node: call}
	}
	return nil
}

// Imports returns every import edge in the file, at any depth, in statement
// order. Duplicates are kept.
func (t *Tree) Imports() []ImportEdge {
	var edges []ImportEdge
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "import_statement":
				edges = append(edges, t.plainImport(child)...)
			case "import_from_statement":
				edges = append(edges, t.fromImport(child)...)
			default:
				walk(child)
			}
		}
	}
	walk(t.root)
	return edges
}

// ImportsOf returns the edges of a single import statement.
func (s Statement) ImportsOf() []ImportEdge {
	switch s.Kind {
	case StmtImport:
		return s.tree.plainImport(s.Node)
	case StmtImportFrom:
		return s.tree.fromImport(s.Node)
	}
	return nil
}

func (t *Tree) plainImport(n *sitter.Node) []ImportEdge {
	line := int(n.StartPoint().Row) + 1
	var edges []ImportEdge
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			edges = append(edges, ImportEdge{Module: t.Text(child), Line: line})
		case "aliased_import":
			edge := ImportEdge{Line: line}
			if name := child.ChildByFieldName("name"); name != nil {
				edge.Module = t.Text(name)
			}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				edge.Alias = t.Text(alias)
			}
			if edge.Module != "" {
				edges = append(edges, edge)
			}
		}
	}
	return edges
}

func (t *Tree) fromImport(n *sitter.Node) []ImportEdge {
	line := int(n.StartPoint().Row) + 1
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil
	}
	module := t.Text(moduleNode)

	var edges []ImportEdge
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}
		switch child.Type() {
		case "wildcard_import":
			edges = append(edges, ImportEdge{Module: module, Name: "*", Wildcard: true, Line: line})
		case "dotted_name":
			edges = append(edges, ImportEdge{Module: module, Name: t.Text(child), Line: line})
		case "aliased_import":
			edge := ImportEdge{Module: module, Line: line}
			if name := child.ChildByFieldName("name"); name != nil {
				edge.Name = t.Text(name)
			}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				edge.Alias = t.Text(alias)
			}
			if edge.Name != "" {
				edges = append(edges, edge)
			}
		}
	}
	return edges
}
