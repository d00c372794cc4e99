package extractor

import (
	"fmt"
	"sort"

	"pyctx/internal/syntax"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const identifierQuery = `(identifier) @id`

// Relationships returns the file's imports as qualified names under the
// "imports" key: "module" for plain imports, "module.name" for from-imports.
// Statement order, duplicates kept.
func Relationships(tree *syntax.Tree) map[string][]string {
	imports := []string{}
	for _, edge := range tree.Imports() {
		imports = append(imports, edge.Qualified())
	}
	return map[string][]string{"imports": imports}
}

// Dependencies lists the modules a file imports: the module of every plain
// import, and the source module of every from-import statement.
func Dependencies(tree *syntax.Tree) []string {
	deps := []string{}
	type stmtKey struct {
		line   int
		module string
	}
	seenFrom := make(map[stmtKey]bool)
	for _, edge := range tree.Imports() {
		if edge.Name == "" {
			deps = append(deps, edge.Module)
			continue
		}
		key := stmtKey{edge.Line, edge.Module}
		if seenFrom[key] {
			continue
		}
		seenFrom[key] = true
		deps = append(deps, edge.Module)
	}
	return deps
}

// UnusedImports reports imports whose bound name is never used as an
// identifier outside import statements. Wildcard imports are never reported.
func UnusedImports(tree *syntax.Tree) ([]string, error) {
	used, err := usedIdentifiers(tree)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var unused []string
	for _, edge := range tree.Imports() {
		if edge.Wildcard || used[edge.Bound()] {
			continue
		}
		name := edge.Qualified()
		if seen[name] {
			continue
		}
		seen[name] = true
		unused = append(unused, name)
	}
	sort.Strings(unused)
	return unused, nil
}

func usedIdentifiers(tree *syntax.Tree) (map[string]bool, error) {
	query, err := sitter.NewQuery([]byte(identifierQuery), python.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.Root())

	used := make(map[string]bool)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			if insideImport(c.Node) {
				continue
			}
			used[tree.Text(c.Node)] = true
		}
	}
	return used, nil
}

func insideImport(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			return true
		case "module":
			return false
		}
	}
	return false
}
