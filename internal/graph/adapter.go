package graph

import (
	"path/filepath"
	"strings"

	"pyctx/internal/syntax"
)

// ModuleID derives the dotted module name of a file under root.
// pkg/__init__.py is the module "pkg".
func ModuleID(root, path string) (id string, isPackage bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")

	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "__init__" {
		isPackage = true
		if len(parts) > 1 {
			parts = parts[:len(parts)-1]
		}
	}
	return strings.Join(parts, "."), isPackage
}

// FromTree converts a parsed file into a graph-domain Module.
func FromTree(root string, tree *syntax.Tree) *Module {
	id, isPkg := ModuleID(root, tree.Path)
	m := &Module{ID: id, Filepath: tree.Path, IsPackage: isPkg}

	for _, edge := range tree.Imports() {
		imp := Import{Target: edge.Module, Kind: RelationImports, Line: edge.Line}
		if edge.Name != "" {
			imp.Name = edge.Name
			imp.Kind = RelationImportsFrom
		}
		m.Imports = append(m.Imports, imp)
	}
	return m
}
