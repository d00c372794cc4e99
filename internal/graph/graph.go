package graph

import (
	"path/filepath"
	"sort"
	"strings"
)

// Node represents a vertex in the import graph.
type Node struct {
	Module *Module `json:"module"`
}

// Edge represents a directed import from one module to another.
type Edge struct {
	From string       `json:"from"` // importing module ID
	To   string       `json:"to"`   // imported module ID
	Kind RelationKind `json:"kind"`
}

// Graph manages project modules and the imports between them.
type Graph struct {
	Nodes      map[string]*Node     `json:"nodes"`
	Edges      []Edge               `json:"edges"`
	Unresolved []UnresolvedRelation `json:"unresolved,omitempty"`

	// Filepath -> module ID
	pathIndex map[string]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		Edges:     []Edge{},
		pathIndex: make(map[string]string),
	}
}

// AddModule adds a module as a node and indexes it.
func (g *Graph) AddModule(m *Module) {
	if m == nil {
		return
	}
	g.Nodes[m.ID] = &Node{Module: m}
	if m.Filepath != "" {
		g.pathIndex[filepath.Clean(m.Filepath)] = m.ID
	}
}

// RebuildIndices restores lookup tables that are not serialized.
func (g *Graph) RebuildIndices() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.pathIndex = make(map[string]string, len(g.Nodes))
	for id, n := range g.Nodes {
		if n.Module != nil && n.Module.Filepath != "" {
			g.pathIndex[filepath.Clean(n.Module.Filepath)] = id
		}
	}
}

// ModuleForPath returns the ID of the module stored for a file.
func (g *Graph) ModuleForPath(path string) (string, bool) {
	id, ok := g.pathIndex[filepath.Clean(path)]
	return id, ok
}

// LinkRelations resolves every recorded import to a project module. Imports
// of modules outside the project are kept in Unresolved.
func (g *Graph) LinkRelations() {
	g.Edges = []Edge{}
	g.Unresolved = nil
	seen := make(map[Edge]bool)

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, sourceID := range ids {
		m := g.Nodes[sourceID].Module
		for _, imp := range m.Imports {
			targetID, reason := g.resolveTarget(m, imp)
			if targetID == "" {
				g.Unresolved = append(g.Unresolved, UnresolvedRelation{
					From: sourceID, Target: imp.Target, Kind: imp.Kind, Reason: reason,
				})
				continue
			}
			e := Edge{From: sourceID, To: targetID, Kind: imp.Kind}
			if seen[e] {
				continue
			}
			seen[e] = true
			g.Edges = append(g.Edges, e)
		}
	}
}

// resolveTarget finds the module an import refers to. For from-imports the
// imported name may itself be a submodule ("from pkg import mod").
func (g *Graph) resolveTarget(m *Module, imp Import) (string, UnresolvedReason) {
	base, ok := absoluteModule(m, imp.Target)
	if !ok {
		return "", ReasonOutsideRoot
	}

	var candidates []string
	if imp.Name != "" && imp.Name != "*" {
		candidates = append(candidates, joinModule(base, imp.Name))
	}
	candidates = append(candidates, base)

	for _, c := range candidates {
		if _, ok := g.Nodes[c]; !ok {
			continue
		}
		if c == m.ID {
			return "", ReasonSelf
		}
		return c, ""
	}
	return "", ReasonNoCandidate
}

// absoluteModule turns a possibly relative module reference into a dotted
// name rooted at the project.
func absoluteModule(m *Module, target string) (string, bool) {
	if !strings.HasPrefix(target, ".") {
		return target, true
	}
	dots := len(target) - len(strings.TrimLeft(target, "."))
	rest := target[dots:]

	pkg := m.ID
	if !m.IsPackage {
		pkg = parentModule(pkg)
	}
	for i := 1; i < dots; i++ {
		if pkg == "" {
			return "", false
		}
		pkg = parentModule(pkg)
	}
	return joinModule(pkg, rest), true
}

func parentModule(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[:i]
	}
	return ""
}

func joinModule(base, name string) string {
	switch {
	case base == "":
		return name
	case name == "":
		return base
	}
	return base + "." + name
}

// GetDependencies returns all modules that the given module imports.
func (g *Graph) GetDependencies(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.From == id {
			if node, ok := g.Nodes[edge.To]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// GetDependents returns all modules that import the given module, once each.
func (g *Graph) GetDependents(id string) []*Node {
	var deps []*Node
	seen := make(map[string]bool)
	for _, edge := range g.Edges {
		if edge.To != id || seen[edge.From] {
			continue
		}
		if node, ok := g.Nodes[edge.From]; ok {
			seen[edge.From] = true
			deps = append(deps, node)
		}
	}
	return deps
}

// UsageFrequency is the number of project modules importing the file.
func (g *Graph) UsageFrequency(path string) (int, bool) {
	id, ok := g.ModuleForPath(path)
	if !ok {
		return 0, false
	}
	return len(g.GetDependents(id)), true
}
