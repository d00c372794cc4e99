package analysis

import (
	"sort"

	"pyctx/internal/git"
	"pyctx/internal/graph"
)

// Affected is a module reached from a changed file, with the number of
// import hops between them.
type Affected struct {
	ID       string `json:"id"`
	Filepath string `json:"filepath"`
	Hops     int    `json:"hops"`
}

// ImpactReport summarizes the modules affected by changed files.
type ImpactReport struct {
	DirectlyAffected   []Affected `json:"directly_affected"`
	IndirectlyAffected []Affected `json:"indirectly_affected"`
	// Changed files that are not modules of the graph, e.g. deleted or new.
	Unindexed []string `json:"unindexed,omitempty"`
}

// Analyzer performs impact analysis on the import graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact finds the modules of the changed files and every module that
// imports them, directly or through up to maxHops importers. maxHops <= 0
// means no limit.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile, maxHops int) *ImpactReport {
	report := &ImpactReport{
		DirectlyAffected:   []Affected{},
		IndirectlyAffected: []Affected{},
	}

	// 1. Find Direct Impacts
	seen := make(map[string]bool)
	var frontier []string
	for _, change := range changes {
		id, ok := a.g.ModuleForPath(change.Path)
		if !ok {
			report.Unindexed = append(report.Unindexed, change.Path)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		frontier = append(frontier, id)
		report.DirectlyAffected = append(report.DirectlyAffected, a.affected(id, 0))
	}

	// 2. Find Indirect Impacts (importers), breadth first
	for hop := 1; len(frontier) > 0 && (maxHops <= 0 || hop <= maxHops); hop++ {
		var next []string
		for _, id := range frontier {
			for _, dep := range a.g.GetDependents(id) {
				depID := dep.Module.ID
				if seen[depID] {
					continue
				}
				seen[depID] = true
				next = append(next, depID)
				report.IndirectlyAffected = append(report.IndirectlyAffected, a.affected(depID, hop))
			}
		}
		frontier = next
	}

	sort.SliceStable(report.IndirectlyAffected, func(i, j int) bool {
		x, y := report.IndirectlyAffected[i], report.IndirectlyAffected[j]
		if x.Hops != y.Hops {
			return x.Hops < y.Hops
		}
		return x.ID < y.ID
	})
	return report
}

func (a *Analyzer) affected(id string, hops int) Affected {
	out := Affected{ID: id, Hops: hops}
	if n, ok := a.g.Nodes[id]; ok && n.Module != nil {
		out.Filepath = n.Module.Filepath
	}
	return out
}
