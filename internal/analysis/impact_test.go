package analysis

import (
	"testing"

	"pyctx/internal/git"
	"pyctx/internal/graph"

	"github.com/stretchr/testify/assert"
)

// core <- service <- api <- cli, util standalone
func chainGraph() *graph.Graph {
	g := graph.NewGraph()
	for _, id := range []string{"core", "service", "api", "cli", "util"} {
		g.AddModule(&graph.Module{ID: id, Filepath: "/p/" + id + ".py"})
	}
	g.Edges = []graph.Edge{
		{From: "service", To: "core", Kind: graph.RelationImportsFrom},
		{From: "api", To: "service", Kind: graph.RelationImports},
		{From: "cli", To: "api", Kind: graph.RelationImports},
		{From: "cli", To: "core", Kind: graph.RelationImports},
	}
	return g
}

func ids(list []Affected) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestAnalyzeImpact(t *testing.T) {
	a := NewAnalyzer(chainGraph())

	t.Run("unbounded", func(t *testing.T) {
		r := a.AnalyzeImpact([]git.ChangedFile{{Path: "/p/core.py"}}, 0)
		assert.Equal(t, []string{"core"}, ids(r.DirectlyAffected))
		assert.Equal(t, []string{"cli", "service", "api"}, ids(r.IndirectlyAffected))
		assert.Equal(t, 1, r.IndirectlyAffected[0].Hops)
		assert.Equal(t, 2, r.IndirectlyAffected[2].Hops)
		assert.Equal(t, "/p/api.py", r.IndirectlyAffected[2].Filepath)
	})

	t.Run("hop limit", func(t *testing.T) {
		r := a.AnalyzeImpact([]git.ChangedFile{{Path: "/p/core.py"}}, 1)
		assert.Equal(t, []string{"cli", "service"}, ids(r.IndirectlyAffected))
	})

	t.Run("changed importer is direct only", func(t *testing.T) {
		r := a.AnalyzeImpact([]git.ChangedFile{{Path: "/p/core.py"}, {Path: "/p/service.py"}, {Path: "/p/core.py"}}, 0)
		assert.Equal(t, []string{"core", "service"}, ids(r.DirectlyAffected))
		assert.Equal(t, []string{"api", "cli"}, ids(r.IndirectlyAffected))
	})

	t.Run("unindexed", func(t *testing.T) {
		r := a.AnalyzeImpact([]git.ChangedFile{{Path: "/p/gone.py", Deleted: true}, {Path: "/p/util.py"}}, 0)
		assert.Equal(t, []string{"/p/gone.py"}, r.Unindexed)
		assert.Equal(t, []string{"util"}, ids(r.DirectlyAffected))
		assert.Empty(t, r.IndirectlyAffected)
	})
}
