package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pyctx/internal/crawler"
	"pyctx/internal/graph"
	"pyctx/internal/syntax"
)

// Indexer builds and persists the project import graph.
type Indexer struct {
	crawler *crawler.Crawler
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler) *Indexer {
	return &Indexer{
		crawler: c,
	}
}

// BuildGraph scans the project root and constructs the import graph. Files
// that fail to parse are left out; they cannot import anything.
func (i *Indexer) BuildGraph(ctx context.Context, root string) (*graph.Graph, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	g := graph.NewGraph()

	err = i.crawler.ScanProject(root, func(path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tree, err := syntax.ParseFile(ctx, path)
		if err != nil {
			slog.Debug("index: skipping file", "file", path, "error", err)
			return nil
		}
		g.AddModule(graph.FromTree(root, tree))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// Resolve imports after all modules are loaded
	g.LinkRelations()

	return g, nil
}

// SaveGraph persists the graph to a JSON file.
func (i *Indexer) SaveGraph(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// LoadGraph loads a graph from a JSON file.
func (i *Indexer) LoadGraph(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	g := graph.NewGraph()
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	// Rebuild internal indices that aren't serialized
	g.RebuildIndices()

	return g, nil
}
