package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"pyctx/internal/crawler"
	"pyctx/internal/syntax"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

type Options struct {
	// CacheSize bounds the number of parsed files kept per session.
	CacheSize int
	// Excludes are doublestar globs skipped by the project scan.
	Excludes []string
	Chain    *ResolverChain
	// OnStage is called once per stage attempt with "resolved", "unresolved"
	// or "error".
	OnStage func(stage, outcome string)
}

type parsed struct {
	tree *syntax.Tree
	err  error
}

// Session resolves symbols for one analysis request. Parsed files are cached
// by absolute path for the lifetime of the session, so repeated lookups of the
// same file parse it once. Sessions are not shared between requests.
type Session struct {
	root    string
	crawler *crawler.Crawler
	chain   *ResolverChain
	cache   *lru.Cache[string, parsed]
	onStage func(stage, outcome string)

	mu    sync.Mutex
	stats map[string]ResolveStats
}

func NewSession(root string, opts Options) (*Session, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", root, err)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, parsed](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}

	chain := opts.Chain
	if chain == nil {
		chain = NewDefaultChain()
	}

	return &Session{
		root:    abs,
		crawler: crawler.NewCrawler(opts.Excludes...),
		chain:   chain,
		cache:   cache,
		onStage: opts.OnStage,
		stats:   make(map[string]ResolveStats),
	}, nil
}

func (s *Session) Root() string {
	return s.root
}

// Parse returns the tree of the file at path, parsing it on first use. Parse
// failures are cached as well.
func (s *Session) Parse(ctx context.Context, path string) (*syntax.Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if hit, ok := s.cache.Get(abs); ok {
		return hit.tree, hit.err
	}

	tree, err := syntax.ParseFile(ctx, abs)
	if ctx.Err() == nil {
		s.cache.Add(abs, parsed{tree: tree, err: err})
	}
	return tree, err
}

// Resolve maps a symbol referenced in from to the top-level declaration
// that defines it. It returns ErrUnresolved when no stage finds one.
func (s *Session) Resolve(ctx context.Context, name string, kind syntax.DeclKind, from *syntax.Tree) (*syntax.Declaration, error) {
	q := Query{Name: name, Kind: kind, From: from}
	decl, results := s.chain.Run(ctx, s, q)

	s.mu.Lock()
	for _, r := range results {
		st := s.stats[r.Resolver]
		st.Attempted += r.Stats.Attempted
		st.Resolved += r.Stats.Resolved
		st.Skipped += r.Stats.Skipped
		s.stats[r.Resolver] = st
	}
	s.mu.Unlock()

	for _, r := range results {
		outcome := "unresolved"
		switch {
		case r.Err != nil:
			outcome = "error"
			slog.Debug("resolver: stage failed", "stage", r.Resolver, "symbol", name, "error", r.Err)
		case r.Stats.Resolved > 0:
			outcome = "resolved"
		}
		if s.onStage != nil {
			s.onStage(r.Resolver, outcome)
		}
	}

	if decl == nil {
		return nil, unresolved(q, "all stages")
	}
	slog.Debug("resolver: resolved", "symbol", name, "file", decl.Path)
	return decl, nil
}

// Stats returns the accumulated per-stage counters in chain order.
func (s *Session) Stats() []StageResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StageResult
	for _, name := range s.chain.Names() {
		out = append(out, StageResult{Resolver: name, Stats: s.stats[name]})
	}
	return out
}
