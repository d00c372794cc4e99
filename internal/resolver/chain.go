package resolver

import (
	"context"
	"errors"
	"fmt"

	"pyctx/internal/syntax"
)

// ErrUnresolved means no project file supplies the symbol. It is the normal
// outcome for standard-library and third-party names.
var ErrUnresolved = errors.New("symbol unresolved")

// Query is one symbol lookup, issued from the file that references it.
type Query struct {
	Name string
	Kind syntax.DeclKind
	From *syntax.Tree
}

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// SymbolResolver is one stage of the resolution chain. Resolve returns
// ErrUnresolved when the stage has no answer.
type SymbolResolver interface {
	Name() string
	Resolve(ctx context.Context, s *Session, q Query) (*syntax.Declaration, error)
}

type StageResult struct {
	Resolver string
	Stats    ResolveStats
	Err      error
}

type ResolverChain struct {
	resolvers []SymbolResolver
}

func NewResolverChain(resolvers ...SymbolResolver) *ResolverChain {
	return &ResolverChain{resolvers: resolvers}
}

// NewDefaultChain tries the importing file's imports before scanning the
// whole project.
func NewDefaultChain() *ResolverChain {
	return NewResolverChain(NewImportResolver(), NewProjectScanResolver())
}

// Run asks each stage in order and stops at the first hit. Stages that fail
// with anything other than ErrUnresolved are recorded and skipped; a lookup
// failure never aborts the surrounding analysis.
func (c *ResolverChain) Run(ctx context.Context, s *Session, q Query) (*syntax.Declaration, []StageResult) {
	var out []StageResult
	for _, r := range c.resolvers {
		if err := ctx.Err(); err != nil {
			out = append(out, StageResult{Resolver: r.Name(), Stats: ResolveStats{Skipped: 1}, Err: err})
			break
		}

		decl, err := r.Resolve(ctx, s, q)
		res := StageResult{Resolver: r.Name(), Stats: ResolveStats{Attempted: 1}}
		switch {
		case err == nil && decl != nil:
			res.Stats.Resolved = 1
			out = append(out, res)
			return decl, out
		case err != nil && !errors.Is(err, ErrUnresolved):
			res.Stats.Skipped = 1
			res.Err = err
		}
		out = append(out, res)
	}
	return nil, out
}

func (c *ResolverChain) Names() []string {
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}

func unresolved(q Query, stage string) error {
	return fmt.Errorf("%w: %q (%s)", ErrUnresolved, q.Name, stage)
}
