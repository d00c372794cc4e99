package extractor

import (
	"context"
	"log/slog"

	"pyctx/internal/syntax"
)

// SymbolResolver finds the declaration of a name referenced from another
// file. It returns an error when the name has no project definition.
type SymbolResolver interface {
	Resolve(ctx context.Context, name string, kind syntax.DeclKind, from *syntax.Tree) (*syntax.Declaration, error)
}

type WalkOptions struct {
	// Deep also visits statements nested in if/for/while/with/try/match
	// blocks of the target body. Nested function and class bodies are never
	// visited.
	Deep bool
}

// CallGraph is what a function body calls and instantiates.
type CallGraph struct {
	FunctionCalls []string          `json:"function_calls"`
	ClassCalls    []string          `json:"class_calls"`
	Definitions   map[string]string `json:"definitions"`
	Unresolved    []string          `json:"unresolved,omitempty"`
}

// Extractor walks a function body and resolves what it calls.
type Extractor struct {
	resolver SymbolResolver
	opts     WalkOptions
}

// NewExtractor creates an extractor. A nil resolver restricts resolution to
// the declaration's own file.
func NewExtractor(resolver SymbolResolver, opts WalkOptions) *Extractor {
	return &Extractor{resolver: resolver, opts: opts}
}

// WalkCalls classifies the direct statements of decl's body:
//
//	x = Name(...)      class instantiation, Name resolved as a class
//	obj.method(...)    method call, not resolved
//	name(...)          function call, name resolved as a function
//
// Names are looked up in decl's own file first and then through the
// resolver. A name that cannot be resolved is left out of Definitions.
func (e *Extractor) WalkCalls(ctx context.Context, decl *syntax.Declaration) CallGraph {
	acc := CallGraph{Definitions: make(map[string]string)}
	if decl == nil {
		return acc
	}
	acc = e.walk(ctx, decl.Tree(), decl.Body(), acc)
	acc.Unresolved = dedupe(acc.Unresolved)
	return acc
}

func (e *Extractor) walk(ctx context.Context, tree *syntax.Tree, stmts []syntax.Statement, acc CallGraph) CallGraph {
	for _, st := range stmts {
		switch st.Kind {
		case syntax.StmtAssignment:
			if call := st.Call(); call != nil && !call.Attribute {
				acc.ClassCalls = append(acc.ClassCalls, st.Text())
				acc = e.define(ctx, tree, call.Callee, syntax.KindClass, acc)
			}
		case syntax.StmtExprCall:
			call := st.Call()
			if call.Attribute {
				acc.ClassCalls = append(acc.ClassCalls, st.Text())
				continue
			}
			acc.FunctionCalls = append(acc.FunctionCalls, st.Text())
			acc = e.define(ctx, tree, call.Callee, syntax.KindFunction, acc)
		case syntax.StmtFunctionDecl, syntax.StmtClassDecl, syntax.StmtImport, syntax.StmtImportFrom:
		case syntax.StmtOther:
			if !e.opts.Deep {
				continue
			}
			for _, block := range st.Blocks() {
				acc = e.walk(ctx, tree, tree.BlockStatements(block), acc)
			}
		}
	}
	return acc
}

func (e *Extractor) define(ctx context.Context, tree *syntax.Tree, name string, kind syntax.DeclKind, acc CallGraph) CallGraph {
	if decl, err := tree.Lookup(kind, name); err == nil {
		acc.Definitions[name] = decl.Text()
		return acc
	}
	if e.resolver == nil {
		acc.Unresolved = append(acc.Unresolved, name)
		return acc
	}

	decl, err := e.resolver.Resolve(ctx, name, kind, tree)
	if err != nil {
		slog.Debug("extractor: symbol unresolved", "symbol", name, "file", tree.Path, "error", err)
		acc.Unresolved = append(acc.Unresolved, name)
		return acc
	}
	acc.Definitions[name] = decl.Text()
	return acc
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
