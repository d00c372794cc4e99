package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"pyctx/internal/crawler"
	"pyctx/internal/extractor"
	"pyctx/internal/index"
	"pyctx/internal/resolver"
	"pyctx/internal/syntax"
)

// Assembler composes the extractors into a Bundle.
type Assembler struct {
	opts Options
}

func NewAssembler(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Assemble builds the bundle for one function. Only two failures are
// returned: the target file cannot be read or parsed (*extractor.ReadError,
// *syntax.ParseError), or the function is not declared at its top level
// (syntax.ErrNotFound). Every other failure leaves its field empty and adds a
// warning.
func (a *Assembler) Assemble(ctx context.Context, target Target) (*Bundle, error) {
	path, err := filepath.Abs(target.FilePath)
	if err != nil {
		return nil, &extractor.ReadError{Path: target.FilePath, Err: err}
	}
	root := a.projectRoot(target, path)

	session, err := resolver.NewSession(root, resolver.Options{
		CacheSize: a.opts.CacheSize,
		Excludes:  a.opts.Excludes,
		OnStage:   a.opts.OnResolve,
	})
	if err != nil {
		return nil, err
	}

	// 1. Parse the target file and locate the function
	tree, err := session.Parse(ctx, path)
	if err != nil {
		var perr *syntax.ParseError
		if errors.As(err, &perr) || ctx.Err() != nil {
			return nil, err
		}
		if inner := errors.Unwrap(err); inner != nil {
			err = inner
		}
		return nil, &extractor.ReadError{Path: path, Err: err}
	}
	decl, err := tree.FindTopLevel(syntax.KindFunction, target.FunctionName)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		FunctionName: target.FunctionName,
		FilePath:     path,
		FunctionCode: decl.Text(),
	}

	// 2. Calls and the definitions they resolve to
	ext := extractor.NewExtractor(session, extractor.WalkOptions{Deep: a.opts.Deep})
	calls := ext.WalkCalls(ctx, decl)

	// 3. File-wide semantic context
	sem := extractor.ExtractSemantic(tree)
	if len(sem.Docstrings) == 0 && a.opts.DocstringPlaceholder != "" {
		sem.Docstrings = []string{a.opts.DocstringPlaceholder}
	}
	b.SemanticInfo = SemanticInfo{
		Docstrings:  nonNil(sem.Docstrings),
		Comments:    nonNil(sem.Comments),
		Variables:   nonNil(sem.Variables),
		Functions:   nonNil(calls.FunctionCalls),
		Classes:     nonNil(calls.ClassCalls),
		Definitions: calls.Definitions,
	}
	b.Unresolved = nonNil(calls.Unresolved)

	// 4. Imports
	b.Dependencies = extractor.Dependencies(tree)
	b.CrossFileRelationship = extractor.Relationships(tree)
	unused, err := extractor.UnusedImports(tree)
	if err != nil {
		b.warn("unused import detection failed: %v", err)
	}
	b.UnusedImports = nonNil(unused)

	// 5. Filesystem metadata
	md, err := extractor.ReadMetadata(path)
	if err != nil {
		b.warn("file metadata unavailable: %v", err)
	} else {
		if a.opts.UsageFrequency {
			if freq, err := usageFrequency(ctx, root, a.opts.Excludes, path); err != nil {
				b.warn("usage frequency unavailable: %v", err)
			} else {
				md.UsageFrequency = &freq
			}
		}
		b.Metadata = &md
	}

	b.ResolutionStats = session.Stats()
	b.Warnings = nonNil(b.Warnings)

	slog.Debug("bundle: assembled",
		"file", path,
		"symbol", target.FunctionName,
		"definitions", len(calls.Definitions),
		"unresolved", len(calls.Unresolved),
	)
	return b, nil
}

func (a *Assembler) projectRoot(target Target, path string) string {
	switch {
	case target.Root != "":
		return target.Root
	case a.opts.Root != "":
		return a.opts.Root
	}
	return filepath.Dir(path)
}

func usageFrequency(ctx context.Context, root string, excludes []string, path string) (int, error) {
	g, err := index.NewIndexer(crawler.NewCrawler(excludes...)).BuildGraph(ctx, root)
	if err != nil {
		return 0, err
	}
	freq, ok := g.UsageFrequency(path)
	if !ok {
		return 0, fmt.Errorf("%s is not part of the project under %s", path, root)
	}
	return freq, nil
}

func (b *Bundle) warn(format string, args ...any) {
	b.Warnings = append(b.Warnings, fmt.Sprintf(format, args...))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
