package resolver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pyctx/internal/crawler"
	"pyctx/internal/syntax"
)

// ImportResolver follows the importing file's from-imports to the module
// that should define the symbol.
type ImportResolver struct{}

func NewImportResolver() *ImportResolver {
	return &ImportResolver{}
}

func (r *ImportResolver) Name() string {
	return "imports"
}

func (r *ImportResolver) Resolve(ctx context.Context, s *Session, q Query) (*syntax.Declaration, error) {
	if q.From == nil {
		return nil, unresolved(q, r.Name())
	}
	fromDir := filepath.Dir(q.From.Path)

	for _, edge := range q.From.Imports() {
		lookup := ""
		switch {
		case edge.Wildcard:
			lookup = q.Name
		case edge.Name == "":
			// import x binds a module, not a declaration
			continue
		case edge.Alias == q.Name:
			lookup = edge.Name
		case edge.Alias == "" && edge.Name == q.Name:
			lookup = edge.Name
		default:
			continue
		}

		for _, path := range ModulePaths(edge.Module, s.root, fromDir) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !isFile(path) {
				continue
			}
			if samePath(path, q.From.Path) {
				continue
			}
			tree, err := s.Parse(ctx, path)
			if err != nil {
				slog.Debug("resolver: candidate not parsed", "stage", r.Name(), "file", path, "error", err)
				continue
			}
			decl, err := tree.Lookup(q.Kind, lookup)
			if err == nil {
				return decl, nil
			}
		}
	}
	return nil, unresolved(q, r.Name())
}

// ProjectScanResolver walks every source file under the project root and
// returns the first top-level declaration with the symbol's name.
type ProjectScanResolver struct{}

func NewProjectScanResolver() *ProjectScanResolver {
	return &ProjectScanResolver{}
}

func (r *ProjectScanResolver) Name() string {
	return "project_scan"
}

func (r *ProjectScanResolver) Resolve(ctx context.Context, s *Session, q Query) (*syntax.Declaration, error) {
	var found *syntax.Declaration
	err := s.crawler.ScanProject(s.root, func(path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.From != nil && samePath(path, q.From.Path) {
			return nil
		}
		tree, err := s.Parse(ctx, path)
		if err != nil {
			slog.Debug("resolver: skipping unparsable file", "stage", r.Name(), "file", path, "error", err)
			return nil
		}
		if decl, err := tree.Lookup(q.Kind, q.Name); err == nil {
			found = decl
			return crawler.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, unresolved(q, r.Name())
	}
	return found, nil
}

// ModulePaths translates a dotted module path into candidate files, in the
// order they should be tried. Absolute modules are looked up under root and
// then next to the importing file; relative modules ("." / "..pkg") only
// relative to the importing file's directory.
func ModulePaths(module, root, fromDir string) []string {
	if module == "" {
		return nil
	}

	var bases []string
	rest := module
	if strings.HasPrefix(module, ".") {
		dots := len(module) - len(strings.TrimLeft(module, "."))
		base := fromDir
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		bases = []string{base}
		rest = module[dots:]
	} else {
		bases = []string{root}
		if fromDir != "" && !samePath(fromDir, root) {
			bases = append(bases, fromDir)
		}
	}

	var out []string
	for _, base := range bases {
		if rest == "" {
			out = append(out, filepath.Join(base, "__init__.py"))
			continue
		}
		rel := filepath.Join(strings.Split(rest, ".")...)
		out = append(out,
			filepath.Join(base, rel+".py"),
			filepath.Join(base, rel, "__init__.py"),
		)
	}
	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("resolver: stat failed", "file", path, "error", err)
		}
		return false
	}
	return !info.IsDir()
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
