package crawler

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// ErrStop ends a scan early without reporting an error.
var ErrStop = errors.New("stop scan")

// Crawler scans a project directory for Python source files.
// Files are visited in lexical order, so two scans of an unchanged tree visit
// the same files in the same order.
type Crawler struct {
	ignored  []string
	excludes []string
}

// NewCrawler creates a crawler. excludes are doublestar globs matched against
// slash-separated paths relative to the project root.
func NewCrawler(excludes ...string) *Crawler {
	return &Crawler{
		ignored: []string{
			".git", ".hg", ".svn", "__pycache__", "node_modules",
			"venv", ".venv", ".tox", ".mypy_cache", ".pytest_cache", ".ruff_cache",
			"build", "dist", "site-packages",
		},
		excludes: excludes,
	}
}

// ScanProject walks root and calls onFile with the absolute path of every
// source file. Returning ErrStop from onFile ends the walk cleanly; any other
// error aborts it and is returned.
func (c *Crawler) ScanProject(root string, onFile func(path string) error) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	gi := loadGitignore(root)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			slog.Debug("crawler: skipping entry", "file", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if c.skipDir(d.Name()) || c.excluded(rel) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 || !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		if c.excluded(rel) || (gi != nil && gi.MatchesPath(rel)) {
			return nil
		}

		return onFile(path)
	})
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

// SourceFiles returns every source file under root, in scan order.
func (c *Crawler) SourceFiles(root string) ([]string, error) {
	var files []string
	err := c.ScanProject(root, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

func (c *Crawler) skipDir(name string) bool {
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return strings.HasSuffix(name, ".egg-info")
}

func (c *Crawler) excluded(rel string) bool {
	for _, pattern := range c.excludes {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			slog.Debug("crawler: bad exclude pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
