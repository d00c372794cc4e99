package git

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// ChangedFile is a Python file that differs from HEAD in the worktree.
type ChangedFile struct {
	Path    string // absolute
	Deleted bool
}

// ChangedFiles lists the Python files of the repository at repoPath that are
// modified, added, deleted, or untracked relative to HEAD. Ignored files are
// not reported.
func ChangedFiles(ctx context.Context, repoPath string) ([]ChangedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}

	var changes []ChangedFile
	for rel, st := range status {
		if !strings.HasSuffix(rel, ".py") {
			continue
		}
		if st.Worktree == gogit.Unmodified && st.Staging == gogit.Unmodified {
			continue
		}
		changes = append(changes, ChangedFile{
			Path:    filepath.Join(wt.Filesystem.Root(), filepath.FromSlash(rel)),
			Deleted: st.Worktree == gogit.Deleted || st.Staging == gogit.Deleted,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
