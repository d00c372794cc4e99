package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	ErrNoRevision      = errors.New("no branch, tag or commit given")
	ErrRevisionUnknown = errors.New("revision not found")
)

// Revision selects what to check out. When several are set, branch wins
// over tag, and tag over commit.
type Revision struct {
	Branch string
	Tag    string
	Commit string
}

func (r Revision) IsZero() bool {
	return r.Branch == "" && r.Tag == "" && r.Commit == ""
}

func (r Revision) String() string {
	switch {
	case r.Branch != "":
		return "branch " + r.Branch
	case r.Tag != "":
		return "tag " + r.Tag
	case r.Commit != "":
		return "commit " + r.Commit
	}
	return "no revision"
}

// Fetcher checks out revisions of a local repository before analysis.
type Fetcher struct{}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch checks out rev in the repository at repoPath. It reports false with
// the reason when nothing was checked out; callers treat that as a warning.
func (f *Fetcher) Fetch(ctx context.Context, repoPath string, rev Revision) (bool, error) {
	if rev.IsZero() {
		return false, ErrNoRevision
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	repo, err := gogit.PlainOpen(abs)
	if err != nil {
		return false, fmt.Errorf("failed to open repository %s: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	opts, err := checkoutOptions(repo, rev)
	if err != nil {
		return false, err
	}
	if err := wt.Checkout(opts); err != nil {
		return false, fmt.Errorf("failed to check out %s: %w", rev, err)
	}

	slog.Info("checked out revision", "repo", abs, "revision", rev.String())
	return true, nil
}

func checkoutOptions(repo *gogit.Repository, rev Revision) (*gogit.CheckoutOptions, error) {
	// 1. Local branches attach HEAD
	if rev.Branch != "" {
		name := plumbing.NewBranchReferenceName(rev.Branch)
		if _, err := repo.Reference(name, true); err == nil {
			return &gogit.CheckoutOptions{Branch: name}, nil
		}
		// remote-tracking only: detached checkout of its tip
		return resolveHash(repo, "refs/remotes/origin/"+rev.Branch, rev)
	}

	// 2. Tags and commits detach HEAD
	if rev.Tag != "" {
		return resolveHash(repo, "refs/tags/"+rev.Tag, rev)
	}
	return resolveHash(repo, rev.Commit, rev)
}

func resolveHash(repo *gogit.Repository, spec string, rev Revision) (*gogit.CheckoutOptions, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(spec))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRevisionUnknown, rev, err)
	}
	return &gogit.CheckoutOptions{Hash: *hash}, nil
}
