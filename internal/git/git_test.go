package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, w *gogit.Worktree, dir, content, msg string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte(content), 0o644))
	_, err := w.Add("app.py")
	require.NoError(t, err)
	hash, err := w.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func readApp(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	return string(data)
}

func TestFetcher_Fetch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)

	first := commitFile(t, w, dir, "def v1():\n    pass\n", "first")
	_, err = repo.CreateTag("v1", first, nil)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	mainBranch := head.Name().Short()

	require.NoError(t, w.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature"),
		Create: true,
	}))
	commitFile(t, w, dir, "def feature():\n    pass\n", "feature")
	require.NoError(t, w.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(mainBranch)}))
	second := commitFile(t, w, dir, "def v2():\n    pass\n", "second")

	f := NewFetcher()

	t.Run("branch", func(t *testing.T) {
		ok, err := f.Fetch(ctx, dir, Revision{Branch: "feature"})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, readApp(t, dir), "def feature")

		ref, err := repo.Head()
		require.NoError(t, err)
		assert.Equal(t, "feature", ref.Name().Short())
	})

	t.Run("tag", func(t *testing.T) {
		ok, err := f.Fetch(ctx, dir, Revision{Tag: "v1"})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, readApp(t, dir), "def v1")
	})

	t.Run("commit", func(t *testing.T) {
		ok, err := f.Fetch(ctx, dir, Revision{Commit: second.String()})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, readApp(t, dir), "def v2")
	})

	t.Run("branch wins over commit", func(t *testing.T) {
		ok, err := f.Fetch(ctx, dir, Revision{Branch: mainBranch, Commit: first.String()})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, readApp(t, dir), "def v2")
	})

	t.Run("failures", func(t *testing.T) {
		ok, err := f.Fetch(ctx, dir, Revision{})
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNoRevision)

		ok, err = f.Fetch(ctx, dir, Revision{Branch: "nope"})
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrRevisionUnknown)

		ok, err = f.Fetch(ctx, t.TempDir(), Revision{Branch: "feature"})
		assert.False(t, ok)
		assert.Error(t, err)
	})
}

func TestChangedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)
	commitFile(t, w, dir, "def v1():\n    pass\n", "first")

	changes, err := ChangedFiles(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, changes, "clean worktree")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("def v2():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored\n"), 0o644))

	changes, err = ChangedFiles(ctx, dir)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "app.py", filepath.Base(changes[0].Path))
	assert.Equal(t, "new.py", filepath.Base(changes[1].Path))
	assert.True(t, filepath.IsAbs(changes[0].Path))

	require.NoError(t, os.Remove(filepath.Join(dir, "app.py")))
	changes, err = ChangedFiles(ctx, dir)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.True(t, changes[0].Deleted)
	assert.False(t, changes[1].Deleted)

	_, err = ChangedFiles(ctx, t.TempDir())
	assert.Error(t, err)
}
