package version

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	vcerrors "sbvc/internal/errors"
)

func setupTree(t *testing.T) (*memRepo, *memFile, *Tree, *Mutator) {
	t.Helper()

	repo := newMemRepo()
	file := &memFile{}

	_, err := repo.InsertRoot(context.Background(), RootName, time.Unix(1000, 0))
	require.NoError(t, err)

	rows, err := repo.LoadAll(context.Background())
	require.NoError(t, err)

	tree, err := Build(rows)
	require.NoError(t, err)

	mut := NewMutator(repo, file, zap.NewNop()).
		WithClock(func() time.Time { return time.Unix(2000, 0) })

	return repo, file, tree, mut
}

func TestCommitBasic(t *testing.T) {
	data := []byte("SOME DATA TO PUT INTO FILE")

	_, file, tree, mut := setupTree(t)
	require.NoError(t, file.WriteAll(data))

	child, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	assert.Equal(t, data, child.Content())
	assert.Equal(t, DefaultName, child.Name())
	assert.Equal(t, time.Unix(2000, 0), child.CreatedAt())

	parent, ok := child.Parent()
	require.True(t, ok)
	assert.Equal(t, tree.Root().ID(), parent.ID())
	require.Len(t, tree.Root().Children(), 1)
}

func TestCommitChained(t *testing.T) {
	first := []byte("SOME DATA TO PUT INTO FILE")
	second := []byte("SOME OTHER DATA TO REPLACE WHAT WAS BEFORE")

	repo, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll(first))
	a, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	require.NoError(t, file.WriteAll(second))
	b, err := mut.Commit(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, first, a.Content())
	assert.Equal(t, second, b.Content())

	// Rebuild from the repository and check both contents survive.
	rows, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	reloaded, err := Build(rows)
	require.NoError(t, err)

	ra, ok := reloaded.Find(a.ID())
	require.True(t, ok)
	rb, ok := reloaded.Find(b.ID())
	require.True(t, ok)
	assert.Equal(t, first, ra.Content())
	assert.Equal(t, second, rb.Content())
}

func TestCommitIdempotentReconstruction(t *testing.T) {
	_, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll([]byte("stable bytes")))
	child, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	assert.Equal(t, child.Content(), child.Content())
}

func TestCommitFileReadFailure(t *testing.T) {
	repo, file, tree, mut := setupTree(t)
	file.failRead = true

	_, err := mut.Commit(context.Background(), tree.Root())
	require.Error(t, err)

	// No child attached and no dangling persisted row beyond the root.
	assert.Empty(t, tree.Root().Children())
	assert.Equal(t, 1, repo.count())
}

func TestCommitDeltaInsertFailure(t *testing.T) {
	repo, file, tree, mut := setupTree(t)
	repo.failInsertInsertions = true

	require.NoError(t, file.WriteAll([]byte("doomed")))
	_, err := mut.Commit(context.Background(), tree.Root())
	require.Error(t, err)

	assert.Empty(t, tree.Root().Children())
	assert.Equal(t, 1, repo.count())
}

func TestCommitInsertVersionFailure(t *testing.T) {
	repo, file, tree, mut := setupTree(t)
	repo.failInsertVersion = true

	require.NoError(t, file.WriteAll([]byte("data")))

	_, err := mut.Commit(context.Background(), tree.Root())
	require.Error(t, err)
	assert.Empty(t, tree.Root().Children())
	assert.Equal(t, 1, repo.count())
}

func TestRenamePersistFirst(t *testing.T) {
	repo, _, tree, mut := setupTree(t)

	t.Run("success", func(t *testing.T) {
		require.NoError(t, mut.Rename(context.Background(), tree.Root(), "new name"))
		assert.Equal(t, "new name", tree.Root().Name())

		rows, err := repo.LoadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new name", rows[0].Name)
	})

	t.Run("failure leaves name unchanged", func(t *testing.T) {
		repo.failUpdateName = true
		err := mut.Rename(context.Background(), tree.Root(), "never applied")
		require.Error(t, err)
		assert.Equal(t, "new name", tree.Root().Name())
	})
}

func TestDeleteRootRefused(t *testing.T) {
	repo, _, tree, mut := setupTree(t)

	err := mut.Delete(context.Background(), tree.Root())
	require.Error(t, err)
	assert.ErrorIs(t, err, vcerrors.RootDeletion())
	assert.True(t, repo.has(tree.Root().ID()))
}

func TestDeleteCascades(t *testing.T) {
	repo, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll([]byte("A")))
	a, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	require.NoError(t, file.WriteAll([]byte("B")))
	b, err := mut.Commit(context.Background(), a)
	require.NoError(t, err)

	require.NoError(t, mut.Delete(context.Background(), a))

	assert.Empty(t, tree.Root().Children())
	assert.False(t, repo.has(a.ID()))
	assert.False(t, repo.has(b.ID()))

	// Rebuilding from storage shows the subtree gone.
	rows, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	reloaded, err := Build(rows)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Root().Children())
}

func TestDeletePartialFailureKeepsCompletedDeletes(t *testing.T) {
	repo, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll([]byte("A")))
	a, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	require.NoError(t, file.WriteAll([]byte("B")))
	b, err := mut.Commit(context.Background(), a)
	require.NoError(t, err)

	// The child's version row deletes fine; the parent's own row fails.
	repo.failDeleteVersion = a.ID()

	err = mut.Delete(context.Background(), a)
	require.Error(t, err)

	// Children were processed before the failing parent and stay deleted.
	assert.False(t, repo.has(b.ID()))
	assert.True(t, repo.has(a.ID()))
}

func TestCheckoutAndRollback(t *testing.T) {
	_, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll([]byte("X")))
	a, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	require.NoError(t, file.WriteAll([]byte("Y")))
	_, err = mut.Commit(context.Background(), a)
	require.NoError(t, err)

	t.Run("rollback writes content", func(t *testing.T) {
		require.NoError(t, mut.Rollback(a))
		data, err := file.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []byte("X"), data)
	})

	t.Run("checkout applies", func(t *testing.T) {
		require.NoError(t, file.WriteAll([]byte("scratch")))
		r, err := mut.Checkout(tree, a.ID(), true)
		require.NoError(t, err)
		assert.Equal(t, a.ID(), r.ID())

		data, err := file.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []byte("X"), data)
	})

	t.Run("checkout without apply leaves file alone", func(t *testing.T) {
		require.NoError(t, file.WriteAll([]byte("scratch")))
		_, err := mut.Checkout(tree, a.ID(), false)
		require.NoError(t, err)

		data, err := file.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []byte("scratch"), data)
	})

	t.Run("checkout unknown id", func(t *testing.T) {
		_, err := mut.Checkout(tree, 9999, true)
		require.Error(t, err)
	})
}

func TestConcurrentReconstruction(t *testing.T) {
	_, file, tree, mut := setupTree(t)

	require.NoError(t, file.WriteAll([]byte("generation one")))
	a, err := mut.Commit(context.Background(), tree.Root())
	require.NoError(t, err)

	require.NoError(t, file.WriteAll([]byte("generation two")))
	b, err := mut.Commit(context.Background(), a)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []byte("generation one"), a.Content())
			assert.Equal(t, []byte("generation two"), b.Content())
		}()
	}
	wg.Wait()
}

func TestRootProperties(t *testing.T) {
	_, _, tree, _ := setupTree(t)
	root := tree.Root()

	assert.Equal(t, RootName, root.Name())
	assert.Equal(t, []byte{}, root.Content())
	assert.Zero(t, root.DeletionCount())
	assert.Zero(t, root.InsertionCount())

	_, ok := root.Parent()
	assert.False(t, ok)
}
