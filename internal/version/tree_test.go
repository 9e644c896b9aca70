package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

func uptr(v uint32) *uint32 { return &v }

func TestBuildLinksParentsAndChildren(t *testing.T) {
	rows := []repository.Row{
		{ID: 1, Name: "init", CreatedAt: time.Unix(1000, 0)},
		{ID: 2, ParentID: uptr(1), Name: "a", CreatedAt: time.Unix(2000, 0),
			Insertions: []diff.Insertion{{Start: 0, Data: []byte("hello")}}},
		{ID: 3, ParentID: uptr(2), Name: "b", CreatedAt: time.Unix(3000, 0),
			Insertions: []diff.Insertion{{Start: 5, Data: []byte(" world")}}},
		{ID: 4, ParentID: uptr(1), Name: "sibling", CreatedAt: time.Unix(4000, 0)},
	}

	tree, err := Build(rows)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), tree.Root().ID())
	assert.Equal(t, 4, tree.Size())
	require.Len(t, tree.Root().Children(), 2)

	b, ok := tree.Find(3)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), b.Content())

	parent, ok := b.Parent()
	require.True(t, ok)
	assert.Equal(t, uint32(2), parent.ID())

	_, ok = tree.Find(99)
	assert.False(t, ok)
}

func TestBuildRejectsMissingParent(t *testing.T) {
	rows := []repository.Row{
		{ID: 1, Name: "init"},
		{ID: 2, ParentID: uptr(7), Name: "orphan"},
	}

	_, err := Build(rows)
	require.Error(t, err)

	var vcErr *vcerrors.Error
	require.ErrorAs(t, err, &vcErr)
	assert.Equal(t, vcerrors.ErrorTypeMalformed, vcErr.Type)
}

func TestBuildRejectsTwoRoots(t *testing.T) {
	rows := []repository.Row{
		{ID: 1, Name: "init"},
		{ID: 2, Name: "also a root"},
	}

	_, err := Build(rows)
	require.Error(t, err)
}

func TestBuildRejectsEmptyStore(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	rows := []repository.Row{
		{ID: 1, Name: "init"},
		{ID: 2, ParentID: uptr(1)},
		{ID: 3, ParentID: uptr(2)},
		{ID: 4, ParentID: uptr(1)},
	}
	tree, err := Build(rows)
	require.NoError(t, err)

	var order []uint32
	tree.Walk(func(r *Record) bool {
		order = append(order, r.ID())
		return true
	})
	assert.Equal(t, []uint32{1, 2, 3, 4}, order)

	// Early stop.
	order = nil
	tree.Walk(func(r *Record) bool {
		order = append(order, r.ID())
		return r.ID() != 2
	})
	assert.Equal(t, []uint32{1, 2}, order)
}
