// internal/version/tree.go
package version

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

// Tree is a rooted version tree rebuilt from repository rows. The root is
// created exactly once, at tree construction, and is never deleted.
type Tree struct {
	root *Record
}

// Build links repository rows into a tree. A row is the root when its
// ParentID is nil; exactly one such row must exist, and every other row's
// parent must be present.
func Build(rows []repository.Row) (*Tree, error) {
	records := make(map[uint32]*Record, len(rows))
	var root *Record

	for _, row := range rows {
		r := newRecord(row.ID, nil, row.Name, row.CreatedAt, rowScript(row))
		records[row.ID] = r
	}

	for _, row := range rows {
		r := records[row.ID]

		if row.ParentID == nil {
			if root != nil {
				return nil, vcerrors.Malformed("parent_id",
					fmt.Errorf("two roots: versions %d and %d", root.id, r.id))
			}
			root = r
			continue
		}

		parent, ok := records[*row.ParentID]
		if !ok {
			return nil, vcerrors.Malformed("parent_id",
				fmt.Errorf("version %d references missing parent %d", r.id, *row.ParentID))
		}

		// Each pair locks its own parent and child, so links for distinct
		// pairs can be made concurrently.
		g := new(errgroup.Group)
		g.Go(func() error {
			parent.attachChild(r)
			return nil
		})
		g.Go(func() error {
			r.setParent(parent)
			return nil
		})
		g.Wait()
	}

	if root == nil {
		if len(rows) == 0 {
			return nil, vcerrors.Malformed("versions", fmt.Errorf("store holds no records"))
		}
		return nil, vcerrors.Malformed("parent_id", fmt.Errorf("no root among %d versions", len(rows)))
	}

	return &Tree{root: root}, nil
}

// Root returns the root record.
func (t *Tree) Root() *Record {
	return t.root
}

// Find walks the tree for the record with the given id.
func (t *Tree) Find(id uint32) (*Record, bool) {
	return find(t.root, id)
}

func find(r *Record, id uint32) (*Record, bool) {
	if r.ID() == id {
		return r, true
	}
	for _, child := range r.Children() {
		if hit, ok := find(child, id); ok {
			return hit, true
		}
	}
	return nil, false
}

// Size counts the records currently in the tree.
func (t *Tree) Size() int {
	n := 0
	t.Walk(func(*Record) bool {
		n++
		return true
	})
	return n
}

// Walk visits records depth-first from the root. Returning false from fn
// stops the walk.
func (t *Tree) Walk(fn func(*Record) bool) {
	walk(t.root, fn)
}

func walk(r *Record, fn func(*Record) bool) bool {
	if !fn(r) {
		return false
	}
	for _, child := range r.Children() {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

func rowScript(row repository.Row) diff.Script {
	return diff.Script{
		Deletions:  row.Deletions,
		Insertions: row.Insertions,
	}
}
