// Package version implements the version tree: records linked parent to
// child, byte-level deltas against each record's parent, and the mutation
// protocol that keeps the in-memory tree and the repository in step.
package version

import (
	"sync"
	"time"

	"sbvc/internal/diff"
)

const (
	// RootName labels the root record created at tree construction.
	RootName = "init"
	// DefaultName labels every committed version until it is renamed.
	DefaultName = "unnamed"
)

// Record is one snapshot node in the version tree. The children slice holds
// the owning references; the parent pointer is a non-owning back-reference,
// so upward traversal never creates an ownership cycle.
//
// Every record carries its own RWMutex. Reads (accessors, content
// reconstruction, child enumeration) take the shared side; mutations (rename,
// child attach/detach) take the exclusive side. No call chain ever requests
// an exclusive lock while holding another record's lock, so concurrent
// reconstructions from different nodes cannot deadlock.
type Record struct {
	mu sync.RWMutex

	id        uint32
	parent    *Record // nil for the root
	name      string
	createdAt time.Time
	delta     diff.Script
	children  []*Record
}

func newRecord(id uint32, parent *Record, name string, createdAt time.Time, delta diff.Script) *Record {
	return &Record{
		id:        id,
		parent:    parent,
		name:      name,
		createdAt: createdAt,
		delta:     delta,
	}
}

// ID returns the record's tree-unique id. Ids are allocated by the
// repository, monotonically, and never reused.
func (r *Record) ID() uint32 {
	return r.id
}

func (r *Record) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// CreatedAt returns the creation timestamp, fixed for the record's lifetime.
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// Parent returns the parent record. The second return is false for the root.
func (r *Record) Parent() (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parent, r.parent != nil
}

// Children returns a snapshot of the record's children.
func (r *Record) Children() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Record(nil), r.children...)
}

// DeletionCount returns how many deletion ranges this version's delta holds.
func (r *Record) DeletionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.delta.Deletions)
}

// InsertionCount returns how many insertion payloads this version's delta holds.
func (r *Record) InsertionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.delta.Insertions)
}

// Content reconstructs the tracked file's bytes at this version by applying
// the delta chain from the root down. Nothing is cached: every call
// recomputes from the root, so callers needing repeated access should cache
// the result themselves.
//
// The receiver's shared lock is held across the upward recursion; since the
// whole chain takes only shared locks, overlapping reconstructions never
// block each other.
func (r *Record) Content() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.parent == nil {
		return []byte{}
	}
	return diff.Patch(r.parent.Content(), r.delta)
}

func (r *Record) setName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

func (r *Record) attachChild(child *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, child)
}

func (r *Record) detachChild(child *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.children {
		if c.id == child.id {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return
		}
	}
}

func (r *Record) setParent(parent *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = parent
}
