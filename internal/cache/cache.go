// Package cache provides an LRU content cache layered over the version
// tree. Record.Content deliberately recomputes from the root on every call;
// callers with repeated access (the CLI's show/log path, the watcher's
// change check) go through this cache instead.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"sbvc/internal/version"
)

const defaultSize = 64

// Content caches reconstructed version content keyed by version id. Entries
// must be invalidated when the version they describe leaves the tree.
type Content struct {
	entries *lru.Cache[uint32, []byte]
}

func New(size int) (*Content, error) {
	if size <= 0 {
		size = defaultSize
	}
	entries, err := lru.New[uint32, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Content{entries: entries}, nil
}

// Get returns the record's content, reconstructing and caching it on a miss.
func (c *Content) Get(r *version.Record) []byte {
	if data, ok := c.entries.Get(r.ID()); ok {
		return data
	}
	data := r.Content()
	c.entries.Add(r.ID(), data)
	return data
}

// Invalidate drops the entry for one version id.
func (c *Content) Invalidate(id uint32) {
	c.entries.Remove(id)
}

// Purge drops every cached entry.
func (c *Content) Purge() {
	c.entries.Purge()
}
