// Package repository defines the persistence contract for version records.
// The version tree core never depends on a concrete backend; anything that
// can satisfy this interface (relational, key-value, flat file) can carry a
// tree.
package repository

import (
	"context"
	"time"

	"sbvc/internal/diff"
)

// Row is one persisted version record as returned by LoadAll. ParentID is
// nil for the root (backends using a root sentinel resolve it to nil before
// returning rows).
type Row struct {
	ID         uint32
	ParentID   *uint32
	Name       string
	CreatedAt  time.Time
	Deletions  []diff.Deletion
	Insertions []diff.Insertion
}

// Repository is the durable store for version records and their delta rows.
//
// Multi-call sequences (a version row plus its delta rows) are not wrapped
// in a storage-level transaction; each call is independently durable. Callers
// own the ordering requirements: delta rows of a version are removed before
// its version row, and descendants before ancestors.
type Repository interface {
	// CreateSchema is idempotent; it ensures storage for version records
	// and their delta rows exists.
	CreateSchema(ctx context.Context) error

	// InsertRoot inserts the root record if and only if no records exist
	// yet, and returns the root id either way.
	InsertRoot(ctx context.Context, name string, createdAt time.Time) (uint32, error)

	// LoadAll returns every persisted record. Used once at tree construction.
	LoadAll(ctx context.Context) ([]Row, error)

	// InsertVersion persists a new record and returns its repository-allocated id.
	InsertVersion(ctx context.Context, parentID uint32, name string, createdAt time.Time) (uint32, error)

	InsertDeletions(ctx context.Context, id uint32, dels []diff.Deletion) error
	InsertInsertions(ctx context.Context, id uint32, inss []diff.Insertion) error

	DeleteDeletions(ctx context.Context, id uint32) error
	DeleteInsertions(ctx context.Context, id uint32) error
	DeleteVersion(ctx context.Context, id uint32) error

	UpdateName(ctx context.Context, id uint32, name string) error

	Close() error
}

// CurrentTracker is implemented by backends that persist which version the
// tracked file currently materializes (the flat format carries it in its
// header; other backends leave "current" to the caller).
type CurrentTracker interface {
	CurrentID() uint32
	SetCurrentID(ctx context.Context, id uint32) error
}
