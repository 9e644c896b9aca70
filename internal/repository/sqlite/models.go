// internal/repository/sqlite/models.go
package sqlite

import (
	"time"

	"github.com/uptrace/bun"
)

// VersionModel maps the versions table. ParentID is NULL for the root.
type VersionModel struct {
	bun.BaseModel `bun:"table:versions,alias:v"`

	ID        uint32    `bun:"id,pk,autoincrement"`
	ParentID  *uint32   `bun:"parent_id"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// DeletionModel maps one half-open byte range of a version's delta.
type DeletionModel struct {
	bun.BaseModel `bun:"table:deletions,alias:d"`

	VersionID uint32 `bun:"version_id,pk"`
	Start     int64  `bun:"start,pk"`
	End       int64  `bun:"end,notnull"`
}

// InsertionModel maps one insertion payload of a version's delta.
type InsertionModel struct {
	bun.BaseModel `bun:"table:insertions,alias:i"`

	VersionID uint32 `bun:"version_id,pk"`
	Start     int64  `bun:"start,pk"`
	Data      []byte `bun:"data,notnull"`
}
