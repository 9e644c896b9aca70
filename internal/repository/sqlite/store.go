// internal/repository/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/sync/errgroup"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

// Store implements repository.Repository on a SQLite database file via bun.
type Store struct {
	db *bun.DB
}

var _ repository.Repository = (*Store)(nil)

// Open connects to the database file at path, creating it if missing.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, vcerrors.Storage("opening sqlite database", err)
	}
	return &Store{db: bun.NewDB(sqlDB, sqlitedialect.New())}, nil
}

// New wraps an existing *sql.DB with bun's query builder.
func New(sqlDB *sql.DB) *Store {
	return &Store{db: bun.NewDB(sqlDB, sqlitedialect.New())}
}

func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*VersionModel)(nil)).
		IfNotExists().
		ForeignKey(`("parent_id") REFERENCES "versions" ("id")`).
		Exec(ctx); err != nil {
		return vcerrors.Storage("creating versions table", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*DeletionModel)(nil)).
		IfNotExists().
		ForeignKey(`("version_id") REFERENCES "versions" ("id")`).
		Exec(ctx); err != nil {
		return vcerrors.Storage("creating deletions table", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*InsertionModel)(nil)).
		IfNotExists().
		ForeignKey(`("version_id") REFERENCES "versions" ("id")`).
		Exec(ctx); err != nil {
		return vcerrors.Storage("creating insertions table", err)
	}

	return nil
}

func (s *Store) InsertRoot(ctx context.Context, name string, createdAt time.Time) (uint32, error) {
	count, err := s.db.NewSelect().Model((*VersionModel)(nil)).Count(ctx)
	if err != nil {
		return 0, vcerrors.Storage("counting versions", err)
	}

	if count > 0 {
		var root VersionModel
		err := s.db.NewSelect().
			Model(&root).
			Where("parent_id IS NULL").
			Scan(ctx)
		if err != nil {
			return 0, vcerrors.Storage("finding root version", err)
		}
		return root.ID, nil
	}

	root := &VersionModel{Name: name, CreatedAt: createdAt}
	if _, err := s.db.NewInsert().Model(root).Exec(ctx); err != nil {
		return 0, vcerrors.Storage("inserting root version", err)
	}
	return root.ID, nil
}

// LoadAll fetches every version row, then loads each record's deletions and
// insertions through two concurrent sub-queries per record.
func (s *Store) LoadAll(ctx context.Context) ([]repository.Row, error) {
	var versions []VersionModel
	if err := s.db.NewSelect().
		Model(&versions).
		Order("id ASC").
		Scan(ctx); err != nil {
		return nil, vcerrors.Storage("loading versions", err)
	}

	rows := make([]repository.Row, len(versions))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range versions {
		i, v := i, v
		g.Go(func() error {
			var dels []diff.Deletion
			var inss []diff.Insertion

			sub, _ := errgroup.WithContext(ctx)
			sub.Go(func() error {
				var err error
				dels, err = s.loadDeletions(ctx, v.ID)
				return err
			})
			sub.Go(func() error {
				var err error
				inss, err = s.loadInsertions(ctx, v.ID)
				return err
			})
			if err := sub.Wait(); err != nil {
				return err
			}

			rows[i] = repository.Row{
				ID:         v.ID,
				ParentID:   v.ParentID,
				Name:       v.Name,
				CreatedAt:  v.CreatedAt,
				Deletions:  dels,
				Insertions: inss,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, vcerrors.Storage("loading delta rows", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *Store) loadDeletions(ctx context.Context, id uint32) ([]diff.Deletion, error) {
	var models []DeletionModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("version_id = ?", id).
		Order("start ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	dels := make([]diff.Deletion, 0, len(models))
	for _, m := range models {
		dels = append(dels, diff.Deletion{Start: int(m.Start), End: int(m.End)})
	}
	return dels, nil
}

func (s *Store) loadInsertions(ctx context.Context, id uint32) ([]diff.Insertion, error) {
	var models []InsertionModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("version_id = ?", id).
		Order("start ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	inss := make([]diff.Insertion, 0, len(models))
	for _, m := range models {
		inss = append(inss, diff.Insertion{Start: int(m.Start), Data: m.Data})
	}
	return inss, nil
}

func (s *Store) InsertVersion(ctx context.Context, parentID uint32, name string, createdAt time.Time) (uint32, error) {
	m := &VersionModel{
		ParentID:  &parentID,
		Name:      name,
		CreatedAt: createdAt,
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return 0, vcerrors.Storage("inserting version", err)
	}
	return m.ID, nil
}

func (s *Store) InsertDeletions(ctx context.Context, id uint32, dels []diff.Deletion) error {
	if len(dels) == 0 {
		return nil
	}

	models := make([]DeletionModel, 0, len(dels))
	for _, d := range dels {
		models = append(models, DeletionModel{
			VersionID: id,
			Start:     int64(d.Start),
			End:       int64(d.End),
		})
	}
	if _, err := s.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return vcerrors.Storage("inserting deletions", err)
	}
	return nil
}

func (s *Store) InsertInsertions(ctx context.Context, id uint32, inss []diff.Insertion) error {
	if len(inss) == 0 {
		return nil
	}

	models := make([]InsertionModel, 0, len(inss))
	for _, ins := range inss {
		models = append(models, InsertionModel{
			VersionID: id,
			Start:     int64(ins.Start),
			Data:      ins.Data,
		})
	}
	if _, err := s.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return vcerrors.Storage("inserting insertions", err)
	}
	return nil
}

func (s *Store) DeleteDeletions(ctx context.Context, id uint32) error {
	if _, err := s.db.NewDelete().
		Model((*DeletionModel)(nil)).
		Where("version_id = ?", id).
		Exec(ctx); err != nil {
		return vcerrors.Storage("deleting deletions", err)
	}
	return nil
}

func (s *Store) DeleteInsertions(ctx context.Context, id uint32) error {
	if _, err := s.db.NewDelete().
		Model((*InsertionModel)(nil)).
		Where("version_id = ?", id).
		Exec(ctx); err != nil {
		return vcerrors.Storage("deleting insertions", err)
	}
	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, id uint32) error {
	if _, err := s.db.NewDelete().
		Model((*VersionModel)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return vcerrors.Storage("deleting version", err)
	}
	return nil
}

func (s *Store) UpdateName(ctx context.Context, id uint32, name string) error {
	res, err := s.db.NewUpdate().
		Model((*VersionModel)(nil)).
		Set("name = ?", name).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return vcerrors.Storage("updating version name", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return vcerrors.VersionNotFound(id)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
