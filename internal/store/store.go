// Package store wires a repository backend, the tracked file, the version
// tree and the mutation protocol into one handle, and tracks which version
// the tracked file currently materializes.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sbvc/internal/cache"
	"sbvc/internal/config"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
	"sbvc/internal/repository/badgerstore"
	"sbvc/internal/repository/flatfile"
	"sbvc/internal/repository/sqlite"
	"sbvc/internal/tracked"
	"sbvc/internal/version"
)

type Store struct {
	repo    repository.Repository
	file    tracked.File
	tree    *version.Tree
	mutator *version.Mutator
	content *cache.Content
	current *version.Record
	logger  *zap.Logger
}

// Open connects the configured backend, ensures schema and root exist,
// loads the tree and resolves the current version.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	repo, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	st, err := load(ctx, repo, tracked.NewLocalFile(cfg.Tracked.Path), logger)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return st, nil
}

// OpenWith builds a store on an already constructed repository and tracked
// file. Tests and the watcher use this to supply their own handles.
func OpenWith(ctx context.Context, repo repository.Repository, file tracked.File, logger *zap.Logger) (*Store, error) {
	return load(ctx, repo, file, logger)
}

func openBackend(cfg *config.Config) (repository.Repository, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.Open(cfg.Store.Path)
	case config.BackendBadger:
		return badgerstore.Open(cfg.Store.Path)
	case config.BackendFlat:
		return flatfile.Open(cfg.Store.Path, cfg.Tracked.Path)
	default:
		return nil, vcerrors.Storage("opening backend", nil)
	}
}

func load(ctx context.Context, repo repository.Repository, file tracked.File, logger *zap.Logger) (*Store, error) {
	if err := repo.CreateSchema(ctx); err != nil {
		return nil, err
	}
	if _, err := repo.InsertRoot(ctx, version.RootName, time.Now()); err != nil {
		return nil, err
	}

	rows, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	tree, err := version.Build(rows)
	if err != nil {
		return nil, err
	}

	content, err := cache.New(0)
	if err != nil {
		return nil, err
	}

	st := &Store{
		repo:    repo,
		file:    file,
		tree:    tree,
		mutator: version.NewMutator(repo, file, logger),
		content: content,
		current: tree.Root(),
		logger:  logger,
	}

	if tracker, ok := repo.(repository.CurrentTracker); ok {
		if r, found := tree.Find(tracker.CurrentID()); found {
			st.current = r
		}
	}

	return st, nil
}

func (s *Store) Tree() *version.Tree { return s.tree }

func (s *Store) Root() *version.Record { return s.tree.Root() }

// Current returns the version the tracked file currently materializes.
func (s *Store) Current() *version.Record { return s.current }

func (s *Store) TrackedPath() string { return s.file.Path() }

// ReadTracked returns the tracked file's current on-disk bytes.
func (s *Store) ReadTracked() ([]byte, error) {
	return s.file.ReadAll()
}

// Find returns the record with the given id or a version-not-found error.
func (s *Store) Find(id uint32) (*version.Record, error) {
	r, ok := s.tree.Find(id)
	if !ok {
		return nil, vcerrors.VersionNotFound(id)
	}
	return r, nil
}

// Content returns a record's reconstructed bytes through the LRU cache.
func (s *Store) Content(r *version.Record) []byte {
	return s.content.Get(r)
}

// Commit snapshots the tracked file as a child of the current version and
// advances current to the new record.
func (s *Store) Commit(ctx context.Context) (*version.Record, error) {
	child, err := s.mutator.Commit(ctx, s.current)
	if err != nil {
		return nil, err
	}
	s.setCurrent(ctx, child)
	return child, nil
}

// CommitAt commits onto an explicit parent version instead of current.
func (s *Store) CommitAt(ctx context.Context, id uint32) (*version.Record, error) {
	parent, err := s.Find(id)
	if err != nil {
		return nil, err
	}
	child, err := s.mutator.Commit(ctx, parent)
	if err != nil {
		return nil, err
	}
	s.setCurrent(ctx, child)
	return child, nil
}

func (s *Store) Rename(ctx context.Context, id uint32, name string) error {
	r, err := s.Find(id)
	if err != nil {
		return err
	}
	return s.mutator.Rename(ctx, r, name)
}

// Delete removes a version and its subtree. If current was inside the
// deleted subtree it falls back to the deleted node's parent.
func (s *Store) Delete(ctx context.Context, id uint32) error {
	r, err := s.Find(id)
	if err != nil {
		return err
	}

	inSubtree := false
	walkDown(r, func(n *version.Record) {
		s.content.Invalidate(n.ID())
		if n.ID() == s.current.ID() {
			inSubtree = true
		}
	})

	parent, _ := r.Parent()
	if err := s.mutator.Delete(ctx, r); err != nil {
		return err
	}
	if inSubtree && parent != nil {
		s.setCurrent(ctx, parent)
	}
	return nil
}

// Checkout materializes the version with the given id into the tracked file
// and makes it current.
func (s *Store) Checkout(ctx context.Context, id uint32) (*version.Record, error) {
	r, err := s.mutator.Checkout(s.tree, id, true)
	if err != nil {
		return nil, err
	}
	s.setCurrent(ctx, r)
	return r, nil
}

// Rollback writes the version's content back into the tracked file.
func (s *Store) Rollback(ctx context.Context, id uint32) error {
	r, err := s.Find(id)
	if err != nil {
		return err
	}
	if err := s.mutator.Rollback(r); err != nil {
		return err
	}
	s.setCurrent(ctx, r)
	return nil
}

func (s *Store) setCurrent(ctx context.Context, r *version.Record) {
	s.current = r
	if tracker, ok := s.repo.(repository.CurrentTracker); ok {
		if err := tracker.SetCurrentID(ctx, r.ID()); err != nil {
			s.logger.Warn("persisting current version", zap.Uint32("id", r.ID()), zap.Error(err))
		}
	}
}

func (s *Store) Close() error {
	return s.repo.Close()
}

func walkDown(r *version.Record, fn func(*version.Record)) {
	fn(r)
	for _, child := range r.Children() {
		walkDown(child, fn)
	}
}
