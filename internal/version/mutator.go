// internal/version/mutator.go
package version

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
	"sbvc/internal/tracked"
)

// Clock supplies creation timestamps. Swapped out in tests.
type Clock func() time.Time

// Mutator runs the tree mutation protocol. The repository and tracked-file
// handles are held here and passed into every operation; records themselves
// never reference the store.
type Mutator struct {
	repo   repository.Repository
	file   tracked.File
	engine *diff.Engine
	clock  Clock
	logger *zap.Logger
}

func NewMutator(repo repository.Repository, file tracked.File, logger *zap.Logger) *Mutator {
	return &Mutator{
		repo:   repo,
		file:   file,
		engine: diff.NewEngine(0),
		clock:  time.Now,
		logger: logger,
	}
}

// WithClock replaces the timestamp source.
func (m *Mutator) WithClock(clock Clock) *Mutator {
	m.clock = clock
	return m
}

// Commit snapshots the tracked file's current bytes as a new child of node.
//
// The version-row insert and the tracked-file read run concurrently; once
// both complete, the delta's deletion and insertion rows are inserted
// concurrently with each other. The in-memory attach happens only after
// every persisted step succeeded, and a failure after the version row was
// allocated tears the partial rows back down, so a failed commit leaves
// neither a detached record nor a dangling persisted row.
func (m *Mutator) Commit(ctx context.Context, node *Record) (*Record, error) {
	old := node.Content()
	createdAt := m.clock()

	var (
		id      uint32
		newData []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		allocated, err := m.repo.InsertVersion(gctx, node.ID(), DefaultName, createdAt)
		if err != nil {
			return err
		}
		id = allocated
		return nil
	})
	g.Go(func() error {
		data, err := m.file.ReadAll()
		if err != nil {
			return vcerrors.IO("reading tracked file", err)
		}
		newData = data
		return nil
	})
	if err := g.Wait(); err != nil {
		if id != 0 {
			m.discard(ctx, id)
		}
		return nil, err
	}

	script := m.engine.Diff(old, newData)

	sub, sctx := errgroup.WithContext(ctx)
	sub.Go(func() error {
		return m.repo.InsertDeletions(sctx, id, script.Deletions)
	})
	sub.Go(func() error {
		return m.repo.InsertInsertions(sctx, id, script.Insertions)
	})
	if err := sub.Wait(); err != nil {
		m.discard(ctx, id)
		return nil, err
	}

	child := newRecord(id, node, DefaultName, createdAt, script)
	node.attachChild(child)

	m.logger.Info("committed version",
		zap.Uint32("id", id),
		zap.Uint32("parent_id", node.ID()),
		zap.Int("deletions", len(script.Deletions)),
		zap.Int("insertions", len(script.Insertions)))

	return child, nil
}

// discard removes the partially persisted rows of a failed commit. Best
// effort: a failure here is logged and the original error still surfaces.
func (m *Mutator) discard(ctx context.Context, id uint32) {
	if err := m.repo.DeleteInsertions(ctx, id); err != nil {
		m.logger.Warn("discarding partial insertions", zap.Uint32("id", id), zap.Error(err))
	}
	if err := m.repo.DeleteDeletions(ctx, id); err != nil {
		m.logger.Warn("discarding partial deletions", zap.Uint32("id", id), zap.Error(err))
	}
	if err := m.repo.DeleteVersion(ctx, id); err != nil {
		m.logger.Warn("discarding partial version row", zap.Uint32("id", id), zap.Error(err))
	}
}

// Rename persists the new name first and only then mutates the in-memory
// record, so a failed persistence call leaves the name untouched.
func (m *Mutator) Rename(ctx context.Context, node *Record, name string) error {
	if err := m.repo.UpdateName(ctx, node.ID(), name); err != nil {
		return err
	}
	node.setName(name)
	return nil
}

// Delete removes node and its whole subtree. Deleting the root is refused
// without touching any state.
//
// Two tasks run concurrently: one walks the subtree depth-first and removes
// persisted rows (children fully before their parent, so no persisted
// parent reference ever dangles), the other detaches node from its parent's
// children set. They touch disjoint records and are joined before return.
// Rows already removed when a later step fails stay removed; the caller
// reconciles by reloading the tree.
func (m *Mutator) Delete(ctx context.Context, node *Record) error {
	parent, ok := node.Parent()
	if !ok {
		return vcerrors.RootDeletion()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.deleteSubtree(gctx, node)
	})
	g.Go(func() error {
		parent.detachChild(node)
		return nil
	})
	return g.Wait()
}

func (m *Mutator) deleteSubtree(ctx context.Context, node *Record) error {
	for _, child := range node.Children() {
		if err := m.deleteSubtree(ctx, child); err != nil {
			return err
		}
	}

	if err := m.repo.DeleteDeletions(ctx, node.ID()); err != nil {
		return err
	}
	if err := m.repo.DeleteInsertions(ctx, node.ID()); err != nil {
		return err
	}
	if err := m.repo.DeleteVersion(ctx, node.ID()); err != nil {
		return err
	}

	m.logger.Debug("deleted version", zap.Uint32("id", node.ID()))
	return nil
}

// Checkout locates the version with the given id and, when apply is set,
// overwrites the tracked file with its reconstructed content.
func (m *Mutator) Checkout(tree *Tree, id uint32, apply bool) (*Record, error) {
	node, ok := tree.Find(id)
	if !ok {
		return nil, vcerrors.VersionNotFound(id)
	}
	if apply {
		if err := m.Rollback(node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Rollback overwrites the tracked file with node's reconstructed content.
func (m *Mutator) Rollback(node *Record) error {
	if err := m.file.WriteAll(node.Content()); err != nil {
		return vcerrors.IO("writing tracked file", err)
	}
	m.logger.Info("rolled back tracked file", zap.Uint32("id", node.ID()))
	return nil
}
