// internal/watch/watcher.go
package watch

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"sbvc/internal/store"
)

// DefaultDebounce batches editor write bursts into one commit.
const DefaultDebounce = 500 * time.Millisecond

// Watcher auto-commits the tracked file whenever its content changes on
// disk. It watches the file's directory (watching the file itself breaks on
// editors that replace via rename) and debounces write events.
type Watcher struct {
	store    *store.Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(st.TrackedPath())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		store:    st,
		watcher:  fsw,
		debounce: DefaultDebounce,
		logger:   logger,
	}, nil
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	base := filepath.Base(w.store.TrackedPath())

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.commitIfChanged(ctx)
		}
	}
}

// commitIfChanged skips the commit when the file still matches the current
// version, so a rollback or a no-op save does not grow the tree.
func (w *Watcher) commitIfChanged(ctx context.Context) {
	current := w.store.Current()

	data, err := w.store.ReadTracked()
	if err != nil {
		w.logger.Warn("reading tracked file", zap.Error(err))
		return
	}
	if bytes.Equal(data, w.store.Content(current)) {
		return
	}

	child, err := w.store.Commit(ctx)
	if err != nil {
		w.logger.Error("auto commit failed", zap.Error(err))
		return
	}
	w.logger.Info("auto committed",
		zap.Uint32("id", child.ID()),
		zap.Uint32("parent_id", current.ID()))
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
