package version

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

// memRepo is an in-memory Repository with per-call failure switches.
type memRepo struct {
	mu     sync.Mutex
	rows   map[uint32]*repository.Row
	nextID uint32

	failInsertVersion    bool
	failInsertDeletions  bool
	failInsertInsertions bool
	failUpdateName       bool
	failDeleteVersion    uint32 // fail when deleting this id (0 = never)
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uint32]*repository.Row), nextID: 1}
}

func (m *memRepo) CreateSchema(ctx context.Context) error { return nil }

func (m *memRepo) InsertRoot(ctx context.Context, name string, createdAt time.Time) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, row := range m.rows {
		if row.ParentID == nil {
			return id, nil
		}
	}

	id := m.nextID
	m.nextID++
	m.rows[id] = &repository.Row{ID: id, Name: name, CreatedAt: createdAt}
	return id, nil
}

func (m *memRepo) LoadAll(ctx context.Context) ([]repository.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]repository.Row, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m *memRepo) InsertVersion(ctx context.Context, parentID uint32, name string, createdAt time.Time) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsertVersion {
		return 0, vcerrors.Storage("inserting version", fmt.Errorf("injected failure"))
	}
	if _, ok := m.rows[parentID]; !ok {
		return 0, vcerrors.VersionNotFound(parentID)
	}

	id := m.nextID
	m.nextID++
	pid := parentID
	m.rows[id] = &repository.Row{ID: id, ParentID: &pid, Name: name, CreatedAt: createdAt}
	return id, nil
}

func (m *memRepo) InsertDeletions(ctx context.Context, id uint32, dels []diff.Deletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsertDeletions {
		return vcerrors.Storage("inserting deletions", fmt.Errorf("injected failure"))
	}
	if row, ok := m.rows[id]; ok {
		row.Deletions = append(row.Deletions, dels...)
	}
	return nil
}

func (m *memRepo) InsertInsertions(ctx context.Context, id uint32, inss []diff.Insertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsertInsertions {
		return vcerrors.Storage("inserting insertions", fmt.Errorf("injected failure"))
	}
	if row, ok := m.rows[id]; ok {
		row.Insertions = append(row.Insertions, inss...)
	}
	return nil
}

func (m *memRepo) DeleteDeletions(ctx context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.Deletions = nil
	}
	return nil
}

func (m *memRepo) DeleteInsertions(ctx context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.Insertions = nil
	}
	return nil
}

func (m *memRepo) DeleteVersion(ctx context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDeleteVersion != 0 && m.failDeleteVersion == id {
		return vcerrors.Storage("deleting version", fmt.Errorf("injected failure"))
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) UpdateName(ctx context.Context, id uint32, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdateName {
		return vcerrors.Storage("updating version name", fmt.Errorf("injected failure"))
	}
	row, ok := m.rows[id]
	if !ok {
		return vcerrors.VersionNotFound(id)
	}
	row.Name = name
	return nil
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) has(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memFile is an in-memory tracked file.
type memFile struct {
	mu       sync.Mutex
	data     []byte
	failRead bool
}

func (f *memFile) Path() string { return "mem://tracked" }

func (f *memFile) ReadAll() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return nil, fmt.Errorf("injected read failure")
	}
	return append([]byte(nil), f.data...), nil
}

func (f *memFile) WriteAll(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append([]byte(nil), data...)
	return nil
}
