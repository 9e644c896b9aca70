// Package flatfile persists a version tree as a single binary store file.
//
// The format is a length-prefixed nested-cell encoding: a cell is the decimal
// ASCII byte length of its body, a newline, then the body; a list's body is
// the concatenation of its member cells. The top level is
//
//	[tracked_file_path, current_version_id, next_free_id, versions]
//
// and each version cell is [id, parent_id, [name, created_at_epoch_seconds],
// deletions, insertions]. Deletion cells hold [start, end] in decimal ASCII,
// insertion cells hold [start, raw_payload_bytes]. The root is the version
// whose parent_id equals its own id.
//
// The store rewrites the whole file on every mutating call. It is meant for
// a single exclusive caller; it takes no internal locks.
package flatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

type record struct {
	id         uint32
	parentID   uint32 // equal to id for the root
	name       string
	createdAt  time.Time
	deletions  []diff.Deletion
	insertions []diff.Insertion
}

// Store implements repository.Repository and repository.CurrentTracker on
// top of the flat store file.
type Store struct {
	path        string
	trackedPath string
	currentID   uint32
	nextID      uint32
	records     []*record
	index       map[uint32]*record
}

var (
	_ repository.Repository     = (*Store)(nil)
	_ repository.CurrentTracker = (*Store)(nil)
)

// Open reads the store file at path, creating an empty store bound to
// trackedPath if the file does not exist yet.
func Open(path, trackedPath string) (*Store, error) {
	s := &Store{
		path:        path,
		trackedPath: trackedPath,
		nextID:      1,
		index:       make(map[uint32]*record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, vcerrors.IO("reading store file", err)
	}

	if err := s.decode(data); err != nil {
		return nil, err
	}
	return s, nil
}

// TrackedPath returns the tracked file path recorded in the store header.
func (s *Store) TrackedPath() string {
	return s.trackedPath
}

func (s *Store) CurrentID() uint32 {
	return s.currentID
}

func (s *Store) SetCurrentID(ctx context.Context, id uint32) error {
	prev := s.currentID
	s.currentID = id
	if err := s.flush(); err != nil {
		s.currentID = prev
		return err
	}
	return nil
}

func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	return s.flush()
}

func (s *Store) InsertRoot(ctx context.Context, name string, createdAt time.Time) (uint32, error) {
	if len(s.records) > 0 {
		return s.rootID()
	}

	id := s.nextID
	s.nextID++
	root := &record{
		id:        id,
		parentID:  id, // root sentinel
		name:      name,
		createdAt: createdAt,
	}
	s.records = append(s.records, root)
	s.index[id] = root
	s.currentID = id

	if err := s.flush(); err != nil {
		s.removeRecord(id)
		s.nextID = id
		s.currentID = 0
		return 0, err
	}
	return id, nil
}

func (s *Store) LoadAll(ctx context.Context) ([]repository.Row, error) {
	rows := make([]repository.Row, 0, len(s.records))
	for _, r := range s.records {
		row := repository.Row{
			ID:         r.id,
			Name:       r.name,
			CreatedAt:  r.createdAt,
			Deletions:  append([]diff.Deletion(nil), r.deletions...),
			Insertions: append([]diff.Insertion(nil), r.insertions...),
		}
		if r.parentID != r.id {
			pid := r.parentID
			row.ParentID = &pid
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) InsertVersion(ctx context.Context, parentID uint32, name string, createdAt time.Time) (uint32, error) {
	if _, ok := s.index[parentID]; !ok {
		return 0, vcerrors.VersionNotFound(parentID)
	}

	id := s.nextID
	s.nextID++
	r := &record{
		id:        id,
		parentID:  parentID,
		name:      name,
		createdAt: createdAt,
	}
	s.records = append(s.records, r)
	s.index[id] = r

	if err := s.flush(); err != nil {
		s.removeRecord(id)
		s.nextID = id
		return 0, err
	}
	return id, nil
}

func (s *Store) InsertDeletions(ctx context.Context, id uint32, dels []diff.Deletion) error {
	r, ok := s.index[id]
	if !ok {
		return vcerrors.VersionNotFound(id)
	}
	prev := r.deletions
	r.deletions = append(r.deletions, dels...)
	if err := s.flush(); err != nil {
		r.deletions = prev
		return err
	}
	return nil
}

func (s *Store) InsertInsertions(ctx context.Context, id uint32, inss []diff.Insertion) error {
	r, ok := s.index[id]
	if !ok {
		return vcerrors.VersionNotFound(id)
	}
	prev := r.insertions
	r.insertions = append(r.insertions, inss...)
	if err := s.flush(); err != nil {
		r.insertions = prev
		return err
	}
	return nil
}

func (s *Store) DeleteDeletions(ctx context.Context, id uint32) error {
	if r, ok := s.index[id]; ok {
		r.deletions = nil
		return s.flush()
	}
	return nil
}

func (s *Store) DeleteInsertions(ctx context.Context, id uint32) error {
	if r, ok := s.index[id]; ok {
		r.insertions = nil
		return s.flush()
	}
	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, id uint32) error {
	if r, ok := s.index[id]; ok {
		if r.parentID == r.id {
			return vcerrors.RootDeletion()
		}
		s.removeRecord(id)
		return s.flush()
	}
	return nil
}

func (s *Store) UpdateName(ctx context.Context, id uint32, name string) error {
	r, ok := s.index[id]
	if !ok {
		return vcerrors.VersionNotFound(id)
	}
	prev := r.name
	r.name = name
	if err := s.flush(); err != nil {
		r.name = prev
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) rootID() (uint32, error) {
	for _, r := range s.records {
		if r.parentID == r.id {
			return r.id, nil
		}
	}
	return 0, vcerrors.Malformed("versions", fmt.Errorf("store holds %d records but no root", len(s.records)))
}

func (s *Store) removeRecord(id uint32) {
	delete(s.index, id)
	for i, r := range s.records {
		if r.id == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return
		}
	}
}

// flush rewrites the store file through a uniquely named temp file.
func (s *Store) flush() error {
	dir := filepath.Dir(s.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.path), uuid.New().String()))

	if err := os.WriteFile(tmp, s.encode(), 0o644); err != nil {
		return vcerrors.IO("writing store file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return vcerrors.IO("replacing store file", err)
	}
	return nil
}
