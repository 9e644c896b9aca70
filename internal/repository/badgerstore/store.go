// internal/repository/badgerstore/store.go
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

const (
	versionPrefix   = "version:"
	deletionPrefix  = "deletions:"
	insertionPrefix = "insertions:"
	nextIDKey       = "meta:next_id"
)

// versionValue is the JSON value stored under a version key. ParentID is nil
// for the root.
type versionValue struct {
	ParentID  *uint32   `json:"parent_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type deletionValue struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type insertionValue struct {
	Start int    `json:"start"`
	Data  []byte `json:"data"`
}

// Store implements repository.Repository on BadgerDB. Version records and
// delta rows are JSON values under per-kind key prefixes; insertion payload
// blobs go through zstd when large enough to be worth it.
type Store struct {
	db  *badger.DB
	cmp *compressor
}

var _ repository.Repository = (*Store)(nil)

func New(db *badger.DB) (*Store, error) {
	cmp, err := newCompressor()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cmp: cmp}, nil
}

// Open opens (or creates) a badger store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, vcerrors.Storage("opening badger store", err)
	}
	return New(db)
}

func versionKey(id uint32) []byte   { return []byte(fmt.Sprintf("%s%010d", versionPrefix, id)) }
func deletionKey(id uint32) []byte  { return []byte(fmt.Sprintf("%s%010d", deletionPrefix, id)) }
func insertionKey(id uint32) []byte { return []byte(fmt.Sprintf("%s%010d", insertionPrefix, id)) }

// CreateSchema is a no-op for badger; key prefixes need no setup. It only
// seeds the id counter so the first allocation starts at 1.
func (s *Store) CreateSchema(ctx context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(nextIDKey))
		if err == badger.ErrKeyNotFound {
			return txn.Set([]byte(nextIDKey), encodeID(1))
		}
		return err
	})
	if err != nil {
		return vcerrors.Storage("creating schema", err)
	}
	return nil
}

func (s *Store) InsertRoot(ctx context.Context, name string, createdAt time.Time) (uint32, error) {
	var rootID uint32

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(versionPrefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Root already present: return its id.
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var v versionValue
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			if v.ParentID == nil {
				id, err := parseVersionKey(item.Key())
				if err != nil {
					return err
				}
				rootID = id
				return nil
			}
		}

		id, err := allocateID(txn)
		if err != nil {
			return err
		}
		data, err := json.Marshal(versionValue{Name: name, CreatedAt: createdAt})
		if err != nil {
			return err
		}
		rootID = id
		return txn.Set(versionKey(id), data)
	})
	if err != nil {
		return 0, vcerrors.Storage("inserting root version", err)
	}
	return rootID, nil
}

func (s *Store) InsertVersion(ctx context.Context, parentID uint32, name string, createdAt time.Time) (uint32, error) {
	var id uint32

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(versionKey(parentID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return vcerrors.VersionNotFound(parentID)
			}
			return err
		}

		allocated, err := allocateID(txn)
		if err != nil {
			return err
		}
		data, err := json.Marshal(versionValue{
			ParentID:  &parentID,
			Name:      name,
			CreatedAt: createdAt,
		})
		if err != nil {
			return err
		}
		id = allocated
		return txn.Set(versionKey(allocated), data)
	})
	if err != nil {
		return 0, vcerrors.Storage("inserting version", err)
	}
	return id, nil
}

func (s *Store) InsertDeletions(ctx context.Context, id uint32, dels []diff.Deletion) error {
	values := make([]deletionValue, 0, len(dels))
	for _, d := range dels {
		values = append(values, deletionValue{Start: d.Start, End: d.End})
	}
	data, err := json.Marshal(values)
	if err != nil {
		return vcerrors.Storage("encoding deletions", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deletionKey(id), data)
	})
	if err != nil {
		return vcerrors.Storage("inserting deletions", err)
	}
	return nil
}

func (s *Store) InsertInsertions(ctx context.Context, id uint32, inss []diff.Insertion) error {
	values := make([]insertionValue, 0, len(inss))
	for _, ins := range inss {
		values = append(values, insertionValue{Start: ins.Start, Data: ins.Data})
	}
	data, err := json.Marshal(values)
	if err != nil {
		return vcerrors.Storage("encoding insertions", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(insertionKey(id), s.cmp.compress(data))
	})
	if err != nil {
		return vcerrors.Storage("inserting insertions", err)
	}
	return nil
}

func (s *Store) DeleteDeletions(ctx context.Context, id uint32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(deletionKey(id))
	})
	if err != nil {
		return vcerrors.Storage("deleting deletions", err)
	}
	return nil
}

func (s *Store) DeleteInsertions(ctx context.Context, id uint32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(insertionKey(id))
	})
	if err != nil {
		return vcerrors.Storage("deleting insertions", err)
	}
	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, id uint32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(versionKey(id))
	})
	if err != nil {
		return vcerrors.Storage("deleting version", err)
	}
	return nil
}

func (s *Store) UpdateName(ctx context.Context, id uint32, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey(id))
		if err == badger.ErrKeyNotFound {
			return vcerrors.VersionNotFound(id)
		} else if err != nil {
			return err
		}

		var v versionValue
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return err
		}

		v.Name = name
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(versionKey(id), data)
	})
	if err != nil {
		if vcErr, ok := err.(*vcerrors.Error); ok {
			return vcErr
		}
		return vcerrors.Storage("updating version name", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.cmp.close()
	return s.db.Close()
}

func allocateID(txn *badger.Txn) (uint32, error) {
	var next uint32 = 1

	item, err := txn.Get([]byte(nextIDKey))
	if err == nil {
		if err := item.Value(func(val []byte) error {
			next = decodeID(val)
			return nil
		}); err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}

	if err := txn.Set([]byte(nextIDKey), encodeID(next+1)); err != nil {
		return 0, err
	}
	return next, nil
}

func encodeID(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return buf
}

func decodeID(val []byte) uint32 {
	if len(val) != 4 {
		return 1
	}
	return binary.BigEndian.Uint32(val)
}

func parseVersionKey(key []byte) (uint32, error) {
	var id uint32
	if _, err := fmt.Sscanf(string(key), versionPrefix+"%d", &id); err != nil {
		return 0, fmt.Errorf("parsing version key %q: %w", key, err)
	}
	return id, nil
}
