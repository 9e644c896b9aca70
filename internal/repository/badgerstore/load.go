// internal/repository/badgerstore/load.go
package badgerstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"sbvc/internal/diff"
	vcerrors "sbvc/internal/errors"
	"sbvc/internal/repository"
)

// LoadAll reads every version record. The version rows come from one prefix
// scan; each record's deletion and insertion blobs are then fetched in their
// own goroutines (badger read transactions are safe to run concurrently).
func (s *Store) LoadAll(ctx context.Context) ([]repository.Row, error) {
	type head struct {
		id uint32
		v  versionValue
	}
	var heads []head

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(versionPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id, err := parseVersionKey(item.Key())
			if err != nil {
				return err
			}
			var v versionValue
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			heads = append(heads, head{id: id, v: v})
		}
		return nil
	})
	if err != nil {
		return nil, vcerrors.Storage("loading versions", err)
	}

	rows := make([]repository.Row, len(heads))

	g, ctx := errgroup.WithContext(ctx)
	for i, h := range heads {
		i, h := i, h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var dels []diff.Deletion
			var inss []diff.Insertion

			sub, _ := errgroup.WithContext(ctx)
			sub.Go(func() error {
				var err error
				dels, err = s.loadDeletions(h.id)
				return err
			})
			sub.Go(func() error {
				var err error
				inss, err = s.loadInsertions(h.id)
				return err
			})
			if err := sub.Wait(); err != nil {
				return err
			}

			rows[i] = repository.Row{
				ID:         h.id,
				ParentID:   h.v.ParentID,
				Name:       h.v.Name,
				CreatedAt:  h.v.CreatedAt,
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

func (s *Store) loadDeletions(id uint32) ([]diff.Deletion, error) {
	var values []deletionValue

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deletionKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &values)
		})
	})
	if err != nil {
		return nil, err
	}

	dels := make([]diff.Deletion, 0, len(values))
	for _, v := range values {
		dels = append(dels, diff.Deletion{Start: v.Start, End: v.End})
	}
	return dels, nil
}

func (s *Store) loadInsertions(id uint32) ([]diff.Insertion, error) {
	var values []insertionValue

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(insertionKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw, err := s.cmp.decompress(val)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, &values)
		})
	})
	if err != nil {
		return nil, err
	}

	inss := make([]diff.Insertion, 0, len(values))
	for _, v := range values {
		inss = append(inss, diff.Insertion{Start: v.Start, Data: v.Data})
	}
	return inss, nil
}
