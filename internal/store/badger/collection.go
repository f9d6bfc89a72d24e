package badger

import (
	"context"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// CreateCollection persists a new collection. The caller assigns the ID.
func (s *Store) CreateCollection(ctx context.Context, c *domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := collectionPrefix + c.ID
		if _, err := txn.Get([]byte(key)); err == nil {
			return errors.AlreadyExists("collection already exists")
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		if c.ThreadIDs == nil {
			c.ThreadIDs = []string{}
		}
		if err := setInTxn(txn, key, c); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpSave, domain.ChangeEntityCollection, c.ID)
	})
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(ctx context.Context, collectionID string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var c domain.Collection
	err := s.get(collectionPrefix+collectionID, &c)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFoundf("collection %s not found", collectionID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollections returns all collections, the default one first, the rest
// in creation order.
func (s *Store) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collections := []*domain.Collection{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return iteratePrefix(txn, collectionPrefix, s.logger, func(c *domain.Collection) {
			collections = append(collections, c)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(collections, func(i, j int) bool {
		if collections[i].IsDefault() != collections[j].IsDefault() {
			return collections[i].IsDefault()
		}
		return collections[i].CreatedAt.Before(collections[j].CreatedAt)
	})

	return collections, nil
}

// UpdateCollection writes back a modified collection record.
func (s *Store) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := collectionPrefix + c.ID
		if _, err := txn.Get([]byte(key)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFoundf("collection %s not found", c.ID)
		} else if err != nil {
			return err
		}

		if err := setInTxn(txn, key, c); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpUpdate, domain.ChangeEntityCollection, c.ID)
	})
}

// DeleteCollection removes a collection and reassigns its member threads
// to the default collection within the same transaction. The default
// collection itself can never be deleted.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if collectionID == domain.DefaultCollectionID {
		return errors.Forbidden("the default collection cannot be deleted")
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		key := collectionPrefix + collectionID
		var coll domain.Collection
		if err := getInTxn(txn, key, &coll); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("collection %s not found", collectionID)
			}
			return err
		}

		var fallback domain.Collection
		if err := getInTxn(txn, collectionPrefix+domain.DefaultCollectionID, &fallback); err != nil {
			return err
		}

		for _, threadID := range coll.ThreadIDs {
			var thread domain.Thread
			err := getInTxn(txn, threadPrefix+threadID, &thread)
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue // stale membership entry
			}
			if err != nil {
				return err
			}

			thread.CollectionID = domain.DefaultCollectionID
			if err := setInTxn(txn, threadPrefix+threadID, &thread); err != nil {
				return err
			}
			fallback.AddThread(threadID)
		}

		if err := setInTxn(txn, collectionPrefix+domain.DefaultCollectionID, &fallback); err != nil {
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpDelete, domain.ChangeEntityCollection, collectionID)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("collection deleted", "collection_id", collectionID)
	}
	return nil
}
