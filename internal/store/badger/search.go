package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/search"
	"github.com/threadstash/threadstash-server/internal/store"
)

// SearchThreads scores every stored thread against the query. The whole
// result set is ranked before pagination, so cost is O(threads × posts)
// per call regardless of limit.
func (s *Store) SearchThreads(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var threads []*domain.Thread
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return iteratePrefix(txn, threadPrefix, s.logger, func(t *domain.Thread) {
			threads = append(threads, t)
		})
	})
	if err != nil {
		return nil, err
	}

	return search.Rank(threads, query, opts), nil
}

// GetStats builds the store-wide aggregate snapshot in a single read
// transaction.
func (s *Store) GetStats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		meta            domain.StoreMeta
		threads         []*domain.Thread
		collectionCount int
		tagCount        int
	)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		if err := getInTxn(txn, metaKey, &meta); err != nil {
			return err
		}
		if err := iteratePrefix(txn, threadPrefix, s.logger, func(t *domain.Thread) {
			threads = append(threads, t)
		}); err != nil {
			return err
		}
		collectionCount = countPrefix(txn, collectionPrefix)
		tagCount = countPrefix(txn, tagPrefix)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return store.ComputeStats(&meta, threads, collectionCount, tagCount, time.Now()), nil
}
