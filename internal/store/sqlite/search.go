package sqlite

import (
	"context"
	"time"

	"github.com/threadstash/threadstash-server/internal/search"
	"github.com/threadstash/threadstash-server/internal/store"
)

// SearchThreads loads every thread and delegates scoring to the shared
// ranker, so both backends produce byte-identical results for the same
// data.
func (s *Store) SearchThreads(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	threads, err := s.ListThreads(ctx, store.ListFilters{})
	if err != nil {
		return nil, err
	}
	return search.Rank(threads, query, opts), nil
}

// GetStats builds the store-wide aggregate snapshot.
func (s *Store) GetStats(ctx context.Context) (*store.Stats, error) {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return nil, err
	}

	threads, err := s.ListThreads(ctx, store.ListFilters{})
	if err != nil {
		return nil, err
	}

	var collectionCount, tagCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections`).Scan(&collectionCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags`).Scan(&tagCount); err != nil {
		return nil, err
	}

	return store.ComputeStats(meta, threads, collectionCount, tagCount, time.Now()), nil
}
