package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/threadstash/threadstash-server/internal/search"
	"github.com/threadstash/threadstash-server/internal/store"
)

// SearchService runs keyword search and library statistics.
type SearchService struct {
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(st store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{store: st, logger: logger}
}

// Search scores every stored thread against the query.
// An empty query returns no results rather than everything.
func (s *SearchService) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return []search.Result{}, nil
	}
	return s.store.SearchThreads(ctx, query, opts)
}

// Stats returns library-wide statistics.
func (s *SearchService) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.GetStats(ctx)
}
