package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/search"
	"github.com/threadstash/threadstash-server/internal/store"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchThreads",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search threads",
		Description: "Scores every stored thread against a keyword query and returns matches ranked by relevance",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Library statistics",
		Description: "Returns aggregate statistics for the stored library",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStats)
}

// === DTOs ===

// SearchInput contains the search query parameters.
type SearchInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Keyword query"`
	Limit         int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum results to return"`
	Offset        int    `query:"offset" minimum:"0" doc:"Results to skip"`
}

// SearchResultResponse is one ranked search hit.
type SearchResultResponse struct {
	Thread  ThreadResponse `json:"thread" doc:"Matching thread"`
	Score   int            `json:"score" doc:"Relevance score"`
	Matches []search.Match `json:"matches" doc:"Where the query matched"`
}

// SearchResponse contains the ranked search results.
type SearchResponse struct {
	Query   string                 `json:"query" doc:"The query that was run"`
	Results []SearchResultResponse `json:"results" doc:"Matches ranked by descending score"`
	Total   int                    `json:"total" doc:"Number of results in this page"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// StatsOutput wraps the statistics response for Huma.
type StatsOutput struct {
	Body store.Stats
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	results, err := s.services.Search.Search(ctx, input.Query, search.Options{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}

	resp := make([]SearchResultResponse, len(results))
	for i, r := range results {
		resp[i] = SearchResultResponse{
			Thread:  mapThread(r.Thread),
			Score:   r.Score,
			Matches: r.Matches,
		}
	}

	return &SearchOutput{Body: SearchResponse{
		Query:   input.Query,
		Results: resp,
		Total:   len(resp),
	}}, nil
}

func (s *Server) handleStats(ctx context.Context, input *AuthorizedInput) (*StatsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	stats, err := s.services.Search.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &StatsOutput{Body: *stats}, nil
}
