package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/service"
	"github.com/threadstash/threadstash-server/internal/store"
)

func (s *Server) registerThreadRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "saveThread",
		Method:      http.MethodPost,
		Path:        "/api/v1/threads",
		Summary:     "Save thread",
		Description: "Saves a captured thread into the default collection",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSaveThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "listThreads",
		Method:      http.MethodGet,
		Path:        "/api/v1/threads",
		Summary:     "List threads",
		Description: "Returns saved threads, newest first, with optional filters",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListThreads)

	huma.Register(s.api, huma.Operation{
		OperationID: "getThread",
		Method:      http.MethodGet,
		Path:        "/api/v1/threads/{id}",
		Summary:     "Get thread",
		Description: "Returns a thread by ID and records the access",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateThread",
		Method:      http.MethodPatch,
		Path:        "/api/v1/threads/{id}",
		Summary:     "Update thread",
		Description: "Applies a partial edit to a thread",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteThread",
		Method:      http.MethodDelete,
		Path:        "/api/v1/threads/{id}",
		Summary:     "Delete thread",
		Description: "Deletes a thread, removing it from its collection and tag counts",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "moveThread",
		Method:      http.MethodPut,
		Path:        "/api/v1/threads/{id}/collection",
		Summary:     "Move thread",
		Description: "Files a thread into a different collection",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMoveThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportThread",
		Method:      http.MethodGet,
		Path:        "/api/v1/threads/{id}/export",
		Summary:     "Export thread",
		Description: "Renders a thread as text, json, or markdown",
		Tags:        []string{"Threads"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleExportThread)
}

// === DTOs ===

// SaveThreadRequest is the request body for saving a captured thread.
type SaveThreadRequest struct {
	URL            string        `json:"url" doc:"Source thread URL"`
	AuthorUsername string        `json:"author_username" doc:"Author handle"`
	AuthorName     string        `json:"author_name,omitempty" doc:"Author display name"`
	AuthorAvatar   string        `json:"author_avatar,omitempty" doc:"Author avatar URL"`
	Posts          []domain.Post `json:"posts" doc:"Posts in reading order"`
	Likes          int           `json:"likes,omitempty" doc:"Engagement: likes"`
	Retweets       int           `json:"retweets,omitempty" doc:"Engagement: retweets"`
	Replies        int           `json:"replies,omitempty" doc:"Engagement: replies"`
	Language       string        `json:"language,omitempty" doc:"Thread language code"`
}

// SaveThreadInput wraps the save request for Huma.
type SaveThreadInput struct {
	Authorization string `header:"Authorization"`
	Body          SaveThreadRequest
}

// ThreadResponse contains thread data in API responses.
type ThreadResponse struct {
	ID             string                `json:"id" doc:"Thread ID"`
	URL            string                `json:"url" doc:"Source thread URL"`
	AuthorUsername string                `json:"author_username" doc:"Author handle"`
	AuthorName     string                `json:"author_name" doc:"Author display name"`
	AuthorAvatar   string                `json:"author_avatar,omitempty" doc:"Author avatar URL"`
	Posts          []domain.Post         `json:"posts" doc:"Posts in reading order"`
	SavedAt        time.Time             `json:"saved_at" doc:"Capture time"`
	LastAccessed   time.Time             `json:"last_accessed" doc:"Last read time"`
	LastModified   time.Time             `json:"last_modified,omitzero" doc:"Last edit time"`
	Tags           []string              `json:"tags" doc:"Tag IDs on this thread"`
	CollectionID   string                `json:"collection_id" doc:"Owning collection"`
	Metadata       domain.ThreadMetadata `json:"metadata" doc:"Derived aggregates"`
}

// ThreadOutput wraps the thread response for Huma.
type ThreadOutput struct {
	Body ThreadResponse
}

// ListThreadsInput contains filters for listing threads. Filters
// combine as a conjunction.
type ListThreadsInput struct {
	Authorization string   `header:"Authorization"`
	CollectionID  string   `query:"collection_id" doc:"Filter by collection"`
	TagIDs        []string `query:"tag_id" doc:"Filter by tag ID; repeatable, threads carrying any listed tag match"`
	Author        string   `query:"author" doc:"Filter by author handle (case-insensitive substring)"`
	Search        string   `query:"search" doc:"Filter by post text (case-insensitive substring against any post)"`
	Limit         int      `query:"limit" minimum:"0" maximum:"500" doc:"Page size (0 = all)"`
	Offset        int      `query:"offset" minimum:"0" doc:"Page offset"`
}

// ListThreadsResponse contains a page of threads.
type ListThreadsResponse struct {
	Threads []ThreadResponse `json:"threads" doc:"Matching threads, newest first"`
}

// ListThreadsOutput wraps the list threads response for Huma.
type ListThreadsOutput struct {
	Body ListThreadsResponse
}

// ThreadIDInput contains a thread ID path parameter.
type ThreadIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Thread ID"`
}

// UpdateThreadRequest is the request body for a partial thread edit.
type UpdateThreadRequest struct {
	URL            *string       `json:"url,omitempty" doc:"Source thread URL"`
	AuthorUsername *string       `json:"author_username,omitempty" doc:"Author handle"`
	AuthorName     *string       `json:"author_name,omitempty" doc:"Author display name"`
	AuthorAvatar   *string       `json:"author_avatar,omitempty" doc:"Author avatar URL"`
	Posts          []domain.Post `json:"posts,omitempty" doc:"Replacement posts (must be non-empty)"`
}

// UpdateThreadInput wraps the update request for Huma.
type UpdateThreadInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Thread ID"`
	Body          UpdateThreadRequest
}

// MoveThreadRequest is the request body for moving a thread.
type MoveThreadRequest struct {
	CollectionID string `json:"collection_id" doc:"Target collection ID"`
}

// MoveThreadInput wraps the move request for Huma.
type MoveThreadInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Thread ID"`
	Body          MoveThreadRequest
}

// ExportThreadInput contains parameters for exporting a thread.
type ExportThreadInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Thread ID"`
	Format        string `query:"format" enum:"text,json,markdown" default:"text" doc:"Output format"`
}

// ExportThreadOutput is the rendered thread with download headers.
type ExportThreadOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// === Handlers ===

func (s *Server) handleSaveThread(ctx context.Context, input *SaveThreadInput) (*ThreadOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	thread, err := s.services.Thread.Save(ctx, service.SaveRequest{
		URL:            input.Body.URL,
		AuthorUsername: input.Body.AuthorUsername,
		AuthorName:     input.Body.AuthorName,
		AuthorAvatar:   input.Body.AuthorAvatar,
		Posts:          input.Body.Posts,
		Likes:          input.Body.Likes,
		Retweets:       input.Body.Retweets,
		Replies:        input.Body.Replies,
		Language:       input.Body.Language,
	})
	if err != nil {
		return nil, err
	}

	return &ThreadOutput{Body: mapThread(thread)}, nil
}

func (s *Server) handleListThreads(ctx context.Context, input *ListThreadsInput) (*ListThreadsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	threads, err := s.services.Thread.List(ctx, store.ListFilters{
		CollectionID: input.CollectionID,
		TagIDs:       input.TagIDs,
		Author:       input.Author,
		Search:       input.Search,
		Limit:        input.Limit,
		Offset:       input.Offset,
	})
	if err != nil {
		return nil, err
	}

	resp := make([]ThreadResponse, len(threads))
	for i, t := range threads {
		resp[i] = mapThread(t)
	}

	return &ListThreadsOutput{Body: ListThreadsResponse{Threads: resp}}, nil
}

func (s *Server) handleGetThread(ctx context.Context, input *ThreadIDInput) (*ThreadOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	thread, err := s.services.Thread.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ThreadOutput{Body: mapThread(thread)}, nil
}

func (s *Server) handleUpdateThread(ctx context.Context, input *UpdateThreadInput) (*ThreadOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	thread, err := s.services.Thread.Update(ctx, input.ID, service.UpdateRequest{
		URL:            input.Body.URL,
		AuthorUsername: input.Body.AuthorUsername,
		AuthorName:     input.Body.AuthorName,
		AuthorAvatar:   input.Body.AuthorAvatar,
		Posts:          input.Body.Posts,
	})
	if err != nil {
		return nil, err
	}

	return &ThreadOutput{Body: mapThread(thread)}, nil
}

func (s *Server) handleDeleteThread(ctx context.Context, input *ThreadIDInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Thread.Delete(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Thread deleted"}}, nil
}

func (s *Server) handleMoveThread(ctx context.Context, input *MoveThreadInput) (*ThreadOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Thread.Move(ctx, input.ID, input.Body.CollectionID); err != nil {
		return nil, err
	}

	thread, err := s.store.GetThread(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ThreadOutput{Body: mapThread(thread)}, nil
}

func (s *Server) handleExportThread(ctx context.Context, input *ExportThreadInput) (*ExportThreadOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	result, err := s.services.Thread.Export(ctx, input.ID, input.Format)
	if err != nil {
		return nil, err
	}

	return &ExportThreadOutput{
		ContentType:        result.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", result.Filename),
		Body:               []byte(result.Content),
	}, nil
}

// === Helpers ===

func mapThread(t *domain.Thread) ThreadResponse {
	return ThreadResponse{
		ID:             t.ID,
		URL:            t.URL,
		AuthorUsername: t.AuthorUsername,
		AuthorName:     t.AuthorName,
		AuthorAvatar:   t.AuthorAvatar,
		Posts:          t.Posts,
		SavedAt:        t.SavedAt,
		LastAccessed:   t.LastAccessed,
		LastModified:   t.LastModified,
		Tags:           t.Tags,
		CollectionID:   t.CollectionID,
		Metadata:       t.Metadata,
	}
}
