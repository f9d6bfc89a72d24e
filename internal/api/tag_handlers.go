package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns all tags, most used first",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "createTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags",
		Summary:     "Create tag",
		Description: "Creates a new tag",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Update tag",
		Description: "Updates a tag's name or color",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Deletes a tag and strips it from every thread",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "tagThread",
		Method:      http.MethodPost,
		Path:        "/api/v1/threads/{id}/tags/{tagID}",
		Summary:     "Tag thread",
		Description: "Adds a tag to a thread (idempotent)",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleTagThread)

	huma.Register(s.api, huma.Operation{
		OperationID: "untagThread",
		Method:      http.MethodDelete,
		Path:        "/api/v1/threads/{id}/tags/{tagID}",
		Summary:     "Untag thread",
		Description: "Removes a tag from a thread",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUntagThread)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID          string    `json:"id" doc:"Tag ID"`
	Name        string    `json:"name" doc:"Tag name"`
	Color       string    `json:"color,omitempty" doc:"Display color"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	ThreadCount int       `json:"thread_count" doc:"Number of threads carrying this tag"`
}

// ListTagsResponse contains all tags.
type ListTagsResponse struct {
	Tags []TagResponse `json:"tags" doc:"All tags, most used first"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name  string `json:"name" doc:"Tag name"`
	Color string `json:"color,omitempty" doc:"Display color (hex)"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateTagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// TagIDInput contains a tag ID path parameter.
type TagIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
}

// UpdateTagRequest is the request body for updating a tag.
type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty" doc:"Tag name"`
	Color *string `json:"color,omitempty" doc:"Display color (hex)"`
}

// UpdateTagInput wraps the update tag request for Huma.
type UpdateTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
	Body          UpdateTagRequest
}

// ThreadTagInput contains thread and tag ID path parameters.
type ThreadTagInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Thread ID"`
	TagID         string `path:"tagID" doc:"Tag ID"`
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *AuthorizedInput) (*ListTagsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]TagResponse, len(tags))
	for i, t := range tags {
		resp[i] = mapTag(t)
	}

	return &ListTagsOutput{Body: ListTagsResponse{Tags: resp}}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tag, err := s.services.Tag.Create(ctx, service.CreateTagRequest{
		Name:  input.Body.Name,
		Color: input.Body.Color,
	})
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTag(tag)}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *TagIDInput) (*TagOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tag, err := s.services.Tag.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTag(tag)}, nil
}

func (s *Server) handleUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tag, err := s.services.Tag.Update(ctx, input.ID, service.UpdateTagRequest{
		Name:  input.Body.Name,
		Color: input.Body.Color,
	})
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: mapTag(tag)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagIDInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Tag.Delete(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag deleted"}}, nil
}

func (s *Server) handleTagThread(ctx context.Context, input *ThreadTagInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	attached, err := s.services.Tag.Attach(ctx, input.ID, input.TagID)
	if err != nil {
		return nil, err
	}
	if !attached {
		return &MessageOutput{Body: MessageResponse{Message: "Tag already present"}}, nil
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag added"}}, nil
}

func (s *Server) handleUntagThread(ctx context.Context, input *ThreadTagInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	detached, err := s.services.Tag.Detach(ctx, input.ID, input.TagID)
	if err != nil {
		return nil, err
	}
	if !detached {
		return &MessageOutput{Body: MessageResponse{Message: "Tag was not present"}}, nil
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag removed"}}, nil
}

// === Helpers ===

func mapTag(t *domain.Tag) TagResponse {
	return TagResponse{
		ID:          t.ID,
		Name:        t.Name,
		Color:       t.Color,
		CreatedAt:   t.CreatedAt,
		ThreadCount: t.ThreadCount,
	}
}
