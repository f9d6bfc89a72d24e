package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/service"
)

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Description: "Returns all collections, the default one first",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "createCollection",
		Method:      http.MethodPost,
		Path:        "/api/v1/collections",
		Summary:     "Create collection",
		Description: "Creates a new empty collection",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCollection",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Get collection",
		Description: "Returns a collection by ID",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCollection",
		Method:      http.MethodPatch,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Update collection",
		Description: "Updates a collection's name, description, or color",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCollection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/collections/{id}",
		Summary:     "Delete collection",
		Description: "Deletes a collection; its threads fall back to the default collection",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteCollection)
}

// === DTOs ===

// CollectionResponse contains collection data in API responses.
type CollectionResponse struct {
	ID          string    `json:"id" doc:"Collection ID"`
	Name        string    `json:"name" doc:"Collection name"`
	Description string    `json:"description,omitempty" doc:"Optional description"`
	Color       string    `json:"color,omitempty" doc:"Display color"`
	ParentID    string    `json:"parent_id,omitempty" doc:"Optional parent collection"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	ThreadIDs   []string  `json:"thread_ids" doc:"Member thread IDs"`
	IsDefault   bool      `json:"is_default" doc:"Whether this is the protected default collection"`
}

// ListCollectionsResponse contains all collections.
type ListCollectionsResponse struct {
	Collections []CollectionResponse `json:"collections" doc:"All collections, default first"`
}

// ListCollectionsOutput wraps the list collections response for Huma.
type ListCollectionsOutput struct {
	Body ListCollectionsResponse
}

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest struct {
	Name        string `json:"name" doc:"Collection name"`
	Description string `json:"description,omitempty" doc:"Optional description"`
	Color       string `json:"color,omitempty" doc:"Display color (hex)"`
	ParentID    string `json:"parent_id,omitempty" doc:"Optional parent collection"`
}

// CreateCollectionInput wraps the create request for Huma.
type CreateCollectionInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateCollectionRequest
}

// CollectionOutput wraps the collection response for Huma.
type CollectionOutput struct {
	Body CollectionResponse
}

// CollectionIDInput contains a collection ID path parameter.
type CollectionIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Collection ID"`
}

// UpdateCollectionRequest is the request body for a partial collection edit.
type UpdateCollectionRequest struct {
	Name        *string `json:"name,omitempty" doc:"Collection name"`
	Description *string `json:"description,omitempty" doc:"Description"`
	Color       *string `json:"color,omitempty" doc:"Display color (hex)"`
}

// UpdateCollectionInput wraps the update request for Huma.
type UpdateCollectionInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Collection ID"`
	Body          UpdateCollectionRequest
}

// === Handlers ===

func (s *Server) handleListCollections(ctx context.Context, input *AuthorizedInput) (*ListCollectionsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	colls, err := s.services.Collection.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]CollectionResponse, len(colls))
	for i, c := range colls {
		resp[i] = mapCollection(c)
	}

	return &ListCollectionsOutput{Body: ListCollectionsResponse{Collections: resp}}, nil
}

func (s *Server) handleCreateCollection(ctx context.Context, input *CreateCollectionInput) (*CollectionOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	coll, err := s.services.Collection.Create(ctx, service.CreateCollectionRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Color:       input.Body.Color,
		ParentID:    input.Body.ParentID,
	})
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: mapCollection(coll)}, nil
}

func (s *Server) handleGetCollection(ctx context.Context, input *CollectionIDInput) (*CollectionOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	coll, err := s.services.Collection.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: mapCollection(coll)}, nil
}

func (s *Server) handleUpdateCollection(ctx context.Context, input *UpdateCollectionInput) (*CollectionOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	coll, err := s.services.Collection.Update(ctx, input.ID, service.UpdateCollectionRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Color:       input.Body.Color,
	})
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: mapCollection(coll)}, nil
}

func (s *Server) handleDeleteCollection(ctx context.Context, input *CollectionIDInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Collection.Delete(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Collection deleted"}}, nil
}

// === Helpers ===

func mapCollection(c *domain.Collection) CollectionResponse {
	return CollectionResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		ParentID:    c.ParentID,
		CreatedAt:   c.CreatedAt,
		ThreadIDs:   c.ThreadIDs,
		IsDefault:   c.IsDefault(),
	}
}
