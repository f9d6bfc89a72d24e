package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/threadstash/threadstash-server/internal/color"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// CollectionService orchestrates collection CRUD.
type CollectionService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(st store.Store, validator *validation.Validator, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:     st,
		validator: validator,
		logger:    logger,
	}
}

// CreateCollectionRequest contains new collection data.
type CreateCollectionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	ParentID    string `json:"parent_id"`
}

// UpdateCollectionRequest is a partial collection edit.
type UpdateCollectionRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Color       *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// Create makes a new empty collection.
func (s *CollectionService) Create(ctx context.Context, req CreateCollectionRequest) (*domain.Collection, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.ParentID != "" {
		if _, err := s.store.GetCollection(ctx, req.ParentID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.Validationf("parent collection %s does not exist", req.ParentID)
			}
			return nil, err
		}
	}

	collID, err := id.Generate(id.PrefixCollection)
	if err != nil {
		return nil, err
	}

	collColor := req.Color
	if collColor == "" {
		collColor = color.ForLabel(req.Name)
	}

	coll := &domain.Collection{
		ID:          collID,
		Name:        req.Name,
		Description: req.Description,
		Color:       collColor,
		ParentID:    req.ParentID,
		CreatedAt:   time.Now(),
		ThreadIDs:   []string{},
	}

	if err := s.store.CreateCollection(ctx, coll); err != nil {
		return nil, err
	}

	s.logger.Info("collection created", "collection_id", collID, "name", coll.Name)
	return coll, nil
}

// Get returns a single collection.
func (s *CollectionService) Get(ctx context.Context, collectionID string) (*domain.Collection, error) {
	return s.store.GetCollection(ctx, collectionID)
}

// List returns all collections, the default one first.
func (s *CollectionService) List(ctx context.Context) ([]*domain.Collection, error) {
	return s.store.ListCollections(ctx)
}

// Update applies a partial edit to a collection.
func (s *CollectionService) Update(ctx context.Context, collectionID string, req UpdateCollectionRequest) (*domain.Collection, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	coll, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		coll.Name = *req.Name
	}
	if req.Description != nil {
		coll.Description = *req.Description
	}
	if req.Color != nil {
		coll.Color = *req.Color
	}

	if err := s.store.UpdateCollection(ctx, coll); err != nil {
		return nil, err
	}

	s.logger.Info("collection updated", "collection_id", collectionID)
	return coll, nil
}

// Delete removes a collection; its threads fall back to the default
// collection. The default collection itself cannot be deleted.
func (s *CollectionService) Delete(ctx context.Context, collectionID string) error {
	if err := s.store.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}

	s.logger.Info("collection deleted", "collection_id", collectionID)
	return nil
}
