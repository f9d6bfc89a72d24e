package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/threadstash/threadstash-server/internal/color"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// TagService orchestrates tag CRUD and thread tagging.
type TagService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(st store.Store, validator *validation.Validator, logger *slog.Logger) *TagService {
	return &TagService{
		store:     st,
		validator: validator,
		logger:    logger,
	}
}

// CreateTagRequest contains new tag data.
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateTagRequest is a partial tag edit. The usage counter is store-managed
// and cannot be set through the API.
type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// Create makes a new tag with a zero usage count.
func (s *TagService) Create(ctx context.Context, req CreateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required")
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, err
	}

	// Tags without an explicit color get a stable one derived from the name.
	tagColor := req.Color
	if tagColor == "" {
		tagColor = color.ForLabel(name)
	}

	tag := &domain.Tag{
		ID:        tagID,
		Name:      name,
		Color:     tagColor,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, err
	}

	s.logger.Info("tag created", "tag_id", tagID, "name", name)
	return tag, nil
}

// Get returns a single tag.
func (s *TagService) Get(ctx context.Context, tagID string) (*domain.Tag, error) {
	return s.store.GetTag(ctx, tagID)
}

// List returns all tags, most used first.
func (s *TagService) List(ctx context.Context) ([]*domain.Tag, error) {
	return s.store.ListTags(ctx)
}

// Update applies a partial edit to a tag.
func (s *TagService) Update(ctx context.Context, tagID string, req UpdateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tag.Name = strings.TrimSpace(*req.Name)
	}
	if req.Color != nil {
		tag.Color = *req.Color
	}

	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return nil, err
	}

	return s.store.GetTag(ctx, tagID)
}

// Delete removes a tag and strips it from every thread carrying it.
func (s *TagService) Delete(ctx context.Context, tagID string) error {
	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return err
	}

	s.logger.Info("tag deleted", "tag_id", tagID)
	return nil
}

// Attach adds a tag to a thread, reporting whether the attachment was
// new. Tagging an already-tagged thread is a no-op returning false.
func (s *TagService) Attach(ctx context.Context, threadID, tagID string) (bool, error) {
	return s.store.AddTagToThread(ctx, threadID, tagID)
}

// Detach removes a tag from a thread, reporting whether it was attached.
func (s *TagService) Detach(ctx context.Context, threadID, tagID string) (bool, error) {
	return s.store.RemoveTagFromThread(ctx, threadID, tagID)
}
