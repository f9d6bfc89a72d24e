package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/export"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// ThreadService orchestrates thread capture, retrieval, and export.
type ThreadService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewThreadService creates a new thread service.
func NewThreadService(st store.Store, validator *validation.Validator, logger *slog.Logger) *ThreadService {
	return &ThreadService{
		store:     st,
		validator: validator,
		logger:    logger,
	}
}

// SaveRequest is a thread capture submitted by the client.
type SaveRequest struct {
	URL            string        `json:"url" validate:"required,url"`
	AuthorUsername string        `json:"author_username" validate:"required,max=100"`
	AuthorName     string        `json:"author_name" validate:"max=200"`
	AuthorAvatar   string        `json:"author_avatar" validate:"omitempty,url"`
	Posts          []domain.Post `json:"posts"`
	Likes          int           `json:"likes" validate:"gte=0"`
	Retweets       int           `json:"retweets" validate:"gte=0"`
	Replies        int           `json:"replies" validate:"gte=0"`
	Language       string        `json:"language" validate:"max=16"`
}

// UpdateRequest is a partial thread edit. Nil fields are left unchanged.
type UpdateRequest struct {
	URL            *string       `json:"url,omitempty" validate:"omitempty,url"`
	AuthorUsername *string       `json:"author_username,omitempty" validate:"omitempty,max=100"`
	AuthorName     *string       `json:"author_name,omitempty" validate:"omitempty,max=200"`
	AuthorAvatar   *string       `json:"author_avatar,omitempty"`
	Posts          []domain.Post `json:"posts,omitempty"`
}

// ExportResult is a rendered thread ready for download.
type ExportResult struct {
	Content     string
	ContentType string
	Filename    string
}

// Save captures a thread into the store.
func (s *ThreadService) Save(ctx context.Context, req SaveRequest) (*domain.Thread, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	capture := &domain.ThreadCapture{
		URL:            req.URL,
		AuthorUsername: req.AuthorUsername,
		AuthorName:     req.AuthorName,
		AuthorAvatar:   req.AuthorAvatar,
		Posts:          req.Posts,
		Likes:          req.Likes,
		Retweets:       req.Retweets,
		Replies:        req.Replies,
		Language:       req.Language,
	}

	thread, err := s.store.SaveThread(ctx, capture)
	if err != nil {
		return nil, err
	}

	s.logger.Info("thread saved",
		"thread_id", thread.ID,
		"author", thread.AuthorUsername,
		"posts", len(thread.Posts),
	)
	return thread, nil
}

// Get returns a thread and records the access.
func (s *ThreadService) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	// Reads should never fail because the access stamp couldn't be written
	if err := s.store.TouchThread(ctx, threadID); err != nil {
		s.logger.Warn("failed to record thread access", "thread_id", threadID, "error", err)
	}

	return thread, nil
}

// List returns threads matching the filters, newest first.
func (s *ThreadService) List(ctx context.Context, filters store.ListFilters) ([]*domain.Thread, error) {
	return s.store.ListThreads(ctx, filters)
}

// Update applies a partial edit to a thread.
func (s *ThreadService) Update(ctx context.Context, threadID string, req UpdateRequest) (*domain.Thread, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	update := store.ThreadUpdate{
		URL:            req.URL,
		AuthorName:     req.AuthorName,
		AuthorUsername: req.AuthorUsername,
		AuthorAvatar:   req.AuthorAvatar,
		Posts:          req.Posts,
	}

	thread, err := s.store.UpdateThread(ctx, threadID, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("thread updated", "thread_id", threadID)
	return thread, nil
}

// Delete removes a thread, its collection membership, and its tag counts.
func (s *ThreadService) Delete(ctx context.Context, threadID string) error {
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return err
	}

	s.logger.Info("thread deleted", "thread_id", threadID)
	return nil
}

// Move files a thread into a different collection.
func (s *ThreadService) Move(ctx context.Context, threadID, collectionID string) error {
	if collectionID == "" {
		return errors.Validation("collection_id is required")
	}

	if err := s.store.MoveThreadToCollection(ctx, threadID, collectionID); err != nil {
		return err
	}

	s.logger.Info("thread moved", "thread_id", threadID, "collection_id", collectionID)
	return nil
}

// Export renders a thread in the requested format.
func (s *ThreadService) Export(ctx context.Context, threadID, formatName string) (*ExportResult, error) {
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	content, err := export.Render(thread, format)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Content:     content,
		ContentType: format.ContentType(),
		Filename:    fmt.Sprintf("%s-thread.%s", thread.AuthorUsername, format.Extension()),
	}, nil
}
