package service

import (
	"context"
	"log/slog"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// SettingsService manages the capture client's preferences singleton.
type SettingsService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(st store.Store, validator *validation.Validator, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:     st,
		validator: validator,
		logger:    logger,
	}
}

// UpdatePrefsRequest is a partial preferences edit.
type UpdatePrefsRequest struct {
	Theme               *string `json:"theme,omitempty" validate:"omitempty,oneof=system light dark"`
	DefaultExportFormat *string `json:"default_export_format,omitempty" validate:"omitempty,oneof=text json markdown"`
	AutoCapture         *bool   `json:"auto_capture,omitempty"`
	ShowSaveButton      *bool   `json:"show_save_button,omitempty"`
}

// Get returns the current preferences.
func (s *SettingsService) Get(ctx context.Context) (*domain.UserPrefs, error) {
	return s.store.GetPrefs(ctx)
}

// Update applies a partial preferences edit and returns the result.
func (s *SettingsService) Update(ctx context.Context, req UpdatePrefsRequest) (*domain.UserPrefs, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	prefs, err := s.store.GetPrefs(ctx)
	if err != nil {
		return nil, err
	}

	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.DefaultExportFormat != nil {
		prefs.DefaultExportFormat = *req.DefaultExportFormat
	}
	if req.AutoCapture != nil {
		prefs.AutoCapture = *req.AutoCapture
	}
	if req.ShowSaveButton != nil {
		prefs.ShowSaveButton = *req.ShowSaveButton
	}

	if err := s.store.UpdatePrefs(ctx, prefs); err != nil {
		return nil, err
	}

	return prefs, nil
}
