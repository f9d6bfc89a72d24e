package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/service"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSettings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "Get settings",
		Description: "Returns the capture client preferences",
		Tags:        []string{"Settings"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSettings",
		Method:      http.MethodPatch,
		Path:        "/api/v1/settings",
		Summary:     "Update settings",
		Description: "Applies a partial preferences edit",
		Tags:        []string{"Settings"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateSettings)
}

// === DTOs ===

// SettingsOutput wraps the preferences response for Huma.
type SettingsOutput struct {
	Body domain.UserPrefs
}

// UpdateSettingsRequest is the request body for a partial preferences edit.
type UpdateSettingsRequest struct {
	Theme               *string `json:"theme,omitempty" doc:"UI theme (system, light, dark)"`
	DefaultExportFormat *string `json:"default_export_format,omitempty" doc:"Default export format (text, json, markdown)"`
	AutoCapture         *bool   `json:"auto_capture,omitempty" doc:"Capture threads automatically"`
	ShowSaveButton      *bool   `json:"show_save_button,omitempty" doc:"Show the save button overlay"`
}

// UpdateSettingsInput wraps the update settings request for Huma.
type UpdateSettingsInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateSettingsRequest
}

// === Handlers ===

func (s *Server) handleGetSettings(ctx context.Context, input *AuthorizedInput) (*SettingsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	prefs, err := s.services.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &SettingsOutput{Body: *prefs}, nil
}

func (s *Server) handleUpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	prefs, err := s.services.Settings.Update(ctx, service.UpdatePrefsRequest{
		Theme:               input.Body.Theme,
		DefaultExportFormat: input.Body.DefaultExportFormat,
		AutoCapture:         input.Body.AutoCapture,
		ShowSaveButton:      input.Body.ShowSaveButton,
	})
	if err != nil {
		return nil, err
	}

	return &SettingsOutput{Body: *prefs}, nil
}
