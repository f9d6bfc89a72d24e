package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/domain"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncState",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/state",
		Summary:     "Get sync state",
		Description: "Returns the sync state and its pending change log",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSyncState)

	huma.Register(s.api, huma.Operation{
		OperationID: "acknowledgeSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/ack",
		Summary:     "Acknowledge sync",
		Description: "Marks all pending changes as synced and clears the change log",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAcknowledgeSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSyncEnabled",
		Method:      http.MethodPut,
		Path:        "/api/v1/sync/enabled",
		Summary:     "Toggle sync",
		Description: "Enables or disables change-log accumulation",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetSyncEnabled)
}

// === DTOs ===

// SyncStateResponse contains the sync singleton.
type SyncStateResponse struct {
	LastSync       *time.Time            `json:"last_sync,omitempty" doc:"Time of the last acknowledged sync"`
	PendingChanges []domain.ChangeRecord `json:"pending_changes" doc:"Changes accumulated since the last sync"`
	SyncEnabled    bool                  `json:"sync_enabled" doc:"Whether sync is enabled"`
}

// SyncStateOutput wraps the sync state response for Huma.
type SyncStateOutput struct {
	Body SyncStateResponse
}

// SetSyncEnabledRequest is the request body for toggling sync.
type SetSyncEnabledRequest struct {
	Enabled bool `json:"enabled" doc:"Whether sync should be enabled"`
}

// SetSyncEnabledInput wraps the toggle request for Huma.
type SetSyncEnabledInput struct {
	Authorization string `header:"Authorization"`
	Body          SetSyncEnabledRequest
}

// === Handlers ===

func (s *Server) handleGetSyncState(ctx context.Context, input *AuthorizedInput) (*SyncStateOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	state, err := s.services.Sync.State(ctx)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{Body: mapSyncState(state)}, nil
}

func (s *Server) handleAcknowledgeSync(ctx context.Context, input *AuthorizedInput) (*SyncStateOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Sync.Acknowledge(ctx); err != nil {
		return nil, err
	}

	state, err := s.services.Sync.State(ctx)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{Body: mapSyncState(state)}, nil
}

func (s *Server) handleSetSyncEnabled(ctx context.Context, input *SetSyncEnabledInput) (*SyncStateOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	state, err := s.services.Sync.SetEnabled(ctx, input.Body.Enabled)
	if err != nil {
		return nil, err
	}

	return &SyncStateOutput{Body: mapSyncState(state)}, nil
}

// === Helpers ===

func mapSyncState(state *domain.SyncState) SyncStateResponse {
	changes := state.PendingChanges
	if changes == nil {
		changes = []domain.ChangeRecord{}
	}
	return SyncStateResponse{
		LastSync:       state.LastSync,
		PendingChanges: changes,
		SyncEnabled:    state.SyncEnabled,
	}
}
