package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/store"
)

// SyncService exposes the change log a remote sync client drains.
type SyncService struct {
	store  store.Store
	logger *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(st store.Store, logger *slog.Logger) *SyncService {
	return &SyncService{store: st, logger: logger}
}

// State returns the sync singleton with its pending change log.
func (s *SyncService) State(ctx context.Context) (*domain.SyncState, error) {
	return s.store.GetSyncState(ctx)
}

// Acknowledge marks all pending changes as synced, clearing the log and
// stamping the last-sync time.
func (s *SyncService) Acknowledge(ctx context.Context) error {
	syncedAt := time.Now()
	if err := s.store.ClearPendingChanges(ctx, syncedAt); err != nil {
		return err
	}

	s.logger.Info("sync acknowledged", "synced_at", syncedAt)
	return nil
}

// SetEnabled toggles whether change accumulation is surfaced to clients.
func (s *SyncService) SetEnabled(ctx context.Context, enabled bool) (*domain.SyncState, error) {
	if err := s.store.SetSyncEnabled(ctx, enabled); err != nil {
		return nil, err
	}
	return s.store.GetSyncState(ctx)
}
