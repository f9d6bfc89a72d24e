package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/threadstash/threadstash-server/internal/backup"
)

func (s *Server) registerBackupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups",
		Summary:     "List backups",
		Description: "Returns all snapshot files, newest first",
		Tags:        []string{"Backups"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBackups)

	huma.Register(s.api, huma.Operation{
		OperationID: "createBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/backups",
		Summary:     "Create backup",
		Description: "Writes a full snapshot of the stash to the backup directory",
		Tags:        []string{"Backups"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/backups/{id}/restore",
		Summary:     "Restore backup",
		Description: "Merges a snapshot into the stash; existing threads, collections, and tags are kept",
		Tags:        []string{"Backups"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBackup",
		Method:      http.MethodDelete,
		Path:        "/api/v1/backups/{id}",
		Summary:     "Delete backup",
		Description: "Removes a snapshot file",
		Tags:        []string{"Backups"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBackup)
}

// === DTOs ===

// ListBackupsResponse contains all snapshots.
type ListBackupsResponse struct {
	Backups []backup.Info `json:"backups" doc:"Snapshots, newest first"`
}

// ListBackupsOutput wraps the list backups response for Huma.
type ListBackupsOutput struct {
	Body ListBackupsResponse
}

// BackupOutput wraps a single snapshot description for Huma.
type BackupOutput struct {
	Body backup.Info
}

// BackupIDInput contains a snapshot ID path parameter.
type BackupIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Snapshot ID"`
}

// RestoreOutput wraps the restore result for Huma.
type RestoreOutput struct {
	Body backup.RestoreResult
}

// === Handlers ===

func (s *Server) handleListBackups(ctx context.Context, input *AuthorizedInput) (*ListBackupsOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	backups, err := s.services.Backup.List(ctx)
	if err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []backup.Info{}
	}

	return &ListBackupsOutput{Body: ListBackupsResponse{Backups: backups}}, nil
}

func (s *Server) handleCreateBackup(ctx context.Context, input *AuthorizedInput) (*BackupOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	info, err := s.services.Backup.Create(ctx)
	if err != nil {
		return nil, err
	}

	return &BackupOutput{Body: *info}, nil
}

func (s *Server) handleRestoreBackup(ctx context.Context, input *BackupIDInput) (*RestoreOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	result, err := s.services.Backup.Restore(ctx, input.ID)
	if err != nil {
		if errors.Is(err, backup.ErrSnapshotNotFound) {
			return nil, huma.Error404NotFound("Backup not found")
		}
		return nil, err
	}

	return &RestoreOutput{Body: *result}, nil
}

func (s *Server) handleDeleteBackup(ctx context.Context, input *BackupIDInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Backup.Delete(ctx, input.ID); err != nil {
		if errors.Is(err, backup.ErrSnapshotNotFound) {
			return nil, huma.Error404NotFound("Backup not found")
		}
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Backup deleted"}}, nil
}
