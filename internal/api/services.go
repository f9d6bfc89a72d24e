package api

import (
	"github.com/threadstash/threadstash-server/internal/backup"
	"github.com/threadstash/threadstash-server/internal/service"
)

// Services groups all application services used by the API server.
// This keeps the NewServer signature small and the wiring obvious.
type Services struct {
	Auth       *service.AuthService
	Thread     *service.ThreadService
	Collection *service.CollectionService
	Tag        *service.TagService
	Search     *service.SearchService
	Sync       *service.SyncService
	Settings   *service.SettingsService
	Backup     *backup.Service
}
