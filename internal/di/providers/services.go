package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/threadstash/threadstash-server/internal/auth"
	"github.com/threadstash/threadstash-server/internal/backup"
	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/service"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, v, log.Logger), nil
}

// ProvideThreadService provides the thread service.
func ProvideThreadService(i do.Injector) (*service.ThreadService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewThreadService(storeHandle.Store, v, log.Logger), nil
}

// ProvideCollectionService provides the collection service.
func ProvideCollectionService(i do.Injector) (*service.CollectionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCollectionService(storeHandle.Store, v, log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, v, log.Logger), nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(storeHandle.Store, log.Logger), nil
}

// ProvideSyncService provides the sync service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSyncService(storeHandle.Store, log.Logger), nil
}

// ProvideBackupService provides the snapshot backup service.
func ProvideBackupService(i do.Injector) (*backup.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	backupDir := filepath.Join(cfg.Store.DataPath, "backups")
	return backup.NewService(storeHandle.Store, backupDir, cfg.Server.Name, "dev", log.Logger), nil
}

// ProvideSettingsService provides the settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSettingsService(storeHandle.Store, v, log.Logger), nil
}
