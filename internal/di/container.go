// Package di provides dependency injection configuration for the ThreadStash server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/threadstash/threadstash-server/internal/auth"
	"github.com/threadstash/threadstash-server/internal/backup"
	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/di/providers"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/service"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideValidator)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideThreadService)
	do.Provide(injector, providers.ProvideCollectionService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideSyncService)
	do.Provide(injector, providers.ProvideSettingsService)
	do.Provide(injector, providers.ProvideBackupService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.ThreadService](injector)
	_ = do.MustInvoke[*service.CollectionService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.SyncService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)
	_ = do.MustInvoke[*backup.Service](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
