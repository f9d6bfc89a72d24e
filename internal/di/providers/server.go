package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/threadstash/threadstash-server/internal/api"
	"github.com/threadstash/threadstash-server/internal/backup"
	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/service"
)

// drainTimeout bounds how long in-flight requests may run during shutdown.
const drainTimeout = 15 * time.Second

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:       do.MustInvoke[*service.AuthService](i),
		Thread:     do.MustInvoke[*service.ThreadService](i),
		Collection: do.MustInvoke[*service.CollectionService](i),
		Tag:        do.MustInvoke[*service.TagService](i),
		Search:     do.MustInvoke[*service.SearchService](i),
		Sync:       do.MustInvoke[*service.SyncService](i),
		Settings:   do.MustInvoke[*service.SettingsService](i),
		Backup:     do.MustInvoke[*backup.Service](i),
	}

	handler := api.NewServer(cfg, storeHandle.Store, services, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "name", cfg.Server.Name)

	return &HTTPServerHandle{Server: srv}, nil
}
