package providers

import (
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/store/badger"
	"github.com/threadstash/threadstash-server/internal/store/sqlite"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the thread store, selecting the backend
// configured by STORE_BACKEND.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		dbPath := filepath.Join(cfg.Store.DataPath, "threadstash.db")
		st, err = sqlite.Open(dbPath, cfg.Store.MaxFreeThreads, log.Logger)
	case config.BackendBadger, "":
		dbPath := filepath.Join(cfg.Store.DataPath, "db")
		st, err = badger.Open(dbPath, cfg.Store.MaxFreeThreads, log.Logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Store initialized", "backend", cfg.Store.Backend, "path", cfg.Store.DataPath)

	return &StoreHandle{Store: st}, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
