package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/bookwormapp/bookworm/internal/config"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/store"
	"github.com/bookwormapp/bookworm/internal/store/sqlite"
)

// StoreHandle wraps the configured store backend with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the badger or sqlite store selected by configuration.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DatabasePath()

	var (
		db  store.Store
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err = sqlite.Open(dbPath, log.Logger)
	default:
		db, err = store.New(dbPath, log.Logger, store.Options{})
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Store.Backend, "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
