// Package backend builds the entity store selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"

	"cashboxes/internal/config"
	applog "cashboxes/internal/log"
	"cashboxes/internal/ports"
	"cashboxes/internal/storage"
	"cashboxes/internal/storage/memory"
)

type BackendType string

const (
	SQLiteBackend BackendType = config.BackendSQLite
	MemoryBackend BackendType = config.BackendMemory
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Factory creates stores based on configuration.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentStorage)}
}

// CreateStore opens the configured store. The caller owns it and must Close it.
func (f *Factory) CreateStore(ctx context.Context, cfg *config.Config) (ports.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}

	switch BackendType(cfg.DataBackend) {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case MemoryBackend:
		store := memory.NewFromFiles(cfg.SeedDir)
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed_dir", cfg.SeedDir)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
