package storage

import (
	"context"
	"fmt"

	"github.com/brizzai/linkedin-link/internal/config"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/storage/bolt"
	"github.com/brizzai/linkedin-link/internal/storage/postgres"
	"github.com/brizzai/linkedin-link/internal/storage/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Open opens the configured backend.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageBackendBolt, "":
		return bolt.Open(cfg.Path)
	case config.StorageBackendSQLite:
		return sqlite.Open(cfg.Path)
	case config.StorageBackendPostgres:
		return postgres.Open(ctx, cfg.DSN, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// NewStore opens the configured backend and closes it when the app stops.
func NewStore(lc fx.Lifecycle, cfg *config.StorageConfig) (Store, error) {
	store, err := Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(store.Close))
	logger.Info("Opened linked account storage", zap.String("backend", string(cfg.Backend)))
	return store, nil
}

// Module provides the linked account store
var Module = fx.Module("storage",
	fx.Provide(NewStore),
)
