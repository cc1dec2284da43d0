package state

import (
	"context"
	"fmt"

	"github.com/brizzai/linkedin-link/internal/config"
	"github.com/brizzai/linkedin-link/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore builds the configured backend and ties its shutdown to the app lifecycle.
func NewStore(lc fx.Lifecycle, cfg *config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case config.StateBackendMemory, "":
		store := NewMemoryStore()
		lc.Append(fx.StopHook(store.Stop))
		logger.Info("Using in-memory state store", zap.Duration("ttl", cfg.TTL))
		return store, nil
	case config.StateBackendRedis:
		client, err := NewRedisClient(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(client.Close))
		logger.Info("Using redis state store", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
		return NewRedisStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.Backend)
	}
}

// Module provides the state store
var Module = fx.Module("state",
	fx.Provide(NewStore),
)
