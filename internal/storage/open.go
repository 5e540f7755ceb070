package storage

import (
	"context"
	"fmt"

	"github.com/BuzzLyutic/taskboard/internal/config"
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "bolt", "":
		return OpenBolt(cfg.BoltPath)
	case "redis":
		return OpenRedis(cfg.RedisURL, cfg.RedisPrefix)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
