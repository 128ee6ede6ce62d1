package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
)

// MakeCache picks a backend from configuration: Redis when an address is
// set, then Azure Blob Storage, then files under cfg.Dir.
func MakeCache(cfg config.CacheConfig) (ListCache, error) {
	if cfg.RedisAddr != "" {
		slog.Info("Using Redis for cache", "addr", cfg.RedisAddr)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		return NewRedisCache(client, "mavshop:"), nil
	}

	if cfg.AzureAccountName != "" {
		slog.Info("Using Azure Blob Storage for cache", "container", cfg.AzureContainer)
		return NewBlobCache(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
	}

	slog.Info("Using file cache", "dir", cfg.Dir)
	return NewFileCache(cfg.Dir), nil
}

// Ready reports whether a networked backend is reachable. Local backends are
// always ready.
func Ready(ctx context.Context, c Cache) error {
	if r, ok := c.(interface{ Ready(context.Context) error }); ok {
		return r.Ready(ctx)
	}
	return nil
}
