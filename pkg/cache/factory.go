package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
)

const redisPingTimeout = 3 * time.Second

// NewCache creates the cache backend selected in cfg.
// Any backend that fails to initialise falls back to the in-memory cache.
func NewCache(ctx context.Context, cfg config.CacheConfig) Cache {
	switch cfg.Backend {
	case "file":
		fileCache, err := NewFileCache(cfg.FilePath)
		if err != nil {
			logging.Logger.Warn("Failed to create file-based cache, falling back to memory cache",
				zap.String("path", cfg.FilePath),
				zap.Error(err))
			return NewMemoryCache()
		}
		logging.Logger.Info("Initialized file-based cache", zap.String("path", cfg.FilePath))
		return fileCache

	case "lru":
		lruCache, err := NewLRUCache(cfg.MaxEntries)
		if err != nil {
			logging.Logger.Warn("Failed to create LRU cache, falling back to memory cache",
				zap.Int("max_entries", cfg.MaxEntries),
				zap.Error(err))
			return NewMemoryCache()
		}
		logging.Logger.Info("Initialized LRU cache", zap.Int("max_entries", cfg.MaxEntries))
		return lruCache

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisCache := NewRedisCache(client, WithPrefix(cfg.Redis.Prefix))

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			logging.Logger.Warn("Redis unavailable, falling back to memory cache",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
			_ = redisCache.Close()
			return NewMemoryCache()
		}
		logging.Logger.Info("Initialized redis cache",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("prefix", cfg.Redis.Prefix))
		return redisCache
	}

	logging.Logger.Info("Initialized in-memory cache")
	return NewMemoryCache()
}
