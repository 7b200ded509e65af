package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Key generates a namespaced cache key
func Key(namespace, s string) string {
	hash := sha256.Sum256([]byte(s))
	return "evidex:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only, or memory in front of
// a disk or Redis layer. It returns nil when caching is disabled.
func New(cfg model.CacheConfig, logger *zap.Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	memory := NewMemoryCache(cfg.TTL, cfg.CleanupInterval, cfg.MaxEntries)

	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		logger.Debug("cache layer enabled", zap.String("layer", "redis"), zap.String("addr", cfg.RedisAddr))
		return NewLayeredCache(memory, NewRedisCache(client, cfg.TTL)), nil
	case cfg.Dir != "":
		dir := filepath.Clean(cfg.Dir)
		logger.Debug("cache layer enabled", zap.String("layer", "disk"), zap.String("dir", dir))
		return NewLayeredCache(memory, NewDiskCache(dir, cfg.TTL)), nil
	}

	return memory, nil
}
