// Package cache provides the lookup cache used by the authenticator and
// other hot read paths. Three backends: Redis for shared deployments, an
// in-process LRU for single-node use, and a no-op for graceful degradation.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not present in the cache.
var ErrNotFound = errors.New("key not found in cache")

// Cache defines the caching operations. Values are JSON-serialized by the
// backends; Get unmarshals into value, which must be a pointer.
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
}

// RedisConfig holds the connection settings for the Redis backend.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "redis", "memory", "none".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// New builds a Cache for the configured backend. Unknown backends fall back
// to the no-op cache so a misconfigured cache never takes the service down.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg.Redis)
	case "memory":
		size := cfg.MaxSize
		if size <= 0 {
			size = 1024
		}
		return NewMemoryCache(size)
	default:
		return NewNoopCache(), nil
	}
}
