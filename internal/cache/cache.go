// Package cache stores encoded analysis results for a fixed time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/cyclehire/pkg/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// New builds the cache backend named in cfg and returns it together with the
// parsed entry TTL.
func New(cfg config.CacheData) (Cache, time.Duration, error) {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid cache ttl %q: %w", cfg.TTL, err)
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(), ttl, nil
	case "redis":
		if cfg.Redis == nil {
			return nil, 0, fmt.Errorf("redis cache selected but not configured")
		}
		return NewRedisCache(*cfg.Redis), ttl, nil
	default:
		return nil, 0, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
