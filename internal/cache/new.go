package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const pingTimeout = 3 * time.Second

// New selects the cache backend once. A reachable Redis at redisURL wins;
// an empty URL or a failed PING yields a MemoryCache, so callers never branch.
// Only a malformed URL is an error.
func New(ctx context.Context, redisURL string) (Cache, error) {
	if redisURL == "" {
		slog.Warn("REDIS_URL not set, using in-memory cache")
		return NewMemoryCache(), nil
	}

	rc, err := NewRedisCache(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		slog.Warn("redis unreachable, falling back to in-memory cache", "error", err)
		_ = rc.Close()
		return NewMemoryCache(), nil
	}

	slog.Info("connected to redis")
	return rc, nil
}
