package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SetJSON stores v encoded as JSON under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// GetJSON decodes the value at key into dst. A value that does not decode
// is reported as absent rather than as an error.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	data, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, nil
	}
	return true, nil
}
