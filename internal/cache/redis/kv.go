package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// keyPrefix namespaces every scanner key so a shared Redis can be used.
const keyPrefix = "arbscan:"

// KV implements domain.Cache using plain Redis strings with per-key expiry.
type KV struct {
	rdb *redis.Client
}

// NewKV creates a KV backed by the given Client.
func NewKV(c *Client) *KV {
	return &KV{rdb: c.Underlying()}
}

func kvKey(key string) string {
	return keyPrefix + key
}

// Get returns the stored bytes for key, or domain.ErrNotFound.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := kv.rdb.Get(ctx, kvKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value under key. A zero ttl keeps the key until deleted.
func (kv *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := kv.rdb.Set(ctx, kvKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present and unexpired.
func (kv *KV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := kv.rdb.Exists(ctx, kvKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := kv.rdb.Del(ctx, kvKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Cache = (*KV)(nil)
