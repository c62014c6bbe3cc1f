package domain

import (
	"context"
	"time"
)

// Cache is a key-scoped byte store with per-key expiry. Get returns
// ErrNotFound for absent or expired keys. A ttl of zero means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RateLimiter provides keyed request limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides mutual exclusion across scanner replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides fire-and-forget pub/sub used to stream scanner output.
// Channel names ending in '*' subscribe by prefix.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

// Message is one payload received from a SignalBus subscription.
type Message struct {
	Channel string
	Payload []byte
}
