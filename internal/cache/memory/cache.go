// Package memory provides in-process implementations of the cache, lock, rate
// limiter and pub/sub interfaces. They back a single-process deployment and
// serve as the secondary behind Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// sweepEvery is the number of writes between expired-entry sweeps.
const sweepEvery = 256

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Cache implements domain.Cache with a mutex-guarded map. It is safe for
// concurrent use.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]entry
	writes int
	now    func() time.Time
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Get returns a copy of the stored bytes, or domain.ErrNotFound.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value under key.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	now := c.now()
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = e
	c.writes++
	if c.writes%sweepEvery == 0 {
		c.sweepLocked(now)
	}
	return nil
}

// Exists reports whether key is present and unexpired.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	return ok && !e.expired(c.now()), nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cleanup removes expired entries.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
}

func (c *Cache) sweepLocked(now time.Time) {
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}

// Compile-time interface check.
var _ domain.Cache = (*Cache)(nil)
