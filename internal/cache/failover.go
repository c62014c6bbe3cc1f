// Package cache composes the Redis and in-process stores into the cache the
// scanner runs on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
)

// DefaultRetryAfter is how long the primary is skipped after a failure.
const DefaultRetryAfter = 30 * time.Second

// Failover implements domain.Cache over a primary and a secondary store.
// Writes go to both so the secondary is warm when the primary drops. Reads
// prefer the primary; after a primary error it is skipped for RetryAfter.
// A primary miss is answered from the secondary, which holds anything
// written while the primary was skipped.
type Failover struct {
	primary    domain.Cache
	secondary  domain.Cache
	retryAfter time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	downUntil time.Time
	now       func() time.Time
}

// NewFailover creates a Failover. primary may be nil, in which case every
// operation goes to secondary.
func NewFailover(primary, secondary domain.Cache, retryAfter time.Duration, logger *slog.Logger) *Failover {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &Failover{
		primary:    primary,
		secondary:  secondary,
		retryAfter: retryAfter,
		logger:     logger.With(slog.String("component", "cache_failover")),
		now:        time.Now,
	}
}

func (f *Failover) primaryUp() bool {
	if f.primary == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.now().Before(f.downUntil)
}

func (f *Failover) markDown(op string, err error) {
	f.mu.Lock()
	wasUp := !f.now().Before(f.downUntil)
	f.downUntil = f.now().Add(f.retryAfter)
	f.mu.Unlock()

	metrics.CacheFailover.WithLabelValues(op).Inc()
	if wasUp {
		f.logger.Warn("primary cache failed, using secondary",
			slog.String("op", op),
			slog.Duration("retry_after", f.retryAfter),
			slog.String("error", err.Error()),
		)
	}
}

// Get reads from the primary, falling back to the secondary on a miss or
// an error.
func (f *Failover) Get(ctx context.Context, key string) ([]byte, error) {
	if f.primaryUp() {
		b, err := f.primary.Get(ctx, key)
		switch {
		case err == nil:
			return b, nil
		case errors.Is(err, domain.ErrNotFound):
			if f.secondary == nil {
				return nil, err
			}
		default:
			f.markDown("get", err)
		}
	}
	if f.secondary == nil {
		return nil, domain.ErrCacheUnavailable
	}
	b, err := f.secondary.Get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return b, err
}

// Set writes to both stores. It fails only when neither accepted the value.
func (f *Failover) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var primaryErr, secondaryErr error
	stored := false

	if f.primaryUp() {
		if primaryErr = f.primary.Set(ctx, key, value, ttl); primaryErr != nil {
			f.markDown("set", primaryErr)
		} else {
			stored = true
		}
	}
	if f.secondary != nil {
		if secondaryErr = f.secondary.Set(ctx, key, value, ttl); secondaryErr == nil {
			stored = true
		}
	}
	if !stored {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, errors.Join(primaryErr, secondaryErr))
	}
	return nil
}

// Exists checks the primary, then the secondary when the primary has no
// entry or fails.
func (f *Failover) Exists(ctx context.Context, key string) (bool, error) {
	if f.primaryUp() {
		ok, err := f.primary.Exists(ctx, key)
		switch {
		case err == nil && (ok || f.secondary == nil):
			return ok, nil
		case err != nil:
			f.markDown("exists", err)
		}
	}
	if f.secondary == nil {
		return false, domain.ErrCacheUnavailable
	}
	ok, err := f.secondary.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return ok, nil
}

// Delete removes key from both stores.
func (f *Failover) Delete(ctx context.Context, key string) error {
	var errs []error
	if f.primaryUp() {
		if err := f.primary.Delete(ctx, key); err != nil {
			f.markDown("delete", err)
			errs = append(errs, err)
		}
	}
	if f.secondary != nil {
		if err := f.secondary.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if f.secondary == nil && len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, errors.Join(errs...))
	}
	return nil
}

// Compile-time interface check.
var _ domain.Cache = (*Failover)(nil)
