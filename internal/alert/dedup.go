package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// DedupKey identifies one (user, venue pair, crypto) notification slot.
func DedupKey(userID, buyVenue, sellVenue, crypto string) string {
	return strings.Join([]string{"alertdedup", userID, buyVenue, sellVenue, crypto}, ":")
}

// Dedup suppresses repeat alerts for the same key within a cooldown. Entries
// live in the shared cache so every scanner replica sees the same window.
type Dedup struct {
	cache    domain.Cache
	cooldown time.Duration
}

// NewDedup creates a Dedup that considers a key a duplicate if it was claimed
// within cooldown.
func NewDedup(cache domain.Cache, cooldown time.Duration) *Dedup {
	return &Dedup{cache: cache, cooldown: cooldown}
}

// Claim returns true and starts the cooldown if key has no live entry. It
// returns false if the key was claimed within the cooldown.
func (d *Dedup) Claim(ctx context.Context, key string) (bool, error) {
	held, err := d.cache.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("alert: dedup check %s: %w", key, err)
	}
	if held {
		return false, nil
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := d.cache.Set(ctx, key, stamp, d.cooldown); err != nil {
		return false, fmt.Errorf("alert: dedup set %s: %w", key, err)
	}
	return true, nil
}

// Release drops key so the next tick may retry it.
func (d *Dedup) Release(ctx context.Context, key string) error {
	if err := d.cache.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("alert: dedup release %s: %w", key, err)
	}
	return nil
}
