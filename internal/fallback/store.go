// Package fallback holds the second and third resolution tiers: the per-venue
// quote cache and the static sample table. It also caches whole snapshots
// for read-heavy queries.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// QuoteKey is the cache key of one venue's last admitted quote.
func QuoteKey(venue, crypto, fiat string) string {
	return "quote:" + venue + ":" + strings.ToUpper(crypto) + ":" + strings.ToUpper(fiat)
}

// SnapshotKey is the cache key of the last aggregated snapshot for a pair.
func SnapshotKey(crypto, fiat string) string {
	return "snapshot:" + strings.ToUpper(crypto) + ":" + strings.ToUpper(fiat)
}

// Store reads and writes quotes and snapshots through a domain.Cache. Values
// are stored as JSON.
type Store struct {
	cache       domain.Cache
	quoteTTL    time.Duration
	snapshotTTL time.Duration
	samples     *SampleTable
}

// NewStore creates a Store. samples may be nil when no sample tier is
// configured.
func NewStore(cache domain.Cache, quoteTTL, snapshotTTL time.Duration, samples *SampleTable) *Store {
	return &Store{
		cache:       cache,
		quoteTTL:    quoteTTL,
		snapshotTTL: snapshotTTL,
		samples:     samples,
	}
}

// GetQuote returns the cached quote for the venue and pair, or an error
// wrapping domain.ErrNotFound. Cache backend failure wraps
// domain.ErrCacheUnavailable.
func (s *Store) GetQuote(ctx context.Context, venue, crypto, fiat string) (domain.Quote, error) {
	var q domain.Quote
	if err := s.get(ctx, QuoteKey(venue, crypto, fiat), &q); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

// PutQuote caches q under its venue and pair for the quote TTL.
func (s *Store) PutQuote(ctx context.Context, q domain.Quote) error {
	return s.put(ctx, QuoteKey(q.Venue, q.Crypto, q.Fiat), q, s.quoteTTL)
}

// GetSnapshot returns the cached snapshot for the pair.
func (s *Store) GetSnapshot(ctx context.Context, crypto, fiat string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := s.get(ctx, SnapshotKey(crypto, fiat), &snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// PutSnapshot caches snap for the snapshot TTL.
func (s *Store) PutSnapshot(ctx context.Context, snap domain.Snapshot) error {
	return s.put(ctx, SnapshotKey(snap.Crypto, snap.Fiat), snap, s.snapshotTTL)
}

// Sample returns the static sample quote for the venue and pair.
func (s *Store) Sample(v domain.Venue, crypto, fiat string, at time.Time) (domain.Quote, bool) {
	if s.samples == nil {
		return domain.Quote{}, false
	}
	return s.samples.Quote(v, crypto, fiat, at)
}

func (s *Store) get(ctx context.Context, key string, dst any) error {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("fallback: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A corrupt entry is a miss; the next live quote overwrites it.
		return fmt.Errorf("fallback: decode %s: %v: %w", key, err, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fallback: encode %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("fallback: set %s: %w", key, err)
	}
	return nil
}
