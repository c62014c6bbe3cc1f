// Package aggregator builds one snapshot per crypto/fiat pair by querying
// every venue concurrently and resolving each through the live, cached and
// sample tiers.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/fallback"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
)

// Options configures an Aggregator.
type Options struct {
	Cryptos      []string
	Fiat         string
	VenueTimeout time.Duration
}

// Aggregator implements the price aggregation pipeline. It is safe for
// concurrent use; each venue's cache slot is only written by that venue's
// resolution.
type Aggregator struct {
	sources   []domain.PriceSource
	store     *fallback.Store
	validator *Validator
	cryptos   map[string]bool
	fiat      string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Aggregator over sources, which are queried and reported in
// venue id order.
func New(sources []domain.PriceSource, store *fallback.Store, validator *Validator, opts Options, logger *slog.Logger) *Aggregator {
	sorted := append([]domain.PriceSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Venue().ID < sorted[j].Venue().ID })

	cryptos := make(map[string]bool, len(opts.Cryptos))
	for _, c := range opts.Cryptos {
		cryptos[strings.ToUpper(c)] = true
	}
	return &Aggregator{
		sources:   sorted,
		store:     store,
		validator: validator,
		cryptos:   cryptos,
		fiat:      strings.ToUpper(opts.Fiat),
		timeout:   opts.VenueTimeout,
		logger:    logger.With(slog.String("component", "aggregator")),
		now:       time.Now,
	}
}

// Cryptos returns the configured crypto symbols, sorted.
func (a *Aggregator) Cryptos() []string {
	out := make([]string, 0, len(a.cryptos))
	for c := range a.cryptos {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Fiat returns the configured fiat symbol.
func (a *Aggregator) Fiat() string { return a.fiat }

// CheckPair normalises crypto and fiat and rejects unsupported symbols with
// domain.ErrInvalidInput.
func (a *Aggregator) CheckPair(crypto, fiat string) (string, string, error) {
	crypto, fiat = strings.ToUpper(strings.TrimSpace(crypto)), strings.ToUpper(strings.TrimSpace(fiat))
	if fiat == "" {
		fiat = a.fiat
	}
	if !a.cryptos[crypto] {
		return "", "", fmt.Errorf("aggregator: unsupported crypto %q: %w", crypto, domain.ErrInvalidInput)
	}
	if fiat != a.fiat {
		return "", "", fmt.Errorf("aggregator: unsupported fiat %q: %w", fiat, domain.ErrInvalidInput)
	}
	return crypto, fiat, nil
}

// Aggregate returns the snapshot for crypto/fiat. Unless bypassCache is set a
// cached snapshot is returned when present. Partial venue failure is never an
// error; the error is non-nil only for unsupported symbols or when both cache
// tiers are unavailable.
func (a *Aggregator) Aggregate(ctx context.Context, crypto, fiat string, bypassCache bool) (domain.Snapshot, error) {
	crypto, fiat, err := a.CheckPair(crypto, fiat)
	if err != nil {
		return domain.Snapshot{}, err
	}

	if !bypassCache {
		snap, err := a.store.GetSnapshot(ctx, crypto, fiat)
		switch {
		case err == nil:
			return snap, nil
		case errors.Is(err, domain.ErrCacheUnavailable):
			return domain.Snapshot{}, fmt.Errorf("aggregator: %s/%s: %w", crypto, fiat, err)
		}
	}

	start := a.now()
	results := make([]domain.Quote, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			q, err := a.resolve(gctx, src, crypto, fiat)
			if err != nil {
				return err
			}
			results[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("aggregator: %s/%s: %w", crypto, fiat, err)
	}

	snap := buildSnapshot(crypto, fiat, a.sources, results, a.now().UTC())
	metrics.AggregateDuration.WithLabelValues(crypto).Observe(time.Since(start).Seconds())

	if snap.HasData() {
		if err := a.store.PutSnapshot(ctx, snap); err != nil {
			a.logger.WarnContext(ctx, "cache snapshot failed",
				slog.String("crypto", crypto),
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.DebugContext(ctx, "aggregated",
		slog.String("crypto", crypto),
		slog.Int("quotes", len(snap.Quotes)),
		slog.String("data_source", string(snap.DataSource())),
		slog.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// resolve walks the tiers for one venue. The returned quote has Tier
// unavailable when every tier missed. The only error is
// domain.ErrCacheUnavailable.
func (a *Aggregator) resolve(ctx context.Context, src domain.PriceSource, crypto, fiat string) (domain.Quote, error) {
	v := src.Venue()
	log := a.logger.With(slog.String("venue", v.ID), slog.String("crypto", crypto))

	// Tier 1: live.
	q, err := a.fetchLive(ctx, src, crypto, fiat)
	if err == nil {
		if perr := a.store.PutQuote(ctx, q); perr != nil {
			log.WarnContext(ctx, "cache quote failed", slog.String("error", perr.Error()))
		}
		return a.admit(q, domain.TierLive), nil
	}
	if !errors.Is(err, domain.ErrNoLiveSource) {
		log.DebugContext(ctx, "live quote unavailable", slog.String("error", err.Error()))
	}

	// Tier 2: cache.
	cached, err := a.store.GetQuote(ctx, v.ID, crypto, fiat)
	switch {
	case err == nil:
		if verr := a.validator.Validate(cached); verr == nil {
			return a.admit(cached, domain.TierCached), nil
		}
	case errors.Is(err, domain.ErrCacheUnavailable):
		return domain.Quote{}, err
	}

	// Tier 3: sample.
	if sample, ok := a.store.Sample(v, crypto, fiat, a.now().UTC()); ok {
		return a.admit(sample, domain.TierSample), nil
	}

	metrics.VenueQuotes.WithLabelValues(v.ID, string(domain.TierUnavailable)).Inc()
	return domain.Quote{Venue: v.ID, DisplayName: v.DisplayName, Kind: v.Kind, Tier: domain.TierUnavailable}, nil
}

// fetchLive calls the source under the per-venue deadline and validates the
// result.
func (a *Aggregator) fetchLive(ctx context.Context, src domain.PriceSource, crypto, fiat string) (domain.Quote, error) {
	vctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	q, err := src.GetQuote(vctx, crypto, fiat)
	if err != nil {
		return domain.Quote{}, err
	}

	v := src.Venue()
	q.Venue, q.DisplayName, q.Kind = v.ID, v.DisplayName, v.Kind
	q.Crypto, q.Fiat = crypto, fiat
	if q.ObservedAt.IsZero() {
		q.ObservedAt = a.now().UTC()
	}
	q.Tier = domain.TierLive

	if err := a.validator.Validate(q); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

func (a *Aggregator) admit(q domain.Quote, tier domain.Tier) domain.Quote {
	q.Tier = tier
	metrics.VenueQuotes.WithLabelValues(q.Venue, string(tier)).Inc()
	return q
}

// buildSnapshot assembles the admitted quotes in source order and picks the
// best buy and sell.
func buildSnapshot(crypto, fiat string, sources []domain.PriceSource, results []domain.Quote, at time.Time) domain.Snapshot {
	snap := domain.Snapshot{
		Crypto:      crypto,
		Fiat:        fiat,
		Quotes:      make([]domain.Quote, 0, len(results)),
		Statuses:    make(map[string]domain.Tier, len(sources)),
		GeneratedAt: at,
	}
	for i, src := range sources {
		q := results[i]
		snap.Statuses[src.Venue().ID] = q.Tier
		if q.Tier != domain.TierUnavailable {
			snap.Quotes = append(snap.Quotes, q)
		}
	}

	for i := range snap.Quotes {
		q := snap.Quotes[i]
		if snap.BestBuy == nil || betterBuy(q, *snap.BestBuy) {
			snap.BestBuy = &snap.Quotes[i]
		}
		if snap.BestSell == nil || betterSell(q, *snap.BestSell) {
			snap.BestSell = &snap.Quotes[i]
		}
	}
	if snap.BestBuy != nil {
		bb, bs := *snap.BestBuy, *snap.BestSell
		snap.BestBuy, snap.BestSell = &bb, &bs
	}
	return snap
}

func betterBuy(a, b domain.Quote) bool {
	if c := a.BuyPrice.Cmp(b.BuyPrice); c != 0 {
		return c < 0
	}
	return earlier(a, b)
}

func betterSell(a, b domain.Quote) bool {
	if c := a.SellPrice.Cmp(b.SellPrice); c != 0 {
		return c > 0
	}
	return earlier(a, b)
}

// earlier breaks price ties by earliest observation, then venue id.
func earlier(a, b domain.Quote) bool {
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.Before(b.ObservedAt)
	}
	return a.Venue < b.Venue
}
