// Package pipeline drives the periodic scan: aggregate every crypto, compute
// and rank opportunities, publish and persist the results, dispatch alerts,
// and prune old history.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
)

// SnapshotSource builds snapshots; *aggregator.Aggregator satisfies it.
type SnapshotSource interface {
	Cryptos() []string
	Fiat() string
	Aggregate(ctx context.Context, crypto, fiat string, bypassCache bool) (domain.Snapshot, error)
}

// OpportunityFinder evaluates a snapshot; *arbitrage.Calculator satisfies it.
type OpportunityFinder interface {
	FindOpportunities(snap domain.Snapshot, minSpreadPercent, fiatAmount decimal.Decimal) ([]domain.Opportunity, error)
}

// AlertDispatcher receives the profitable set of each tick.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, opps []domain.Opportunity) (int, error)
}

// SchedulerConfig holds the scan parameters.
type SchedulerConfig struct {
	Interval         time.Duration
	MinSpreadPercent decimal.Decimal
	FiatAmount       decimal.Decimal
	TopN             int
	TopTTL           time.Duration
}

// Deps are the scheduler's collaborators. Source, Finder and Cache are
// required; the rest are skipped when nil.
type Deps struct {
	Source   SnapshotSource
	Finder   OpportunityFinder
	Cache    domain.Cache
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Quotes   domain.QuoteStore
	History  domain.OpportunityStore
	Archiver domain.Archiver
	Alerts   AlertDispatcher
}

// TickResult summarises one scan.
type TickResult struct {
	TickID        string
	StartedAt     time.Time
	Skipped       bool
	Snapshots     []domain.Snapshot
	Opportunities []domain.Opportunity
	Failed        map[string]error
	AlertsSent    int
}

// Scheduler runs the scan on a fixed period.
type Scheduler struct {
	deps   Deps
	cfg    SchedulerConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(deps Deps, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.TopTTL <= 0 {
		cfg.TopTTL = 2 * cfg.Interval
	}
	return &Scheduler{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Run executes a tick immediately and then on every interval until ctx is
// cancelled. An in-flight tick is allowed to finish its venue calls before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Any("cryptos", s.deps.Source.Cryptos()),
	)

	s.runTick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	// Detached from shutdown so venue calls drain; bounded by one period.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Interval)
	defer cancel()

	res, err := s.Tick(tickCtx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scan tick failed",
			slog.String("tick_id", res.TickID),
			slog.String("error", err.Error()),
		)
	}
}

// Tick performs one scan. Per-crypto failures are reported in
// TickResult.Failed and never abort the other cryptos. The returned error is
// non-nil only when every crypto failed.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	res := TickResult{
		TickID:    uuid.NewString(),
		StartedAt: s.now().UTC(),
		Failed:    make(map[string]error),
	}
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, tickLockKey, s.cfg.Interval)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.DebugContext(ctx, "another replica holds the scan lock")
			res.Skipped = true
			return res, nil
		case err != nil:
			s.logger.WarnContext(ctx, "scan lock unavailable, scanning anyway",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	cryptos := s.deps.Source.Cryptos()
	fiat := s.deps.Source.Fiat()
	snaps := make([]*domain.Snapshot, len(cryptos))
	found := make([][]domain.Opportunity, len(cryptos))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for i, crypto := range cryptos {
		g.Go(func() error {
			snap, opps, err := s.scanCrypto(ctx, crypto, fiat)
			if err != nil {
				metrics.TickFailures.WithLabelValues(crypto).Inc()
				s.logger.WarnContext(ctx, "crypto scan failed",
					slog.String("crypto", crypto),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				res.Failed[crypto] = err
				mu.Unlock()
				return nil
			}
			snaps[i] = &snap
			found[i] = opps
			return nil
		})
	}
	_ = g.Wait()

	for i := range cryptos {
		if snaps[i] != nil {
			res.Snapshots = append(res.Snapshots, *snaps[i])
			res.Opportunities = append(res.Opportunities, found[i]...)
		}
	}
	arbitrage.Rank(res.Opportunities)
	for i := range res.Opportunities {
		res.Opportunities[i].ID = uuid.NewString()
	}

	if len(cryptos) > 0 && len(res.Failed) == len(cryptos) {
		return res, fmt.Errorf("pipeline: all %d cryptos failed", len(cryptos))
	}

	s.publish(ctx, res)
	s.persist(ctx, res)

	if s.deps.Alerts != nil && len(res.Opportunities) > 0 {
		sent, err := s.deps.Alerts.Dispatch(ctx, res.Opportunities)
		res.AlertsSent = sent
		if err != nil {
			s.logger.WarnContext(ctx, "alert dispatch had failures",
				slog.Int("sent", sent),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "scan tick complete",
		slog.String("tick_id", res.TickID),
		slog.Int("snapshots", len(res.Snapshots)),
		slog.Int("opportunities", len(res.Opportunities)),
		slog.Int("failed", len(res.Failed)),
		slog.Int("alerts_sent", res.AlertsSent),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// scanCrypto aggregates one crypto bypassing the snapshot cache and returns
// its profitable opportunities. A panic is converted to an error so it stays
// confined to this crypto.
func (s *Scheduler) scanCrypto(ctx context.Context, crypto, fiat string) (snap domain.Snapshot, opps []domain.Opportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: scan %s panicked: %v", crypto, r)
		}
	}()

	snap, err = s.deps.Source.Aggregate(ctx, crypto, fiat, true)
	if err != nil {
		return snap, nil, fmt.Errorf("pipeline: aggregate %s: %w", crypto, err)
	}
	all, err := s.deps.Finder.FindOpportunities(snap, s.cfg.MinSpreadPercent, s.cfg.FiatAmount)
	if err != nil {
		return snap, nil, fmt.Errorf("pipeline: find opportunities %s: %w", crypto, err)
	}
	opps = arbitrage.Profitable(all)
	metrics.Opportunities.WithLabelValues(crypto).Set(float64(len(opps)))
	return snap, opps, nil
}

// publish caches the top N and streams the tick to bus subscribers.
func (s *Scheduler) publish(ctx context.Context, res TickResult) {
	top := TopOpportunities{
		TickID:        res.TickID,
		GeneratedAt:   res.StartedAt,
		Opportunities: arbitrage.Top(res.Opportunities, s.cfg.TopN),
	}
	if top.Opportunities == nil {
		top.Opportunities = []domain.Opportunity{}
	}
	payload, err := json.Marshal(top)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode top opportunities", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Cache.Set(ctx, TopKey, payload, s.cfg.TopTTL); err != nil {
		s.logger.WarnContext(ctx, "cache top opportunities", slog.String("error", err.Error()))
	}

	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, ChannelOpportunities, payload); err != nil {
		s.logger.WarnContext(ctx, "publish opportunities", slog.String("error", err.Error()))
	}
	for _, snap := range res.Snapshots {
		b, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := s.deps.Bus.Publish(ctx, SnapshotChannel(snap.Crypto), b); err != nil {
			s.logger.WarnContext(ctx, "publish snapshot",
				slog.String("crypto", snap.Crypto),
				slog.String("error", err.Error()),
			)
		}
	}
}

// persist writes history rows and the cold-storage archive. Failures are
// logged; they never fail the tick.
func (s *Scheduler) persist(ctx context.Context, res TickResult) {
	if s.deps.Quotes != nil {
		for _, snap := range res.Snapshots {
			if !snap.HasData() {
				continue
			}
			if err := s.deps.Quotes.InsertSnapshot(ctx, snap); err != nil {
				s.logger.WarnContext(ctx, "persist quotes",
					slog.String("crypto", snap.Crypto),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if s.deps.History != nil && len(res.Opportunities) > 0 {
		if err := s.deps.History.InsertBatch(ctx, res.Opportunities); err != nil {
			s.logger.WarnContext(ctx, "persist opportunities", slog.String("error", err.Error()))
		}
	}
	if s.deps.Archiver != nil {
		path, err := s.deps.Archiver.ArchiveTick(ctx, domain.TickArchive{
			TickID:        res.TickID,
			StartedAt:     res.StartedAt,
			Snapshots:     res.Snapshots,
			Opportunities: res.Opportunities,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "archive tick", slog.String("error", err.Error()))
			return
		}
		s.logger.DebugContext(ctx, "tick archived", slog.String("path", path))
	}
}
