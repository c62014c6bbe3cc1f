// Package service exposes the scanner's read and evaluate operations to the
// HTTP layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/pipeline"
)

// SnapshotSource is the aggregator as seen by the service.
type SnapshotSource interface {
	Cryptos() []string
	Fiat() string
	CheckPair(crypto, fiat string) (string, string, error)
	Aggregate(ctx context.Context, crypto, fiat string, bypassCache bool) (domain.Snapshot, error)
}

// Evaluator is the arbitrage calculator as seen by the service.
type Evaluator interface {
	Evaluate(buyVenue, sellVenue string, buyPrice, sellPrice decimal.Decimal, crypto string, fiatAmount decimal.Decimal) (domain.Opportunity, error)
	FindOpportunities(snap domain.Snapshot, minSpreadPercent, fiatAmount decimal.Decimal) ([]domain.Opportunity, error)
}

// FeeTable is the fee schedule as seen by the service.
type FeeTable interface {
	EntryOrDefault(venue string) domain.FeeEntry
}

// VenueLister lists the configured venues.
type VenueLister interface {
	Venues() []domain.Venue
}

// ScannerService answers price and opportunity queries. History stores are
// optional.
type ScannerService struct {
	snapshots SnapshotSource
	calc      Evaluator
	fees      FeeTable
	venues    VenueLister
	cache     domain.Cache
	quotes    domain.QuoteStore
	history   domain.OpportunityStore
	logger    *slog.Logger
}

// NewScannerService creates a ScannerService. quotes and history may be nil.
func NewScannerService(
	snapshots SnapshotSource,
	calc Evaluator,
	fees FeeTable,
	venues VenueLister,
	cache domain.Cache,
	quotes domain.QuoteStore,
	history domain.OpportunityStore,
	logger *slog.Logger,
) *ScannerService {
	return &ScannerService{
		snapshots: snapshots,
		calc:      calc,
		fees:      fees,
		venues:    venues,
		cache:     cache,
		quotes:    quotes,
		history:   history,
		logger:    logger.With(slog.String("component", "scanner_service")),
	}
}

// Cryptos lists the supported crypto symbols.
func (s *ScannerService) Cryptos() []string { return s.snapshots.Cryptos() }

// GetSnapshot returns the aggregated prices for crypto. An empty fiat means
// the configured fiat.
func (s *ScannerService) GetSnapshot(ctx context.Context, crypto, fiat string, forceRefresh bool) (domain.Snapshot, error) {
	snap, err := s.snapshots.Aggregate(ctx, crypto, fiat, forceRefresh)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("scanner_service: snapshot %s: %w", crypto, err)
	}
	return snap, nil
}

// OpportunityResult is a ranked opportunity list plus whether any snapshot
// had data.
type OpportunityResult struct {
	Opportunities []domain.Opportunity
	DataAvailable bool
}

// FindOpportunities evaluates crypto's snapshot, or every crypto's when crypto
// is empty, and returns at most limit opportunities in rank order.
// Unprofitable candidates are kept with Profitable unset.
func (s *ScannerService) FindOpportunities(ctx context.Context, crypto string, minSpreadPercent, fiatAmount decimal.Decimal, limit int) (OpportunityResult, error) {
	if !fiatAmount.IsPositive() {
		return OpportunityResult{}, fmt.Errorf("scanner_service: amount must be positive: %w", domain.ErrInvalidInput)
	}
	if minSpreadPercent.IsNegative() {
		return OpportunityResult{}, fmt.Errorf("scanner_service: min spread must not be negative: %w", domain.ErrInvalidInput)
	}

	cryptos := s.snapshots.Cryptos()
	if crypto != "" {
		c, _, err := s.snapshots.CheckPair(crypto, "")
		if err != nil {
			return OpportunityResult{}, err
		}
		cryptos = []string{c}
	}

	res := OpportunityResult{Opportunities: []domain.Opportunity{}}
	var failures []error
	for _, c := range cryptos {
		snap, err := s.snapshots.Aggregate(ctx, c, "", false)
		if err != nil {
			s.logger.WarnContext(ctx, "snapshot unavailable",
				slog.String("crypto", c),
				slog.String("error", err.Error()),
			)
			failures = append(failures, err)
			continue
		}
		if !snap.HasData() {
			continue
		}
		res.DataAvailable = true
		opps, err := s.calc.FindOpportunities(snap, minSpreadPercent, fiatAmount)
		if err != nil {
			return OpportunityResult{}, fmt.Errorf("scanner_service: opportunities %s: %w", c, err)
		}
		res.Opportunities = append(res.Opportunities, opps...)
	}
	if len(failures) == len(cryptos) && len(failures) > 0 {
		return OpportunityResult{}, fmt.Errorf("scanner_service: no snapshot available: %w", errors.Join(failures...))
	}

	arbitrage.Rank(res.Opportunities)
	res.Opportunities = arbitrage.Top(res.Opportunities, limit)
	return res, nil
}

// EvaluatePair prices a single buy/sell venue pair from the current snapshot.
// It returns domain.ErrNotFound when either venue has no admitted quote.
func (s *ScannerService) EvaluatePair(ctx context.Context, buyVenue, sellVenue, crypto string, fiatAmount decimal.Decimal) (domain.Opportunity, error) {
	buyVenue, sellVenue = strings.TrimSpace(buyVenue), strings.TrimSpace(sellVenue)
	if buyVenue == "" || sellVenue == "" || buyVenue == sellVenue {
		return domain.Opportunity{}, fmt.Errorf("scanner_service: need two distinct venues: %w", domain.ErrInvalidInput)
	}
	if !fiatAmount.IsPositive() {
		return domain.Opportunity{}, fmt.Errorf("scanner_service: amount must be positive: %w", domain.ErrInvalidInput)
	}

	snap, err := s.GetSnapshot(ctx, crypto, "", false)
	if err != nil {
		return domain.Opportunity{}, err
	}
	buy, ok := snap.Quote(buyVenue)
	if !ok {
		return domain.Opportunity{}, fmt.Errorf("scanner_service: no %s quote on %s: %w", snap.Crypto, buyVenue, domain.ErrNotFound)
	}
	sell, ok := snap.Quote(sellVenue)
	if !ok {
		return domain.Opportunity{}, fmt.Errorf("scanner_service: no %s quote on %s: %w", snap.Crypto, sellVenue, domain.ErrNotFound)
	}

	opp, err := s.calc.Evaluate(buy.Venue, sell.Venue, buy.BuyPrice, sell.SellPrice, snap.Crypto, fiatAmount)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("scanner_service: evaluate: %w", err)
	}
	opp.Fiat = snap.Fiat
	return opp, nil
}

// ListVenues returns every configured venue.
func (s *ScannerService) ListVenues() []domain.Venue {
	return s.venues.Venues()
}

// GetFeeSchedule returns the fee row for a configured venue, falling back to
// the default fees when the table has no row for it.
func (s *ScannerService) GetFeeSchedule(venue string) (domain.FeeEntry, error) {
	for _, v := range s.venues.Venues() {
		if v.ID == venue {
			return s.fees.EntryOrDefault(venue), nil
		}
	}
	return domain.FeeEntry{}, fmt.Errorf("scanner_service: venue %q: %w", venue, domain.ErrNotFound)
}

// TopOpportunities returns the ranked result of the last scheduler tick. Before
// the first tick it returns an empty result.
func (s *ScannerService) TopOpportunities(ctx context.Context) (pipeline.TopOpportunities, error) {
	top, err := pipeline.ReadTop(ctx, s.cache)
	if errors.Is(err, domain.ErrNotFound) {
		return pipeline.TopOpportunities{Opportunities: []domain.Opportunity{}}, nil
	}
	if err != nil {
		return pipeline.TopOpportunities{}, fmt.Errorf("scanner_service: top opportunities: %w", err)
	}
	return top, nil
}

// RecentOpportunities lists persisted opportunities, newest first.
func (s *ScannerService) RecentOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if s.history == nil {
		return nil, fmt.Errorf("scanner_service: opportunity history disabled: %w", domain.ErrNotFound)
	}
	opps, err := s.history.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("scanner_service: recent opportunities: %w", err)
	}
	return opps, nil
}

// PriceHistory lists persisted quotes for crypto observed after since.
func (s *ScannerService) PriceHistory(ctx context.Context, crypto string, since time.Time) ([]domain.Quote, error) {
	if s.quotes == nil {
		return nil, fmt.Errorf("scanner_service: price history disabled: %w", domain.ErrNotFound)
	}
	crypto, fiat, err := s.snapshots.CheckPair(crypto, "")
	if err != nil {
		return nil, err
	}
	quotes, err := s.quotes.ListHistory(ctx, crypto, fiat, since)
	if err != nil {
		return nil, fmt.Errorf("scanner_service: price history %s: %w", crypto, err)
	}
	return quotes, nil
}
