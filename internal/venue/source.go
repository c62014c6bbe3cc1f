package venue

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Config declares one venue and the source that quotes it.
type Config struct {
	ID            string
	Name          string
	Kind          domain.VenueKind
	Source        string
	BaseURL       string
	RatePerSecond float64
	Burst         int
}

// Offline is the source of venues without a live integration. It always
// fails with domain.ErrNoLiveSource so quotes resolve from cache or samples.
type Offline struct {
	venue domain.Venue
}

// NewOffline creates an Offline source.
func NewOffline(v domain.Venue) *Offline {
	v.LiveSource = false
	return &Offline{venue: v}
}

// Venue returns the venue metadata.
func (o *Offline) Venue() domain.Venue { return o.venue }

// GetQuote always returns domain.ErrNoLiveSource.
func (o *Offline) GetQuote(context.Context, string, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNoLiveSource
}

// New builds the PriceSource selected by cfg.Source.
func New(cfg Config) (domain.PriceSource, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("venue %s: invalid kind %q: %w", cfg.ID, cfg.Kind, domain.ErrInvalidInput)
	}
	v := domain.Venue{ID: cfg.ID, DisplayName: cfg.Name, Kind: cfg.Kind}
	if v.DisplayName == "" {
		v.DisplayName = cfg.ID
	}

	switch cfg.Source {
	case "quidax":
		return NewQuidax(v, cfg.BaseURL, cfg.RatePerSecond, cfg.Burst), nil
	case "luno":
		return NewLuno(v, cfg.BaseURL, cfg.RatePerSecond, cfg.Burst), nil
	case "binance_p2p":
		return NewBinanceP2P(v, cfg.BaseURL, cfg.RatePerSecond, cfg.Burst), nil
	case "bybit_p2p":
		return NewBybitP2P(v, cfg.BaseURL, cfg.RatePerSecond, cfg.Burst), nil
	case "none", "":
		return NewOffline(v), nil
	default:
		return nil, fmt.Errorf("venue %s: unknown source %q: %w", cfg.ID, cfg.Source, domain.ErrInvalidInput)
	}
}

// BuildRegistry creates a source for every config and registers it.
func BuildRegistry(cfgs []Config) (*Registry, error) {
	r := NewRegistry()
	for _, c := range cfgs {
		src, err := New(c)
		if err != nil {
			return nil, err
		}
		r.Register(src)
	}
	return r, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Offline)(nil)
