package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// VenueKind distinguishes merchant-posted P2P markets from order-book exchanges.
type VenueKind string

const (
	VenueP2P      VenueKind = "p2p"
	VenueExchange VenueKind = "exchange"
)

// Valid reports whether k is a known venue kind.
func (k VenueKind) Valid() bool {
	return k == VenueP2P || k == VenueExchange
}

// Venue is the static metadata of a trading source.
type Venue struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Kind        VenueKind `json:"kind"`
	LiveSource  bool      `json:"live_source"`
}

// Tier records which resolution step produced a venue's quote.
type Tier string

const (
	TierLive        Tier = "live"
	TierCached      Tier = "cached"
	TierSample      Tier = "sample"
	TierUnavailable Tier = "unavailable"
)

// Quote is one venue's buy/sell price for a crypto/fiat pair. BuyPrice is what
// a user pays to acquire one unit of crypto; SellPrice is what a user receives
// when selling one unit.
type Quote struct {
	Venue       string              `json:"venue"`
	DisplayName string              `json:"display_name"`
	Kind        VenueKind           `json:"kind"`
	Crypto      string              `json:"crypto"`
	Fiat        string              `json:"fiat"`
	BuyPrice    decimal.Decimal     `json:"buy_price"`
	SellPrice   decimal.Decimal     `json:"sell_price"`
	Volume24h   decimal.NullDecimal `json:"volume_24h"`
	ObservedAt  time.Time           `json:"observed_at"`
	Tier        Tier                `json:"tier"`
}

// Spread returns SellPrice - BuyPrice.
func (q Quote) Spread() decimal.Decimal {
	return q.SellPrice.Sub(q.BuyPrice)
}

// PriceSource fetches a live quote from one venue. Implementations must honour
// ctx cancellation; the aggregator imposes a per-venue deadline.
type PriceSource interface {
	Venue() Venue
	GetQuote(ctx context.Context, crypto, fiat string) (Quote, error)
}
