package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// PriceService defines the methods that the price handler requires.
type PriceService interface {
	Cryptos() []string
	GetSnapshot(ctx context.Context, crypto, fiat string, forceRefresh bool) (domain.Snapshot, error)
	PriceHistory(ctx context.Context, crypto string, since time.Time) ([]domain.Quote, error)
}

// PriceHandler serves aggregated venue prices.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

var hundred = decimal.NewFromInt(100)

type quoteView struct {
	Exchange      string              `json:"exchange"`
	DisplayName   string              `json:"display_name"`
	Kind          domain.VenueKind    `json:"kind"`
	Crypto        string              `json:"crypto"`
	Fiat          string              `json:"fiat"`
	BuyPrice      decimal.Decimal     `json:"buy_price"`
	SellPrice     decimal.Decimal     `json:"sell_price"`
	Spread        decimal.Decimal     `json:"spread"`
	SpreadPercent decimal.Decimal     `json:"spread_percent"`
	Volume24h     decimal.NullDecimal `json:"volume_24h"`
	DataSource    domain.Tier         `json:"data_source"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func newQuoteView(q domain.Quote) quoteView {
	pct := decimal.Zero
	if q.BuyPrice.IsPositive() {
		pct = q.Spread().Div(q.BuyPrice).Mul(hundred).RoundBank(2)
	}
	return quoteView{
		Exchange:      q.Venue,
		DisplayName:   q.DisplayName,
		Kind:          q.Kind,
		Crypto:        q.Crypto,
		Fiat:          q.Fiat,
		BuyPrice:      q.BuyPrice,
		SellPrice:     q.SellPrice,
		Spread:        q.Spread().RoundBank(2),
		SpreadPercent: pct,
		Volume24h:     q.Volume24h,
		DataSource:    q.Tier,
		UpdatedAt:     q.ObservedAt,
	}
}

type snapshotView struct {
	Crypto           string                 `json:"crypto"`
	Fiat             string                 `json:"fiat"`
	DataAvailable    bool                   `json:"data_available"`
	DataSource       domain.DataSource      `json:"data_source"`
	Exchanges        []quoteView            `json:"exchanges"`
	BestBuy          *quoteView             `json:"best_buy"`
	BestSell         *quoteView             `json:"best_sell"`
	MaxSpread        decimal.Decimal        `json:"max_spread"`
	MaxSpreadPercent decimal.Decimal        `json:"max_spread_percent"`
	ExchangeStatuses map[string]domain.Tier `json:"exchange_statuses"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func newSnapshotView(s domain.Snapshot) snapshotView {
	v := snapshotView{
		Crypto:           s.Crypto,
		Fiat:             s.Fiat,
		DataAvailable:    s.HasData(),
		DataSource:       s.DataSource(),
		Exchanges:        make([]quoteView, 0, len(s.Quotes)),
		ExchangeStatuses: s.Statuses,
		UpdatedAt:        s.GeneratedAt,
	}
	for _, q := range s.Quotes {
		v.Exchanges = append(v.Exchanges, newQuoteView(q))
	}
	if s.BestBuy != nil {
		qv := newQuoteView(*s.BestBuy)
		v.BestBuy = &qv
	}
	if s.BestSell != nil {
		qv := newQuoteView(*s.BestSell)
		v.BestSell = &qv
	}
	if s.BestBuy != nil && s.BestSell != nil {
		spread := s.BestSell.SellPrice.Sub(s.BestBuy.BuyPrice)
		v.MaxSpread = spread.RoundBank(2)
		v.MaxSpreadPercent = spread.Div(s.BestBuy.BuyPrice).Mul(hundred).RoundBank(2)
	}
	return v
}

// GetPrices returns the snapshot of one crypto.
// GET /api/prices/{crypto}?fiat=NGN&refresh=true
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	snap, err := h.prices.GetSnapshot(r.Context(), r.PathValue("crypto"), r.URL.Query().Get("fiat"), refresh)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get prices")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(snap))
}

// ListPrices returns a snapshot per supported crypto. A crypto whose snapshot
// cannot be built is reported with data_available=false.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]snapshotView)
	for _, c := range h.prices.Cryptos() {
		snap, err := h.prices.GetSnapshot(r.Context(), c, "", false)
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: snapshot failed",
				slog.String("crypto", c),
				slog.String("error", err.Error()),
			)
			snap = domain.Snapshot{Crypto: c}
		}
		out[c] = newSnapshotView(snap)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cryptos": h.prices.Cryptos(),
		"prices":  out,
	})
}

// PriceHistory returns persisted quotes for one crypto.
// GET /api/prices/{crypto}/history?hours=24
func (h *PriceHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24, 24*30)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	quotes, err := h.prices.PriceHistory(r.Context(), r.PathValue("crypto"), since)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get price history")
		return
	}
	views := make([]quoteView, 0, len(quotes))
	for _, q := range quotes {
		views = append(views, newQuoteView(q))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  since,
		"quotes": views,
	})
}
