package venue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// binanceRows is the number of advertisements read per side.
const binanceRows = 10

// BinanceP2P reads the public advertisement search of Binance P2P.
type BinanceP2P struct {
	venue  domain.Venue
	client *restClient
	now    func() time.Time
}

// NewBinanceP2P creates a Binance P2P source. searchURL is the full
// advertisement search endpoint.
func NewBinanceP2P(v domain.Venue, searchURL string, perSecond float64, burst int) *BinanceP2P {
	v.LiveSource = true
	return &BinanceP2P{venue: v, client: newRESTClient(searchURL, perSecond, burst), now: time.Now}
}

type binanceSearchRequest struct {
	Asset         string   `json:"asset"`
	Fiat          string   `json:"fiat"`
	MerchantCheck bool     `json:"merchantCheck"`
	Page          int      `json:"page"`
	PayTypes      []string `json:"payTypes"`
	PublisherType *string  `json:"publisherType"`
	Rows          int      `json:"rows"`
	TradeType     string   `json:"tradeType"`
	TransAmount   string   `json:"transAmount"`
}

type binanceSearchResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    []struct {
		Adv struct {
			Price decimal.Decimal `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

// Venue returns the venue metadata.
func (b *BinanceP2P) Venue() domain.Venue { return b.venue }

// GetQuote searches both sides of the crypto/fiat market.
func (b *BinanceP2P) GetQuote(ctx context.Context, crypto, fiat string) (domain.Quote, error) {
	q, err := p2pQuote(ctx, b.venue, crypto, fiat, b.now(), b.fetchAds)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance_p2p: %w", err)
	}
	return q, nil
}

func (b *BinanceP2P) fetchAds(ctx context.Context, crypto, fiat string, side p2pSide) ([]decimal.Decimal, error) {
	tradeType := "BUY"
	if side == sideSell {
		tradeType = "SELL"
	}
	req := binanceSearchRequest{
		Asset:     strings.ToUpper(crypto),
		Fiat:      strings.ToUpper(fiat),
		Page:      1,
		PayTypes:  []string{},
		Rows:      binanceRows,
		TradeType: tradeType,
	}

	var resp binanceSearchResponse
	if err := b.client.postJSON(ctx, "", req, &resp); err != nil {
		return nil, fmt.Errorf("search %s ads: %w", side, err)
	}
	if resp.Code != "" && resp.Code != "000000" {
		return nil, fmt.Errorf("search %s ads: code %s: %s", side, resp.Code, resp.Message)
	}

	prices := make([]decimal.Decimal, 0, len(resp.Data))
	for _, ad := range resp.Data {
		prices = append(prices, ad.Adv.Price)
	}
	return prices, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*BinanceP2P)(nil)
