package venue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// BybitP2P reads the public online-items listing of Bybit P2P.
type BybitP2P struct {
	venue  domain.Venue
	client *restClient
	now    func() time.Time
}

// NewBybitP2P creates a Bybit P2P source. itemsURL is the full online-items
// endpoint.
func NewBybitP2P(v domain.Venue, itemsURL string, perSecond float64, burst int) *BybitP2P {
	v.LiveSource = true
	return &BybitP2P{venue: v, client: newRESTClient(itemsURL, perSecond, burst), now: time.Now}
}

type bybitItemsRequest struct {
	TokenID       string   `json:"tokenId"`
	CurrencyID    string   `json:"currencyId"`
	Side          string   `json:"side"` // "1" user buys, "0" user sells
	Size          string   `json:"size"`
	Page          string   `json:"page"`
	PaymentMethod []string `json:"paymentMethod"`
}

type bybitItemsResponse struct {
	RetCode int    `json:"ret_code"`
	RetMsg  string `json:"ret_msg"`
	Result  struct {
		Count int `json:"count"`
		Items []struct {
			Price decimal.Decimal `json:"price"`
		} `json:"items"`
	} `json:"result"`
}

// Venue returns the venue metadata.
func (b *BybitP2P) Venue() domain.Venue { return b.venue }

// GetQuote lists both sides of the crypto/fiat market.
func (b *BybitP2P) GetQuote(ctx context.Context, crypto, fiat string) (domain.Quote, error) {
	q, err := p2pQuote(ctx, b.venue, crypto, fiat, b.now(), b.fetchAds)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bybit_p2p: %w", err)
	}
	return q, nil
}

func (b *BybitP2P) fetchAds(ctx context.Context, crypto, fiat string, side p2pSide) ([]decimal.Decimal, error) {
	s := "1"
	if side == sideSell {
		s = "0"
	}
	req := bybitItemsRequest{
		TokenID:       strings.ToUpper(crypto),
		CurrencyID:    strings.ToUpper(fiat),
		Side:          s,
		Size:          "10",
		Page:          "1",
		PaymentMethod: []string{},
	}

	var resp bybitItemsResponse
	if err := b.client.postJSON(ctx, "", req, &resp); err != nil {
		return nil, fmt.Errorf("list %s items: %w", side, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("list %s items: ret_code %d: %s", side, resp.RetCode, resp.RetMsg)
	}

	prices := make([]decimal.Decimal, 0, len(resp.Result.Items))
	for _, it := range resp.Result.Items {
		prices = append(prices, it.Price)
	}
	return prices, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*BybitP2P)(nil)
