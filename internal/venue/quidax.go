package venue

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Quidax reads the public market ticker of the Quidax exchange.
type Quidax struct {
	venue  domain.Venue
	client *restClient
	now    func() time.Time
}

// NewQuidax creates a Quidax source. baseURL is the API root, e.g.
// "https://www.quidax.com/api/v1".
func NewQuidax(v domain.Venue, baseURL string, perSecond float64, burst int) *Quidax {
	v.LiveSource = true
	return &Quidax{venue: v, client: newRESTClient(baseURL, perSecond, burst), now: time.Now}
}

type quidaxTickerResponse struct {
	Status string `json:"status"`
	Data   struct {
		At     int64 `json:"at"`
		Ticker struct {
			Buy  decimal.Decimal `json:"buy"`
			Sell decimal.Decimal `json:"sell"`
			Last decimal.Decimal `json:"last"`
			Vol  decimal.Decimal `json:"vol"`
		} `json:"ticker"`
	} `json:"data"`
}

// Venue returns the venue metadata.
func (q *Quidax) Venue() domain.Venue { return q.venue }

// GetQuote fetches the ticker for crypto/fiat.
func (q *Quidax) GetQuote(ctx context.Context, crypto, fiat string) (domain.Quote, error) {
	market := strings.ToLower(crypto + fiat)
	var resp quidaxTickerResponse
	if err := q.client.getJSON(ctx, "/markets/tickers/"+url.PathEscape(market), &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("quidax: ticker %s: %w", market, err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return domain.Quote{}, fmt.Errorf("quidax: ticker %s: status %q", market, resp.Status)
	}

	observed := q.now()
	if resp.Data.At > 0 {
		observed = time.Unix(resp.Data.At, 0)
	}
	t := resp.Data.Ticker
	return domain.Quote{
		Venue:       q.venue.ID,
		DisplayName: q.venue.DisplayName,
		Kind:        q.venue.Kind,
		Crypto:      strings.ToUpper(crypto),
		Fiat:        strings.ToUpper(fiat),
		BuyPrice:    t.Buy,
		SellPrice:   t.Sell,
		Volume24h:   decimal.NewNullDecimal(t.Vol),
		ObservedAt:  observed.UTC(),
		Tier:        domain.TierLive,
	}, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Quidax)(nil)
