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

// lunoAssetCodes maps symbols to Luno's asset codes where they differ.
var lunoAssetCodes = map[string]string{
	"BTC": "XBT",
}

// Luno reads the public ticker of the Luno exchange. A user buys at the ask
// and sells at the bid.
type Luno struct {
	venue  domain.Venue
	client *restClient
	now    func() time.Time
}

// NewLuno creates a Luno source. baseURL is the API root, e.g.
// "https://api.luno.com/api/1".
func NewLuno(v domain.Venue, baseURL string, perSecond float64, burst int) *Luno {
	v.LiveSource = true
	return &Luno{venue: v, client: newRESTClient(baseURL, perSecond, burst), now: time.Now}
}

type lunoTickerResponse struct {
	Pair                string              `json:"pair"`
	Timestamp           int64               `json:"timestamp"`
	Bid                 decimal.Decimal     `json:"bid"`
	Ask                 decimal.Decimal     `json:"ask"`
	LastTrade           decimal.Decimal     `json:"last_trade"`
	Rolling24HourVolume decimal.NullDecimal `json:"rolling_24_hour_volume"`
	Status              string              `json:"status"`
}

// LunoPair returns Luno's pair code for crypto/fiat, e.g. XBTNGN.
func LunoPair(crypto, fiat string) string {
	c := strings.ToUpper(crypto)
	if code, ok := lunoAssetCodes[c]; ok {
		c = code
	}
	return c + strings.ToUpper(fiat)
}

// Venue returns the venue metadata.
func (l *Luno) Venue() domain.Venue { return l.venue }

// GetQuote fetches the ticker for crypto/fiat.
func (l *Luno) GetQuote(ctx context.Context, crypto, fiat string) (domain.Quote, error) {
	pair := LunoPair(crypto, fiat)
	var resp lunoTickerResponse
	if err := l.client.getJSON(ctx, "/ticker?pair="+url.QueryEscape(pair), &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("luno: ticker %s: %w", pair, err)
	}
	if resp.Status != "" && resp.Status != "ACTIVE" {
		return domain.Quote{}, fmt.Errorf("luno: ticker %s: market status %s", pair, resp.Status)
	}

	observed := l.now()
	if resp.Timestamp > 0 {
		observed = time.UnixMilli(resp.Timestamp)
	}
	return domain.Quote{
		Venue:       l.venue.ID,
		DisplayName: l.venue.DisplayName,
		Kind:        l.venue.Kind,
		Crypto:      strings.ToUpper(crypto),
		Fiat:        strings.ToUpper(fiat),
		BuyPrice:    resp.Ask,
		SellPrice:   resp.Bid,
		Volume24h:   resp.Rolling24HourVolume,
		ObservedAt:  observed.UTC(),
		Tier:        domain.TierLive,
	}, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Luno)(nil)
