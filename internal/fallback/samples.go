package fallback

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// SamplePrice is one static buy/sell pair.
type SamplePrice struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// SampleTable is the last-resort price table for one fiat, keyed by venue
// then crypto. It is read-only after construction.
type SampleTable struct {
	fiat   string
	prices map[string]map[string]SamplePrice
}

// NewSampleTable copies prices into a new table. Entries with a non-positive
// price are dropped.
func NewSampleTable(fiat string, prices map[string]map[string]SamplePrice) *SampleTable {
	t := &SampleTable{
		fiat:   strings.ToUpper(fiat),
		prices: make(map[string]map[string]SamplePrice, len(prices)),
	}
	for venue, row := range prices {
		out := make(map[string]SamplePrice, len(row))
		for crypto, p := range row {
			if !p.Buy.IsPositive() || !p.Sell.IsPositive() {
				continue
			}
			out[strings.ToUpper(crypto)] = p
		}
		t.prices[venue] = out
	}
	return t
}

// Quote builds a sample-tier quote for the venue and pair.
func (t *SampleTable) Quote(v domain.Venue, crypto, fiat string, at time.Time) (domain.Quote, bool) {
	if !strings.EqualFold(fiat, t.fiat) {
		return domain.Quote{}, false
	}
	p, ok := t.prices[v.ID][strings.ToUpper(crypto)]
	if !ok {
		return domain.Quote{}, false
	}
	return domain.Quote{
		Venue:       v.ID,
		DisplayName: v.DisplayName,
		Kind:        v.Kind,
		Crypto:      strings.ToUpper(crypto),
		Fiat:        t.fiat,
		BuyPrice:    p.Buy,
		SellPrice:   p.Sell,
		ObservedAt:  at,
		Tier:        domain.TierSample,
	}, true
}
