package venue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// p2pSide is the user's side of a merchant advertisement.
type p2pSide int

const (
	sideBuy p2pSide = iota
	sideSell
)

func (s p2pSide) String() string {
	if s == sideBuy {
		return "buy"
	}
	return "sell"
}

// adFetcher returns the advertised prices for one side of a P2P market.
type adFetcher func(ctx context.Context, crypto, fiat string, side p2pSide) ([]decimal.Decimal, error)

// p2pQuote fetches both sides concurrently. The buy price is the cheapest ad
// a user can buy from; the sell price is the best ad a user can sell to.
func p2pQuote(ctx context.Context, v domain.Venue, crypto, fiat string, now time.Time, fetch adFetcher) (domain.Quote, error) {
	var buys, sells []decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buys, err = fetch(gctx, crypto, fiat, sideBuy)
		return err
	})
	g.Go(func() error {
		var err error
		sells, err = fetch(gctx, crypto, fiat, sideSell)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Quote{}, err
	}

	buy, ok := extreme(buys, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
	if !ok {
		return domain.Quote{}, fmt.Errorf("no buy ads for %s/%s: %w", crypto, fiat, domain.ErrNotFound)
	}
	sell, ok := extreme(sells, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
	if !ok {
		return domain.Quote{}, fmt.Errorf("no sell ads for %s/%s: %w", crypto, fiat, domain.ErrNotFound)
	}

	return domain.Quote{
		Venue:       v.ID,
		DisplayName: v.DisplayName,
		Kind:        v.Kind,
		Crypto:      strings.ToUpper(crypto),
		Fiat:        strings.ToUpper(fiat),
		BuyPrice:    buy,
		SellPrice:   sell,
		ObservedAt:  now.UTC(),
		Tier:        domain.TierLive,
	}, nil
}

// extreme returns the element for which better holds against every other,
// ignoring non-positive prices.
func extreme(prices []decimal.Decimal, better func(a, b decimal.Decimal) bool) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, p := range prices {
		if !p.IsPositive() {
			continue
		}
		if !found || better(p, best) {
			best, found = p, true
		}
	}
	return best, found
}
