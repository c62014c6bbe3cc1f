package aggregator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Bounds is an inclusive absolute price range in the scanner's fiat.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Validator applies the sanity checks a live quote must pass before it is
// admitted. It is pure: the same quote always yields the same decision.
type Validator struct {
	bounds    map[string]Bounds
	maxSpread decimal.Decimal
}

// NewValidator creates a Validator. bounds is keyed by crypto symbol;
// maxSpread is the largest accepted |sell-buy|/buy.
func NewValidator(bounds map[string]Bounds, maxSpread decimal.Decimal) *Validator {
	b := make(map[string]Bounds, len(bounds))
	for crypto, r := range bounds {
		b[strings.ToUpper(crypto)] = r
	}
	return &Validator{bounds: b, maxSpread: maxSpread}
}

// Validate returns an error wrapping domain.ErrQuoteRejected when q fails a
// check.
func (v *Validator) Validate(q domain.Quote) error {
	if !q.BuyPrice.IsPositive() || !q.SellPrice.IsPositive() {
		return fmt.Errorf("%w: non-positive price (buy %s, sell %s)", domain.ErrQuoteRejected, q.BuyPrice, q.SellPrice)
	}

	if b, ok := v.bounds[strings.ToUpper(q.Crypto)]; ok {
		for _, p := range []decimal.Decimal{q.BuyPrice, q.SellPrice} {
			if p.LessThan(b.Min) || p.GreaterThan(b.Max) {
				return fmt.Errorf("%w: price %s outside [%s, %s]", domain.ErrQuoteRejected, p, b.Min, b.Max)
			}
		}
	}

	spread := q.SellPrice.Sub(q.BuyPrice).Abs().Div(q.BuyPrice)
	if spread.GreaterThan(v.maxSpread) {
		return fmt.Errorf("%w: spread %s exceeds %s", domain.ErrQuoteRejected, spread.StringFixed(4), v.maxSpread)
	}
	return nil
}
