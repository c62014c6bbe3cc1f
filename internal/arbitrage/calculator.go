// Package arbitrage evaluates cross-venue buy/sell pairs net of fees and
// ranks the results.
package arbitrage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Rounding applied after full-precision computation.
const (
	fiatPlaces    = 2
	cryptoPlaces  = 8
	percentPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// FeeSchedule is the fee lookup the calculator nets out.
type FeeSchedule interface {
	TradingFee(venue string, amount decimal.Decimal) decimal.Decimal
	WithdrawalFee(venue, crypto string, amount, priceFiat decimal.Decimal, network string) decimal.Decimal
}

// Calculator evaluates opportunities. It holds no mutable state.
type Calculator struct {
	fees    FeeSchedule
	network string
	now     func() time.Time
}

// NewCalculator creates a Calculator that charges withdrawal fees on network
// (empty selects the fee schedule's default).
func NewCalculator(fees FeeSchedule, network string) *Calculator {
	return &Calculator{fees: fees, network: network, now: time.Now}
}

// Evaluate computes buying crypto on buyVenue for fiatAmount and selling it on
// sellVenue. The crypto withdrawal leg is charged to the buy venue and
// converted to fiat at sellPrice.
func (c *Calculator) Evaluate(buyVenue, sellVenue string, buyPrice, sellPrice decimal.Decimal, crypto string, fiatAmount decimal.Decimal) (domain.Opportunity, error) {
	if !buyPrice.IsPositive() || !sellPrice.IsPositive() {
		return domain.Opportunity{}, fmt.Errorf("arbitrage: prices must be positive: %w", domain.ErrInvalidInput)
	}
	if !fiatAmount.IsPositive() {
		return domain.Opportunity{}, fmt.Errorf("arbitrage: trade amount must be positive: %w", domain.ErrInvalidInput)
	}

	cryptoAmount := fiatAmount.Div(buyPrice)
	grossSpread := sellPrice.Sub(buyPrice)
	grossPct := grossSpread.Div(buyPrice).Mul(hundred)

	revenue := cryptoAmount.Mul(sellPrice)
	buyFee := c.fees.TradingFee(buyVenue, fiatAmount)
	sellFee := c.fees.TradingFee(sellVenue, revenue)
	withdrawalFee := c.fees.WithdrawalFee(buyVenue, crypto, cryptoAmount, sellPrice, c.network)
	totalFees := buyFee.Add(sellFee).Add(withdrawalFee)

	net := revenue.Sub(fiatAmount).Sub(totalFees)
	netPct := net.Div(fiatAmount).Mul(hundred)

	return domain.Opportunity{
		Crypto:             crypto,
		BuyVenue:           buyVenue,
		SellVenue:          sellVenue,
		BuyPrice:           buyPrice,
		SellPrice:          sellPrice,
		FiatAmount:         fiatAmount.RoundBank(fiatPlaces),
		CryptoAmount:       cryptoAmount.RoundBank(cryptoPlaces),
		GrossSpread:        grossSpread.RoundBank(fiatPlaces),
		GrossSpreadPercent: grossPct.RoundBank(percentPlaces),
		Fees: domain.FeeBreakdown{
			BuyFee:        buyFee.RoundBank(fiatPlaces),
			SellFee:       sellFee.RoundBank(fiatPlaces),
			WithdrawalFee: withdrawalFee.RoundBank(fiatPlaces),
			Total:         totalFees.RoundBank(fiatPlaces),
		},
		NetProfit:        net.RoundBank(fiatPlaces),
		NetProfitPercent: netPct.RoundBank(percentPlaces),
		Profitable:       net.IsPositive(),
		DetectedAt:       c.now().UTC(),
	}, nil
}

// FindOpportunities evaluates every ordered venue pair in snap whose pre-fee
// spread is positive and at least minSpreadPercent, and returns them ranked.
// Unprofitable candidates are included with Profitable unset.
func (c *Calculator) FindOpportunities(snap domain.Snapshot, minSpreadPercent, fiatAmount decimal.Decimal) ([]domain.Opportunity, error) {
	if !fiatAmount.IsPositive() {
		return nil, fmt.Errorf("arbitrage: trade amount must be positive: %w", domain.ErrInvalidInput)
	}

	var out []domain.Opportunity
	for _, buy := range snap.Quotes {
		for _, sell := range snap.Quotes {
			if buy.Venue == sell.Venue {
				continue
			}
			if !sell.SellPrice.GreaterThan(buy.BuyPrice) {
				continue
			}
			spreadPct := sell.SellPrice.Sub(buy.BuyPrice).Div(buy.BuyPrice).Mul(hundred)
			if spreadPct.LessThan(minSpreadPercent) {
				continue
			}

			opp, err := c.Evaluate(buy.Venue, sell.Venue, buy.BuyPrice, sell.SellPrice, snap.Crypto, fiatAmount)
			if err != nil {
				// Only non-positive prices reach here; admitted quotes have none.
				continue
			}
			opp.Fiat = snap.Fiat
			out = append(out, opp)
		}
	}
	Rank(out)
	return out, nil
}
