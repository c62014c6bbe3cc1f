package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/fees"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type zeroFees struct{}

func (zeroFees) TradingFee(string, decimal.Decimal) decimal.Decimal { return decimal.Zero }
func (zeroFees) WithdrawalFee(string, string, decimal.Decimal, decimal.Decimal, string) decimal.Decimal {
	return decimal.Zero
}

// flatFees charges 0.5% per trade and a withdrawal fee of 1.25 crypto units.
func flatFees() *fees.Schedule {
	return fees.NewSchedule(nil, fees.Defaults{
		TradingFee: d("0.005"),
		Withdrawal: map[string]decimal.Decimal{"USDT": d("1.25")},
		Network:    "trc20",
	})
}

func quote(venue, buy, sell string) domain.Quote {
	return domain.Quote{
		Venue:     venue,
		Crypto:    "USDT",
		Fiat:      "NGN",
		BuyPrice:  d(buy),
		SellPrice: d(sell),
		Tier:      domain.TierLive,
	}
}

func TestEvaluateZeroFees(t *testing.T) {
	c := NewCalculator(zeroFees{}, "")
	opp, err := c.Evaluate("a", "b", d("1580"), d("1650"), "USDT", d("100000"))
	require.NoError(t, err)

	assert.Equal(t, "63.29113924", opp.CryptoAmount.String())
	assert.Equal(t, "70", opp.GrossSpread.String())
	assert.Equal(t, "4.43", opp.GrossSpreadPercent.String())
	assert.Equal(t, "4430.38", opp.NetProfit.String())
	assert.Equal(t, "4.43", opp.NetProfitPercent.String())
	assert.True(t, opp.Fees.Total.IsZero())
	assert.True(t, opp.Profitable)
}

func TestEvaluateWithFees(t *testing.T) {
	c := NewCalculator(flatFees(), "")
	opp, err := c.Evaluate("a", "b", d("1580"), d("1650"), "USDT", d("100000"))
	require.NoError(t, err)

	// revenue = 104430.38, buy fee 500, sell fee 522.15, withdrawal 1.25*1650.
	assert.Equal(t, "500", opp.Fees.BuyFee.String())
	assert.Equal(t, "522.15", opp.Fees.SellFee.String())
	assert.Equal(t, "2062.5", opp.Fees.WithdrawalFee.String())
	assert.Equal(t, "3084.65", opp.Fees.Total.String())
	assert.Equal(t, "1345.73", opp.NetProfit.String())
	assert.True(t, opp.Profitable)
}

func TestEvaluateProfitableBelowDisplayPrecision(t *testing.T) {
	c := NewCalculator(zeroFees{}, "")
	opp, err := c.Evaluate("a", "b", d("1000"), d("1000.0004"), "USDT", d("10000"))
	require.NoError(t, err)

	// Net is 0.004, shown as 0 at two places but still above zero.
	assert.True(t, opp.NetProfit.IsZero())
	assert.True(t, opp.Profitable)

	opp, err = c.Evaluate("a", "b", d("1000"), d("1000"), "USDT", d("10000"))
	require.NoError(t, err)
	assert.False(t, opp.Profitable)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	c := NewCalculator(zeroFees{}, "")
	_, err := c.Evaluate("a", "b", decimal.Zero, d("1"), "USDT", d("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = c.Evaluate("a", "b", d("1"), d("1"), "USDT", d("-5"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEvaluateMonotonicInSellPrice(t *testing.T) {
	c := NewCalculator(flatFees(), "")
	prev := decimal.NewFromInt(-1 << 40)
	for sell := 1500; sell <= 1800; sell += 7 {
		opp, err := c.Evaluate("a", "b", d("1580"), decimal.NewFromInt(int64(sell)), "USDT", d("100000"))
		require.NoError(t, err)
		assert.True(t, opp.NetProfit.GreaterThanOrEqual(prev), "sell=%d net=%s prev=%s", sell, opp.NetProfit, prev)
		prev = opp.NetProfit
	}
}

func TestFindOpportunitiesFiltersNegativeSpread(t *testing.T) {
	c := NewCalculator(flatFees(), "")
	snap := domain.Snapshot{
		Crypto: "USDT",
		Fiat:   "NGN",
		Quotes: []domain.Quote{quote("a", "1580", "1575"), quote("b", "1610", "1560")},
	}
	opps, err := c.FindOpportunities(snap, decimal.Zero, d("100000"))
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestFindOpportunitiesRanked(t *testing.T) {
	c := NewCalculator(zeroFees{}, "")
	c.now = func() time.Time { return time.Unix(0, 0) }
	snap := domain.Snapshot{
		Crypto: "USDT",
		Fiat:   "NGN",
		Quotes: []domain.Quote{
			quote("a", "1500", "1490"),
			quote("b", "1520", "1560"),
			quote("c", "1530", "1600"),
		},
	}
	opps, err := c.FindOpportunities(snap, decimal.Zero, d("100000"))
	require.NoError(t, err)

	var pairs []string
	for _, o := range opps {
		pairs = append(pairs, o.PairKey())
		assert.Equal(t, "NGN", o.Fiat)
	}
	// a>c 6.67%, b>c 5.26%, a>b 4%, c>b 1.96%.
	assert.Equal(t, []string{"a>c", "b>c", "a>b", "c>b"}, pairs)

	for i := 1; i < len(opps); i++ {
		assert.True(t, opps[i-1].NetProfitPercent.GreaterThanOrEqual(opps[i].NetProfitPercent))
	}
}

func TestFindOpportunitiesMinSpread(t *testing.T) {
	c := NewCalculator(zeroFees{}, "")
	snap := domain.Snapshot{
		Crypto: "USDT",
		Quotes: []domain.Quote{quote("a", "1500", "1490"), quote("b", "1520", "1505")},
	}
	// a>b spread is exactly 0.333...%.
	opps, err := c.FindOpportunities(snap, d("0.5"), d("100000"))
	require.NoError(t, err)
	assert.Empty(t, opps)

	opps, err = c.FindOpportunities(snap, d("0.3"), d("100000"))
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestRankTieBreaks(t *testing.T) {
	mk := func(crypto, buy, sell, pct, net string) domain.Opportunity {
		return domain.Opportunity{Crypto: crypto, BuyVenue: buy, SellVenue: sell,
			NetProfitPercent: d(pct), NetProfit: d(net)}
	}
	opps := []domain.Opportunity{
		mk("USDT", "b", "c", "1.00", "100"),
		mk("USDT", "a", "c", "1.00", "100"),
		mk("BTC", "a", "c", "1.00", "100"),
		mk("USDT", "x", "y", "1.00", "200"),
		mk("ETH", "x", "y", "2.00", "50"),
	}
	Rank(opps)

	var got []string
	for _, o := range opps {
		got = append(got, o.Crypto+":"+o.PairKey())
	}
	assert.Equal(t, []string{"ETH:x>y", "USDT:x>y", "BTC:a>c", "USDT:a>c", "USDT:b>c"}, got)
}

func TestProfitableAndTop(t *testing.T) {
	opps := []domain.Opportunity{{Profitable: true, BuyVenue: "a"}, {BuyVenue: "b"}, {Profitable: true, BuyVenue: "c"}}
	p := Profitable(opps)
	require.Len(t, p, 2)
	assert.Equal(t, "c", p[1].BuyVenue)

	assert.Len(t, Top(opps, 2), 2)
	assert.Len(t, Top(opps, 10), 3)
}
