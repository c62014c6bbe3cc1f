package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testSchedule() *Schedule {
	return NewSchedule([]domain.FeeEntry{
		{
			Venue:      "binance_p2p",
			TradingFee: decimal.Zero,
			Withdrawal: map[string]map[string]decimal.Decimal{
				"USDT": {"TRC20": d("1"), "bep20": d("0.29")},
				"btc":  {"default": d("0.0000012")},
			},
		},
		{
			Venue:             "quidax",
			TradingFee:        d("0.005"),
			Withdrawal:        map[string]map[string]decimal.Decimal{"USDT": {"default": d("2")}},
			FiatWithdrawalFee: d("0.005"),
		},
	}, Defaults{
		TradingFee: d("0.005"),
		Withdrawal: map[string]decimal.Decimal{"usdt": d("2"), "BTC": d("0.0005"), "ETH": d("0.005")},
		Network:    "TRC20",
	})
}

func TestTradingFee(t *testing.T) {
	s := testSchedule()
	amount := d("100000")

	assert.True(t, s.TradingFee("quidax", amount).Equal(d("500")))
	assert.True(t, s.TradingFee("binance_p2p", amount).IsZero())
	// Unknown venues are charged the default, never zero.
	assert.True(t, s.TradingFee("nowhere", amount).Equal(d("500")))
}

func TestWithdrawalFeeLookup(t *testing.T) {
	s := testSchedule()

	tests := []struct {
		name    string
		venue   string
		crypto  string
		network string
		want    string
	}{
		{"explicit network", "binance_p2p", "USDT", "bep20", "0.29"},
		{"default network", "binance_p2p", "usdt", "", "1"},
		{"unlisted network takes highest", "binance_p2p", "USDT", "erc20", "1"},
		{"general fee", "binance_p2p", "BTC", "", "0.0000012"},
		{"venue general", "quidax", "USDT", "bep20", "2"},
		{"crypto missing on venue", "quidax", "ETH", "", "0.005"},
		{"unknown venue", "nowhere", "BTC", "", "0.0005"},
		{"unknown crypto", "nowhere", "DOGE", "", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.WithdrawalFeeCrypto(tt.venue, tt.crypto, tt.network)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestWithdrawalFeeConvertsToFiat(t *testing.T) {
	s := testSchedule()
	fee := s.WithdrawalFee("quidax", "USDT", d("63.29"), d("1650"), "")
	assert.True(t, fee.Equal(d("3300")))
}

func TestEntryOrDefault(t *testing.T) {
	s := testSchedule()

	e, ok := s.Entry("quidax")
	assert.True(t, ok)
	assert.True(t, e.FiatWithdrawalFee.Equal(d("0.005")))

	def := s.EntryOrDefault("remitano")
	assert.Equal(t, "remitano", def.Venue)
	assert.True(t, def.TradingFee.Equal(d("0.005")))
	assert.True(t, def.Withdrawal["BTC"][DefaultNetworkKey].Equal(d("0.0005")))

	assert.Equal(t, []string{"binance_p2p", "quidax"}, s.Venues())
}

func TestEntryIsACopy(t *testing.T) {
	s := testSchedule()

	e, ok := s.Entry("binance_p2p")
	require.True(t, ok)
	e.Withdrawal["USDT"]["trc20"] = d("99")
	delete(e.Withdrawal, "BTC")

	fromDefault := s.EntryOrDefault("quidax")
	fromDefault.Withdrawal["USDT"][DefaultNetworkKey] = d("50")

	assert.True(t, s.WithdrawalFeeCrypto("binance_p2p", "USDT", "trc20").Equal(d("1")))
	assert.True(t, s.WithdrawalFeeCrypto("binance_p2p", "BTC", "").Equal(d("0.0000012")))
	assert.True(t, s.WithdrawalFeeCrypto("quidax", "USDT", "").Equal(d("2")))
}
