package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is the result of buying Crypto on BuyVenue and selling it on
// SellVenue for FiatAmount, net of fees.
type Opportunity struct {
	ID                 string          `json:"id,omitempty"`
	Crypto             string          `json:"crypto"`
	Fiat               string          `json:"fiat"`
	BuyVenue           string          `json:"buy_exchange"`
	SellVenue          string          `json:"sell_exchange"`
	BuyPrice           decimal.Decimal `json:"buy_price"`
	SellPrice          decimal.Decimal `json:"sell_price"`
	FiatAmount         decimal.Decimal `json:"trade_amount"`
	CryptoAmount       decimal.Decimal `json:"crypto_amount"`
	GrossSpread        decimal.Decimal `json:"gross_spread"`
	GrossSpreadPercent decimal.Decimal `json:"spread_percent"`
	Fees               FeeBreakdown    `json:"fees"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	NetProfitPercent   decimal.Decimal `json:"net_profit_percent"`
	Profitable         bool            `json:"is_profitable"`
	DetectedAt         time.Time       `json:"detected_at"`
}

// PairKey identifies the ordered venue pair, used for deterministic ordering.
func (o Opportunity) PairKey() string {
	return o.BuyVenue + ">" + o.SellVenue
}
