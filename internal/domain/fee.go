package domain

import "github.com/shopspring/decimal"

// FeeEntry is a venue's static fee table. Withdrawal fees are in crypto units,
// keyed by crypto then network. The network key "default" holds the general fee used
// when no network-specific entry exists.
type FeeEntry struct {
	Venue             string                                `json:"venue"`
	TradingFee        decimal.Decimal                       `json:"trading_fee"`
	Withdrawal        map[string]map[string]decimal.Decimal `json:"withdrawal"`
	FiatDepositFee    decimal.Decimal                       `json:"fiat_deposit_fee"`
	FiatWithdrawalFee decimal.Decimal                       `json:"fiat_withdrawal_fee"`
}

// FeeBreakdown itemises the fees deducted from one opportunity, in fiat.
type FeeBreakdown struct {
	BuyFee        decimal.Decimal `json:"buy_fee"`
	SellFee       decimal.Decimal `json:"sell_fee"`
	WithdrawalFee decimal.Decimal `json:"withdrawal_fee"`
	Total         decimal.Decimal `json:"total"`
}
