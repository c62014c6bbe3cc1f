// Package fees holds the static per-venue fee table and the lookups the
// arbitrage calculator nets out of every opportunity.
package fees

import (
	"maps"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// DefaultNetworkKey is the withdrawal-map key holding a crypto's general fee.
const DefaultNetworkKey = "default"

// Defaults are charged for venues or cryptos missing from the table. The
// trading fee must be positive.
type Defaults struct {
	TradingFee decimal.Decimal
	Withdrawal map[string]decimal.Decimal // crypto -> fee in crypto units
	Network    string
}

// Schedule is a read-only fee table. It is safe for concurrent use.
type Schedule struct {
	entries  map[string]domain.FeeEntry
	defaults Defaults
}

// NewSchedule builds a Schedule from entries. Crypto and network keys are
// normalised to upper and lower case respectively.
func NewSchedule(entries []domain.FeeEntry, defaults Defaults) *Schedule {
	s := &Schedule{
		entries: make(map[string]domain.FeeEntry, len(entries)),
		defaults: Defaults{
			TradingFee: defaults.TradingFee,
			Withdrawal: make(map[string]decimal.Decimal, len(defaults.Withdrawal)),
			Network:    strings.ToLower(defaults.Network),
		},
	}
	for crypto, fee := range defaults.Withdrawal {
		s.defaults.Withdrawal[strings.ToUpper(crypto)] = fee
	}
	for _, e := range entries {
		norm := e
		norm.Withdrawal = make(map[string]map[string]decimal.Decimal, len(e.Withdrawal))
		for crypto, byNet := range e.Withdrawal {
			nets := make(map[string]decimal.Decimal, len(byNet))
			for net, fee := range byNet {
				nets[strings.ToLower(net)] = fee
			}
			norm.Withdrawal[strings.ToUpper(crypto)] = nets
		}
		s.entries[e.Venue] = norm
	}
	return s
}

// TradingFee returns the fiat fee for trading amount on venue.
func (s *Schedule) TradingFee(venue string, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.tradingFraction(venue))
}

func (s *Schedule) tradingFraction(venue string) decimal.Decimal {
	if e, ok := s.entries[venue]; ok {
		return e.TradingFee
	}
	return s.defaults.TradingFee
}

// WithdrawalFee returns the fiat cost of withdrawing crypto from venue,
// converting the table's crypto-denominated fee at priceFiat. The fee is flat
// per withdrawal, so the crypto amount is ignored. An empty network selects
// the default network.
func (s *Schedule) WithdrawalFee(venue, crypto string, _, priceFiat decimal.Decimal, network string) decimal.Decimal {
	return s.WithdrawalFeeCrypto(venue, crypto, network).Mul(priceFiat)
}

// WithdrawalFeeCrypto returns the withdrawal fee in crypto units. Lookup
// order: the requested network, the venue's general fee, the highest
// network-specific fee the venue lists, then the global default.
func (s *Schedule) WithdrawalFeeCrypto(venue, crypto, network string) decimal.Decimal {
	crypto = strings.ToUpper(crypto)
	network = strings.ToLower(network)
	if network == "" {
		network = s.defaults.Network
	}

	if e, ok := s.entries[venue]; ok {
		if byNet, ok := e.Withdrawal[crypto]; ok && len(byNet) > 0 {
			if fee, ok := byNet[network]; ok {
				return fee
			}
			if fee, ok := byNet[DefaultNetworkKey]; ok {
				return fee
			}
			highest := decimal.Zero
			for _, fee := range byNet {
				highest = decimal.Max(highest, fee)
			}
			return highest
		}
	}
	return s.defaults.Withdrawal[crypto]
}

// Entry returns a copy of the table row for venue.
func (s *Schedule) Entry(venue string) (domain.FeeEntry, bool) {
	e, ok := s.entries[venue]
	if !ok {
		return domain.FeeEntry{}, false
	}
	return cloneEntry(e), true
}

func cloneEntry(e domain.FeeEntry) domain.FeeEntry {
	w := make(map[string]map[string]decimal.Decimal, len(e.Withdrawal))
	for crypto, byNet := range e.Withdrawal {
		w[crypto] = maps.Clone(byNet)
	}
	e.Withdrawal = w
	return e
}

// EntryOrDefault returns the table row for venue, or a row built from the
// defaults when the venue has none.
func (s *Schedule) EntryOrDefault(venue string) domain.FeeEntry {
	if e, ok := s.Entry(venue); ok {
		return e
	}
	w := make(map[string]map[string]decimal.Decimal, len(s.defaults.Withdrawal))
	for crypto, fee := range s.defaults.Withdrawal {
		w[crypto] = map[string]decimal.Decimal{DefaultNetworkKey: fee}
	}
	return domain.FeeEntry{
		Venue:             venue,
		TradingFee:        s.defaults.TradingFee,
		Withdrawal:        w,
		FiatDepositFee:    decimal.Zero,
		FiatWithdrawalFee: decimal.Zero,
	}
}

// Venues lists the venues with a table row, sorted.
func (s *Schedule) Venues() []string {
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
