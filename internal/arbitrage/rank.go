package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Rank sorts opps in place: net profit percent descending, then absolute net
// profit descending, then venue pair, then crypto. The order is total, so
// equal inputs always rank identically.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if c := a.NetProfitPercent.Cmp(b.NetProfitPercent); c != 0 {
			return c > 0
		}
		if c := a.NetProfit.Cmp(b.NetProfit); c != 0 {
			return c > 0
		}
		if a.PairKey() != b.PairKey() {
			return a.PairKey() < b.PairKey()
		}
		return a.Crypto < b.Crypto
	})
}

// Profitable returns the opportunities with positive net profit, preserving
// order.
func Profitable(opps []domain.Opportunity) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.Profitable {
			out = append(out, o)
		}
	}
	return out
}

// Top returns at most n opportunities from the front of opps.
func Top(opps []domain.Opportunity, n int) []domain.Opportunity {
	if n < 0 || len(opps) <= n {
		return opps
	}
	return opps[:n]
}
