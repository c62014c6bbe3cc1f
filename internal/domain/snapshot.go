package domain

import "time"

// DataSource summarises where a snapshot's quotes came from.
type DataSource string

const (
	SourceLive     DataSource = "live"
	SourceMixed    DataSource = "mixed"
	SourceFallback DataSource = "fallback"
	SourceNone     DataSource = "none"
)

// Snapshot is the aggregated view of every venue for one crypto/fiat pair.
// A snapshot is never mutated after the aggregator returns it.
type Snapshot struct {
	Crypto      string          `json:"crypto"`
	Fiat        string          `json:"fiat"`
	Quotes      []Quote         `json:"quotes"`
	BestBuy     *Quote          `json:"best_buy"`
	BestSell    *Quote          `json:"best_sell"`
	Statuses    map[string]Tier `json:"exchange_statuses"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// HasData reports whether at least one quote was admitted.
func (s Snapshot) HasData() bool {
	return len(s.Quotes) > 0
}

// DataSource reports "live" when every admitted quote is live, "fallback"
// when none is, "mixed" otherwise and "none" for an empty snapshot.
func (s Snapshot) DataSource() DataSource {
	if len(s.Quotes) == 0 {
		return SourceNone
	}
	live := 0
	for _, q := range s.Quotes {
		if q.Tier == TierLive {
			live++
		}
	}
	switch live {
	case len(s.Quotes):
		return SourceLive
	case 0:
		return SourceFallback
	default:
		return SourceMixed
	}
}

// Quote returns the admitted quote for venue, if any.
func (s Snapshot) Quote(venue string) (Quote, bool) {
	for _, q := range s.Quotes {
		if q.Venue == venue {
			return q, true
		}
	}
	return Quote{}, false
}
