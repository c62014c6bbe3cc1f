package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Cache keys and bus channels written by the scheduler.
const (
	TopKey               = "opportunities:top"
	ChannelOpportunities = "ch:opportunities"
	ChannelSnapshots     = "ch:snapshot:*"
	tickLockKey          = "scan-tick"
)

// SnapshotChannel is the bus channel carrying crypto's snapshots.
func SnapshotChannel(crypto string) string {
	return "ch:snapshot:" + crypto
}

// TopOpportunities is the ranked cross-crypto result of one tick.
type TopOpportunities struct {
	TickID        string               `json:"tick_id"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ReadTop loads the last cached top-N. It returns domain.ErrNotFound before
// the first tick or after the entry expires.
func ReadTop(ctx context.Context, cache domain.Cache) (TopOpportunities, error) {
	raw, err := cache.Get(ctx, TopKey)
	if err != nil {
		return TopOpportunities{}, err
	}
	var top TopOpportunities
	if err := json.Unmarshal(raw, &top); err != nil {
		return TopOpportunities{}, fmt.Errorf("pipeline: decode %s: %v: %w", TopKey, err, domain.ErrNotFound)
	}
	return top, nil
}
