package alert

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Matches reports whether opp satisfies rule's crypto filter, spread
// threshold and venue allow-lists. The threshold is compared against the
// gross spread percent.
func Matches(rule domain.AlertRule, opp domain.Opportunity) bool {
	if rule.Crypto != "" && !strings.EqualFold(rule.Crypto, opp.Crypto) {
		return false
	}
	if opp.GrossSpreadPercent.LessThan(rule.MinSpreadPercent) {
		return false
	}
	if len(rule.BuyVenues) > 0 && !slices.Contains(rule.BuyVenues, opp.BuyVenue) {
		return false
	}
	if len(rule.SellVenues) > 0 && !slices.Contains(rule.SellVenues, opp.SellVenue) {
		return false
	}
	return true
}

// StaticRules serves rules declared in configuration.
type StaticRules []domain.AlertRule

var _ domain.AlertRuleStore = StaticRules(nil)

// ListActive returns the active rules.
func (s StaticRules) ListActive(context.Context) ([]domain.AlertRule, error) {
	out := make([]domain.AlertRule, 0, len(s))
	for _, r := range s {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// MergedRules concatenates several rule stores. A rule id seen in an earlier
// store shadows later ones.
type MergedRules []domain.AlertRuleStore

var _ domain.AlertRuleStore = MergedRules(nil)

// ListActive lists every store's active rules.
func (m MergedRules) ListActive(ctx context.Context) ([]domain.AlertRule, error) {
	seen := make(map[string]bool)
	var out []domain.AlertRule
	for i, s := range m {
		rules, err := s.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("alert: list rules from store %d: %w", i, err)
		}
		for _, r := range rules {
			if r.ID != "" && seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out, nil
}
