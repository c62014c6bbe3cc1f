// Package alert matches opportunities against user rules and hands each new
// match to the notifier, at most once per cooldown window.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
)

// Deliverer sends one alert over the given channels and reports which
// channels accepted it. notify.Notifier satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, to domain.Recipient, alert domain.Alert, channels []domain.Channel) ([]domain.Channel, error)
}

// Dispatcher fans opportunities out to matching alert rules.
type Dispatcher struct {
	rules    domain.AlertRuleStore
	dedup    *Dedup
	notifier Deliverer
	alertLog domain.AlertLogStore // optional
	now      func() time.Time
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. alertLog may be nil.
func NewDispatcher(
	rules domain.AlertRuleStore,
	dedup *Dedup,
	notifier Deliverer,
	alertLog domain.AlertLogStore,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		rules:    rules,
		dedup:    dedup,
		notifier: notifier,
		alertLog: alertLog,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "alert_dispatcher")),
	}
}

// Dispatch evaluates every active rule against every opportunity and returns
// the number of alerts delivered on at least one channel. Failures for one
// match do not stop the others; they are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, opps []domain.Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}
	rules, err := d.rules.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("alert: list rules: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, rule := range rules {
		channels := rule.Channels()
		if len(channels) == 0 {
			continue
		}
		for _, opp := range opps {
			if ctx.Err() != nil {
				return sent, errors.Join(append(errs, ctx.Err())...)
			}
			if !Matches(rule, opp) {
				continue
			}
			ok, err := d.dispatchOne(ctx, rule, channels, opp)
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				sent++
			}
		}
	}

	if sent > 0 {
		d.logger.InfoContext(ctx, "alerts dispatched",
			slog.Int("sent", sent),
			slog.Int("rules", len(rules)),
			slog.Int("opportunities", len(opps)),
		)
	}
	return sent, errors.Join(errs...)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, rule domain.AlertRule, channels []domain.Channel, opp domain.Opportunity) (bool, error) {
	key := DedupKey(rule.UserID, opp.BuyVenue, opp.SellVenue, opp.Crypto)
	claimed, err := d.dedup.Claim(ctx, key)
	if err != nil {
		return false, err
	}
	if !claimed {
		metrics.AlertsSuppressed.Inc()
		return false, nil
	}

	a := domain.Alert{
		RuleID:      rule.ID,
		UserID:      rule.UserID,
		Opportunity: opp,
		CreatedAt:   d.now().UTC(),
	}
	delivered, sendErr := d.notifier.Deliver(ctx, rule.Recipient, a, channels)
	if len(delivered) == 0 {
		if err := d.dedup.Release(ctx, key); err != nil {
			d.logger.WarnContext(ctx, "dedup release failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		if sendErr != nil {
			return false, fmt.Errorf("alert: rule %s: %w", rule.ID, sendErr)
		}
		return false, nil
	}

	for _, ch := range delivered {
		metrics.AlertsSent.WithLabelValues(string(ch)).Inc()
	}
	if d.alertLog != nil {
		entry := domain.AlertLogEntry{
			ID:        uuid.NewString(),
			RuleID:    rule.ID,
			UserID:    rule.UserID,
			Crypto:    opp.Crypto,
			BuyVenue:  opp.BuyVenue,
			SellVenue: opp.SellVenue,
			Channels:  delivered,
			CreatedAt: a.CreatedAt,
		}
		if err := d.alertLog.Record(ctx, entry); err != nil {
			d.logger.WarnContext(ctx, "alert log write failed",
				slog.String("rule_id", rule.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if sendErr != nil {
		// Partial delivery still counts; the failed channels are reported.
		return true, fmt.Errorf("alert: rule %s: %w", rule.ID, sendErr)
	}
	return true, nil
}
