package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Pruner deletes quote and opportunity history older than the retention
// window. Either store may be nil.
type Pruner struct {
	quotes    domain.QuoteStore
	history   domain.OpportunityStore
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewPruner creates a Pruner that keeps retentionDays of history.
func NewPruner(quotes domain.QuoteStore, history domain.OpportunityStore, retentionDays int, logger *slog.Logger) *Pruner {
	return &Pruner{
		quotes:    quotes,
		history:   history,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "pruner")),
	}
}

// Run executes a single prune.
func (p *Pruner) Run(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.retention)

	var quotes, opps int64
	if p.quotes != nil {
		n, err := p.quotes.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune quote history before %v: %w", cutoff, err)
		}
		quotes = n
	}
	if p.history != nil {
		n, err := p.history.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune opportunity history before %v: %w", cutoff, err)
		}
		opps = n
	}

	p.logger.InfoContext(ctx, "history pruned",
		slog.Time("cutoff", cutoff),
		slog.Int64("quotes", quotes),
		slog.Int64("opportunities", opps),
	)
	return nil
}

// RunCron runs Run on a 5-field cron schedule (UTC) until ctx is cancelled.
//
// Example: "0 3 * * *" prunes daily at 03:00.
func (p *Pruner) RunCron(ctx context.Context, cronExpr string) error {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("pipeline: parse cron %q: %w", cronExpr, err)
	}
	p.logger.Info("pruner cron started", slog.String("cron", cronExpr))

	for {
		next, err := spec.next(p.now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: cron %q: %w", cronExpr, err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("pruner cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := p.Run(ctx); err != nil {
				p.logger.Error("prune failed", slog.String("error", err.Error()))
			}
		}
	}
}
