package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the scan scheduler and, when history is retained, the
// pruning cron.
type Orchestrator struct {
	scheduler *Scheduler
	pruner    *Pruner // optional
	pruneCron string
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. pruner may be nil.
func NewOrchestrator(scheduler *Scheduler, pruner *Pruner, pruneCron string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		scheduler: scheduler,
		pruner:    pruner,
		pruneCron: pruneCron,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the loops under an errgroup. A non-context error from either
// loop cancels the other and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Bool("pruning", o.pruner != nil),
		slog.String("prune_cron", o.pruneCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scheduler: %w", err)
	})

	if o.pruner != nil {
		g.Go(func() error {
			err := o.pruner.RunCron(ctx, o.pruneCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("pruner: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
