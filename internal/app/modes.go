package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/alert"
	"github.com/alanyoungcy/arbscanner/internal/pipeline"
	"github.com/alanyoungcy/arbscanner/internal/server"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/server/ws"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ScanMode runs the scheduler and the retention pruner.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")
	return a.newOrchestrator(deps).Run(ctx)
}

// ServerMode serves the API only. Top opportunities come from a scanner
// process sharing the same Redis.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	if !deps.Redis {
		a.logger.WarnContext(ctx, "server mode without redis: /api/opportunities/top and /ws stay empty until a scanner shares this cache")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// FullMode runs the scanner and the API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	orch := a.newOrchestrator(deps)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	sc := a.cfg.Scanner
	pdeps := pipeline.Deps{
		Source:   deps.Aggregator,
		Finder:   deps.Calculator,
		Cache:    deps.Cache,
		Locks:    deps.Locks,
		Bus:      deps.Bus,
		Quotes:   deps.Quotes,
		History:  deps.History,
		Archiver: deps.Archiver,
	}
	if a.cfg.Alerts.Enabled {
		pdeps.Alerts = alert.NewDispatcher(
			deps.alertRules(a.cfg),
			alert.NewDedup(deps.Cache, a.cfg.Alerts.Cooldown.Duration),
			deps.Notifier,
			deps.AlertLog,
			a.logger,
		)
	}

	scheduler := pipeline.NewScheduler(pdeps, pipeline.SchedulerConfig{
		Interval:         sc.Interval.Duration,
		MinSpreadPercent: decimal.NewFromFloat(sc.MinSpreadPercent),
		FiatAmount:       decimal.NewFromFloat(sc.DefaultAmount),
		TopN:             sc.TopN,
		TopTTL:           sc.TopTTL.Duration,
	}, a.logger)

	var pruner *pipeline.Pruner
	if sc.HistoryRetentionDays > 0 && (deps.Quotes != nil || deps.History != nil) {
		pruner = pipeline.NewPruner(deps.Quotes, deps.History, sc.HistoryRetentionDays, a.logger)
	}
	return pipeline.NewOrchestrator(scheduler, pruner, sc.RetentionCron, a.logger)
}

// startHTTPServer adds the WebSocket hub and the HTTP server to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	scanner := service.NewScannerService(
		deps.Aggregator, deps.Calculator, deps.Fees, deps.Venues,
		deps.Cache, deps.Quotes, deps.History, a.logger,
	)
	cryptos := scanner.Cryptos()

	hub := ws.NewHub(deps.Bus, ws.Config{
		Channels:       []string{pipeline.ChannelOpportunities, pipeline.ChannelSnapshots},
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Mode:           a.cfg.Mode,
		Cryptos:        cryptos,
		StartedAt:      time.Now().UTC(),
	}, a.logger)
	g.Go(func() error {
		return ignoreCanceled(hub.Run(ctx))
	})

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.cfg.Mode, cryptos, deps.Checks),
		Prices:        handler.NewPriceHandler(scanner, a.logger),
		Opportunities: handler.NewOpportunityHandler(scanner, a.logger),
		Venues:        handler.NewVenueHandler(scanner, a.logger),
	}
	if deps.Rules != nil {
		rules := service.NewAlertService(deps.Rules, deps.Venues, cryptos, a.logger)
		handlers.Alerts = handler.NewAlertHandler(rules, a.logger)
	} else {
		a.logger.InfoContext(ctx, "alert rule API disabled (no database)")
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
