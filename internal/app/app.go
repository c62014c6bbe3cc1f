// Package app wires the scanner's dependencies and runs one of three modes:
// scan (scheduler only), server (HTTP and WebSocket API) or full (both).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/arbscanner/internal/config"
)

type modeFunc func(*App, context.Context, *Dependencies) error

var modes = map[string]modeFunc{
	"scan":   (*App).ScanMode,
	"server": (*App).ServerMode,
	"full":   (*App).FullMode,
}

// App holds the configuration and the cleanup registered by Wire.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
	once    sync.Once
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires dependencies and blocks in the configured mode until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup

	a.logger.InfoContext(ctx, "arbscanner ready",
		slog.String("mode", a.cfg.Mode),
		slog.Any("cryptos", a.cfg.Scanner.Cryptos),
		slog.String("fiat", a.cfg.Scanner.Fiat),
		slog.Bool("redis", deps.Redis),
		slog.Bool("postgres", deps.Rules != nil),
		slog.Bool("s3_archive", deps.Archiver != nil),
		slog.Int("venues", len(deps.Venues.Venues())),
		slog.Any("notify_channels", deps.Notifier.Channels()),
	)
	return run(a, ctx, deps)
}

// Close releases everything Wire opened. Only the first call has effect.
func (a *App) Close() {
	a.once.Do(func() {
		if a.cleanup != nil {
			a.logger.Info("closing dependencies")
			a.cleanup()
		}
	})
}
