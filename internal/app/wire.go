package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/aggregator"
	"github.com/alanyoungcy/arbscanner/internal/alert"
	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	s3blob "github.com/alanyoungcy/arbscanner/internal/blob/s3"
	"github.com/alanyoungcy/arbscanner/internal/cache"
	"github.com/alanyoungcy/arbscanner/internal/cache/memory"
	"github.com/alanyoungcy/arbscanner/internal/cache/redis"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/fallback"
	"github.com/alanyoungcy/arbscanner/internal/fees"
	"github.com/alanyoungcy/arbscanner/internal/notify"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/store/postgres"
	"github.com/alanyoungcy/arbscanner/internal/venue"
)

// Dependencies bundles everything the modes need. Optional stores are nil
// when their backend is not configured.
type Dependencies struct {
	// Shared state
	Cache   domain.Cache
	Locks   domain.LockManager
	Bus     domain.SignalBus
	Limiter domain.RateLimiter
	Redis   bool

	// Checks are the dependency probes reported by /api/health.
	Checks map[string]handler.HealthCheck

	// Persistence
	Rules    domain.AlertRuleRepository
	Quotes   domain.QuoteStore
	History  domain.OpportunityStore
	AlertLog domain.AlertLogStore
	Archiver domain.Archiver

	// Scanner core
	Venues     *venue.Registry
	Fees       *fees.Schedule
	Aggregator *aggregator.Aggregator
	Calculator *arbitrage.Calculator
	Notifier   *notify.Notifier
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that releases connections.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.HealthCheck)}

	// --- Redis, with the in-process stores as fallback ---
	var primary domain.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			logger.WarnContext(ctx, "redis unavailable, running on in-process cache",
				slog.String("addr", cfg.Redis.Addr),
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, func() { _ = redisClient.Close() })
			primary = redis.NewKV(redisClient)
			deps.Locks = redis.NewLockManager(redisClient)
			deps.Bus = redis.NewSignalBus(redisClient)
			deps.Limiter = redis.NewRateLimiter(redisClient)
			deps.Redis = true
			deps.Checks["redis"] = redisClient.Ping
		}
	}
	deps.Cache = cache.NewFailover(primary, memory.NewCache(), cache.DefaultRetryAfter, logger)
	if !deps.Redis {
		deps.Locks = memory.NewLockManager()
		deps.Bus = memory.NewBus()
		deps.Limiter = memory.NewRateLimiter(10 * cfg.Server.RateWindow.Duration)
	}

	// --- PostgreSQL ---
	if cfg.Database.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Checks["postgres"] = pgClient.Ping

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Rules = postgres.NewAlertRuleStore(pool)
		deps.Quotes = postgres.NewQuoteStore(pool)
		deps.History = postgres.NewOpportunityStore(pool)
		deps.AlertLog = postgres.NewAlertLogStore(pool)
	}

	// --- S3 snapshot archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable at startup; archives may fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		deps.Checks["s3"] = s3Client.Health
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix, logger)
	}

	// --- Venues and pricing ---
	venueCfgs := make([]venue.Config, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		venueCfgs = append(venueCfgs, venue.Config{
			ID:            vc.ID,
			Name:          vc.Name,
			Kind:          domain.VenueKind(strings.ToLower(vc.Kind)),
			Source:        vc.Source,
			BaseURL:       vc.BaseURL,
			RatePerSecond: vc.RatePerSecond,
			Burst:         vc.Burst,
		})
	}
	registry, err := venue.BuildRegistry(venueCfgs)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Venues = registry

	deps.Fees = fees.NewSchedule(feeEntries(cfg.Fees), fees.Defaults{
		TradingFee: decimal.NewFromFloat(cfg.Fees.DefaultTradingFee),
		Withdrawal: decimalMap(cfg.Fees.DefaultWithdrawal),
		Network:    cfg.Fees.DefaultNetwork,
	})
	deps.Calculator = arbitrage.NewCalculator(deps.Fees, cfg.Fees.DefaultNetwork)

	store := fallback.NewStore(deps.Cache,
		cfg.Scanner.QuoteCacheTTL.Duration,
		cfg.Scanner.SnapshotCacheTTL.Duration,
		sampleTable(cfg.Samples),
	)
	deps.Aggregator = aggregator.New(
		deps.Venues.Sources(),
		store,
		aggregator.NewValidator(bounds(cfg.Validation.Bounds), decimal.NewFromFloat(cfg.Validation.MaxSpreadFraction)),
		aggregator.Options{
			Cryptos:      cfg.Scanner.Cryptos,
			Fiat:         cfg.Scanner.Fiat,
			VenueTimeout: cfg.Scanner.VenueTimeout.Duration,
		},
		logger,
	)

	deps.Notifier = notify.NewNotifier(senders(cfg.Notify), logger)

	return deps, cleanup, nil
}

// alertRules merges database rules (when configured) with the rules declared
// in the config file.
func (d *Dependencies) alertRules(cfg *config.Config) domain.AlertRuleStore {
	static := staticRules(cfg.Alerts.Rules)
	if d.Rules == nil {
		return static
	}
	return alert.MergedRules{d.Rules, static}
}

func senders(cfg config.NotifyConfig) []notify.Sender {
	var out []notify.Sender
	if cfg.TelegramToken != "" {
		out = append(out, notify.NewTelegramSender(cfg.TelegramToken, ""))
	}
	if cfg.ResendAPIKey != "" {
		out = append(out, notify.NewEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, ""))
	}
	if cfg.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.WebhookURL != "" {
		out = append(out, notify.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret))
	}
	return out
}

func staticRules(rules []config.AlertRuleConfig) alert.StaticRules {
	out := make(alert.StaticRules, 0, len(rules))
	for i, r := range rules {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("config-%d", i+1)
		}
		out = append(out, domain.AlertRule{
			ID:               id,
			UserID:           r.UserID,
			Crypto:           strings.ToUpper(r.Crypto),
			MinSpreadPercent: decimal.NewFromFloat(r.MinSpreadPercent),
			BuyVenues:        r.BuyVenues,
			SellVenues:       r.SellVenues,
			Active:           true,
			NotifyTelegram:   r.NotifyTelegram,
			NotifyEmail:      r.NotifyEmail,
			NotifyDiscord:    r.NotifyDiscord,
			NotifyWebhook:    r.NotifyWebhook,
			Recipient: domain.Recipient{
				TelegramChatID: r.TelegramChatID,
				Email:          r.Email,
			},
		})
	}
	return out
}

func feeEntries(cfg config.FeesConfig) []domain.FeeEntry {
	out := make([]domain.FeeEntry, 0, len(cfg.Venues))
	for id, v := range cfg.Venues {
		w := make(map[string]map[string]decimal.Decimal, len(v.Withdrawal))
		for crypto, byNet := range v.Withdrawal {
			w[crypto] = decimalMap(byNet)
		}
		out = append(out, domain.FeeEntry{
			Venue:             id,
			TradingFee:        decimal.NewFromFloat(v.TradingFee),
			Withdrawal:        w,
			FiatDepositFee:    decimal.NewFromFloat(v.FiatDepositFee),
			FiatWithdrawalFee: decimal.NewFromFloat(v.FiatWithdrawalFee),
		})
	}
	return out
}

func sampleTable(cfg config.SamplesConfig) *fallback.SampleTable {
	if len(cfg.Prices) == 0 {
		return nil
	}
	prices := make(map[string]map[string]fallback.SamplePrice, len(cfg.Prices))
	for venueID, row := range cfg.Prices {
		out := make(map[string]fallback.SamplePrice, len(row))
		for crypto, p := range row {
			out[crypto] = fallback.SamplePrice{
				Buy:  decimal.NewFromFloat(p.Buy),
				Sell: decimal.NewFromFloat(p.Sell),
			}
		}
		prices[venueID] = out
	}
	return fallback.NewSampleTable(cfg.Fiat, prices)
}

func bounds(cfg map[string]config.BoundsConfig) map[string]aggregator.Bounds {
	out := make(map[string]aggregator.Bounds, len(cfg))
	for crypto, b := range cfg {
		out[crypto] = aggregator.Bounds{
			Min: decimal.NewFromFloat(b.Min),
			Max: decimal.NewFromFloat(b.Max),
		}
	}
	return out
}

func decimalMap(m map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}
