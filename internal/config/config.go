// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Scanner    ScannerConfig    `toml:"scanner"`
	Validation ValidationConfig `toml:"validation"`
	Venues     []VenueConfig    `toml:"venues"`
	Fees       FeesConfig       `toml:"fees"`
	Samples    SamplesConfig    `toml:"samples"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Redis      RedisConfig      `toml:"redis"`
	Database   DatabaseConfig   `toml:"database"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ScannerConfig controls the aggregation cycle.
type ScannerConfig struct {
	Cryptos          []string `toml:"cryptos"`
	Fiat             string   `toml:"fiat"`
	Interval         duration `toml:"interval"`
	VenueTimeout     duration `toml:"venue_timeout"`
	QuoteCacheTTL    duration `toml:"quote_cache_ttl"`
	SnapshotCacheTTL duration `toml:"snapshot_cache_ttl"`
	TopN             int      `toml:"top_n"`
	TopTTL           duration `toml:"top_ttl"`
	DefaultAmount    float64  `toml:"default_amount"`
	MinSpreadPercent float64  `toml:"min_spread_percent"`
	// HistoryRetentionDays prunes opportunity and quote history older than
	// this many days, on the RetentionCron schedule. Zero keeps everything.
	HistoryRetentionDays int    `toml:"history_retention_days"`
	RetentionCron        string `toml:"retention_cron"`
}

// ValidationConfig holds the live-quote sanity thresholds. Bounds are keyed by
// crypto symbol and expressed in the scanner's fiat.
type ValidationConfig struct {
	MaxSpreadFraction float64                 `toml:"max_spread_fraction"`
	Bounds            map[string]BoundsConfig `toml:"bounds"`
}

// BoundsConfig is an inclusive absolute price range.
type BoundsConfig struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

// VenueConfig declares one trading venue. Source selects the live PriceSource
// implementation; "none" means the venue resolves from cache and samples only.
type VenueConfig struct {
	ID            string  `toml:"id"`
	Name          string  `toml:"name"`
	Kind          string  `toml:"kind"`
	Source        string  `toml:"source"`
	BaseURL       string  `toml:"base_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
	Enabled       bool    `toml:"enabled"`
}

// FeesConfig holds the static fee table and the conservative defaults used for
// venues or cryptos missing from it.
type FeesConfig struct {
	DefaultTradingFee float64                   `toml:"default_trading_fee"`
	DefaultNetwork    string                    `toml:"default_network"`
	DefaultWithdrawal map[string]float64        `toml:"default_withdrawal"`
	Venues            map[string]VenueFeeConfig `toml:"venues"`
}

// VenueFeeConfig is one venue's fees. Withdrawal is keyed by crypto then by
// network; the "default" network holds the general fee.
type VenueFeeConfig struct {
	TradingFee        float64                       `toml:"trading_fee"`
	Withdrawal        map[string]map[string]float64 `toml:"withdrawal"`
	FiatDepositFee    float64                       `toml:"fiat_deposit_fee"`
	FiatWithdrawalFee float64                       `toml:"fiat_withdrawal_fee"`
}

// SamplesConfig is the last-resort price table, keyed by venue then crypto.
type SamplesConfig struct {
	Fiat   string                                 `toml:"fiat"`
	Prices map[string]map[string]SamplePriceConfig `toml:"prices"`
}

// SamplePriceConfig is one static buy/sell pair.
type SamplePriceConfig struct {
	Buy  float64 `toml:"buy"`
	Sell float64 `toml:"sell"`
}

// AlertsConfig controls the alert dispatcher. Rules declared here are used
// when no database is configured, and are merged with database rules
// otherwise.
type AlertsConfig struct {
	Enabled  bool              `toml:"enabled"`
	Cooldown duration          `toml:"cooldown"`
	Rules    []AlertRuleConfig `toml:"rules"`
}

// AlertRuleConfig is a statically declared alert rule.
type AlertRuleConfig struct {
	ID               string   `toml:"id"`
	UserID           string   `toml:"user_id"`
	Crypto           string   `toml:"crypto"`
	MinSpreadPercent float64  `toml:"min_spread_percent"`
	BuyVenues        []string `toml:"buy_exchanges"`
	SellVenues       []string `toml:"sell_exchanges"`
	NotifyTelegram   bool     `toml:"notify_telegram"`
	NotifyEmail      bool     `toml:"notify_email"`
	NotifyDiscord    bool     `toml:"notify_discord"`
	NotifyWebhook    bool     `toml:"notify_webhook"`
	TelegramChatID   string   `toml:"telegram_chat_id"`
	Email            string   `toml:"email"`
}

// RedisConfig holds Redis connection parameters. When Redis is disabled or
// unreachable the scanner runs on the in-process cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the snapshot
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	ResendAPIKey      string `toml:"resend_api_key"`
	EmailFrom         string `toml:"email_from"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	WebhookURL        string `toml:"webhook_url"`
	WebhookSecret     string `toml:"webhook_secret"`
}

// Defaults returns a Config populated with reasonable default values. Venue,
// fee and sample tables reflect the NGN market the scanner was built for.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			Cryptos:              []string{"USDT", "BTC", "ETH"},
			Fiat:                 "NGN",
			Interval:             duration{60 * time.Second},
			VenueTimeout:         duration{8 * time.Second},
			QuoteCacheTTL:        duration{5 * time.Minute},
			SnapshotCacheTTL:     duration{60 * time.Second},
			TopN:                 10,
			TopTTL:               duration{2 * time.Minute},
			DefaultAmount:        100000,
			MinSpreadPercent:     0.5,
			HistoryRetentionDays: 30,
			RetentionCron:        "0 3 * * *",
		},
		Validation: ValidationConfig{
			MaxSpreadFraction: 0.10,
			Bounds: map[string]BoundsConfig{
				"USDT": {Min: 500, Max: 5000},
				"BTC":  {Min: 20_000_000, Max: 500_000_000},
				"ETH":  {Min: 1_000_000, Max: 20_000_000},
			},
		},
		Venues:  defaultVenues(),
		Fees:    defaultFees(),
		Samples: defaultSamples(),
		Alerts: AlertsConfig{
			Enabled:  true,
			Cooldown: duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscanner",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbscanner-archive",
			Prefix:         "snapshots",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			EmailFrom: "ArbScanner <alerts@arbscanner.ng>",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

func defaultVenues() []VenueConfig {
	return []VenueConfig{
		{ID: "binance_p2p", Name: "Binance P2P", Kind: "p2p", Source: "binance_p2p",
			BaseURL: "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search", RatePerSecond: 2, Burst: 2, Enabled: true},
		{ID: "bybit_p2p", Name: "Bybit P2P", Kind: "p2p", Source: "bybit_p2p",
			BaseURL: "https://api2.bybit.com/fiat/otc/item/online", RatePerSecond: 2, Burst: 2, Enabled: true},
		{ID: "quidax", Name: "Quidax", Kind: "exchange", Source: "quidax",
			BaseURL: "https://www.quidax.com/api/v1", RatePerSecond: 5, Burst: 5, Enabled: true},
		{ID: "luno", Name: "Luno", Kind: "exchange", Source: "luno",
			BaseURL: "https://api.luno.com/api/1", RatePerSecond: 5, Burst: 5, Enabled: true},
		{ID: "remitano", Name: "Remitano", Kind: "p2p", Source: "none", Enabled: true},
		{ID: "patricia", Name: "Patricia", Kind: "exchange", Source: "none", Enabled: true},
		{ID: "paxful", Name: "Paxful", Kind: "p2p", Source: "none", Enabled: true},
	}
}

func defaultFees() FeesConfig {
	general := func(usdt, btc, eth float64) map[string]map[string]float64 {
		return map[string]map[string]float64{
			"USDT": {"default": usdt},
			"BTC":  {"default": btc},
			"ETH":  {"default": eth},
		}
	}
	binance := general(1, 0.0000012, 0.0016)
	binance["USDT"] = map[string]float64{"trc20": 1, "bep20": 0.29}
	bybit := general(1, 0.0002, 0.0015)
	bybit["USDT"] = map[string]float64{"trc20": 1, "bep20": 0.3}

	return FeesConfig{
		DefaultTradingFee: 0.005,
		DefaultNetwork:    "trc20",
		DefaultWithdrawal: map[string]float64{"USDT": 2, "BTC": 0.0005, "ETH": 0.005},
		Venues: map[string]VenueFeeConfig{
			"binance_p2p": {TradingFee: 0, Withdrawal: binance},
			"bybit_p2p":   {TradingFee: 0, Withdrawal: bybit},
			"quidax":      {TradingFee: 0.005, Withdrawal: general(2, 0.0002, 0.005), FiatWithdrawalFee: 0.005},
			"luno":        {TradingFee: 0.001, Withdrawal: general(1, 0.0001, 0.005)},
			"remitano":    {TradingFee: 0.01, Withdrawal: general(2, 0.0005, 0.005), FiatWithdrawalFee: 0.005},
			"patricia":    {TradingFee: 0.005, Withdrawal: general(2, 0.0003, 0.005), FiatWithdrawalFee: 0.01},
			"paxful":      {TradingFee: 0.01, Withdrawal: general(2, 0.0005, 0.005)},
		},
	}
}

func defaultSamples() SamplesConfig {
	row := func(usdtB, usdtS, btcB, btcS, ethB, ethS float64) map[string]SamplePriceConfig {
		return map[string]SamplePriceConfig{
			"USDT": {Buy: usdtB, Sell: usdtS},
			"BTC":  {Buy: btcB, Sell: btcS},
			"ETH":  {Buy: ethB, Sell: ethS},
		}
	}
	return SamplesConfig{
		Fiat: "NGN",
		Prices: map[string]map[string]SamplePriceConfig{
			"binance_p2p": row(1580, 1575, 155_000_000, 154_500_000, 4_100_000, 4_080_000),
			"bybit_p2p":   row(1582, 1573, 155_200_000, 154_300_000, 4_110_000, 4_070_000),
			"quidax":      row(1585, 1570, 155_500_000, 154_000_000, 4_120_000, 4_060_000),
			"luno":        row(1583, 1572, 155_100_000, 154_400_000, 4_105_000, 4_075_000),
			"remitano":    row(1588, 1568, 155_800_000, 153_800_000, 4_130_000, 4_050_000),
			"patricia":    row(1590, 1565, 156_000_000, 153_500_000, 4_140_000, 4_040_000),
			"paxful":      row(1592, 1563, 156_200_000, 153_300_000, 4_150_000, 4_030_000),
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the live PriceSource implementations.
var validSources = map[string]bool{
	"binance_p2p": true,
	"bybit_p2p":   true,
	"quidax":      true,
	"luno":        true,
	"none":        true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scanner
	if len(c.Scanner.Cryptos) == 0 {
		errs = append(errs, "scanner: cryptos must not be empty")
	}
	if c.Scanner.Fiat == "" {
		errs = append(errs, "scanner: fiat must not be empty")
	}
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0")
	}
	if c.Scanner.VenueTimeout.Duration <= 0 {
		errs = append(errs, "scanner: venue_timeout must be > 0")
	}
	if c.Scanner.Interval.Duration > 0 && c.Scanner.VenueTimeout.Duration >= c.Scanner.Interval.Duration {
		errs = append(errs, "scanner: venue_timeout must be shorter than interval")
	}
	if c.Scanner.QuoteCacheTTL.Duration <= 0 || c.Scanner.SnapshotCacheTTL.Duration <= 0 {
		errs = append(errs, "scanner: quote_cache_ttl and snapshot_cache_ttl must be > 0")
	}
	if c.Scanner.TopN < 1 {
		errs = append(errs, "scanner: top_n must be >= 1")
	}
	if c.Scanner.DefaultAmount <= 0 {
		errs = append(errs, "scanner: default_amount must be > 0")
	}
	if c.Scanner.MinSpreadPercent < 0 {
		errs = append(errs, "scanner: min_spread_percent must be >= 0")
	}
	if c.Scanner.HistoryRetentionDays < 0 {
		errs = append(errs, "scanner: history_retention_days must be >= 0")
	}
	if c.Scanner.HistoryRetentionDays > 0 && len(strings.Fields(c.Scanner.RetentionCron)) != 5 {
		errs = append(errs, fmt.Sprintf("scanner: retention_cron must have 5 fields, got %q", c.Scanner.RetentionCron))
	}

	// Validation
	if c.Validation.MaxSpreadFraction <= 0 || c.Validation.MaxSpreadFraction > 1 {
		errs = append(errs, fmt.Sprintf("validation: max_spread_fraction must be in (0, 1], got %g", c.Validation.MaxSpreadFraction))
	}
	for _, crypto := range c.Scanner.Cryptos {
		b, ok := c.Validation.Bounds[crypto]
		if !ok {
			errs = append(errs, fmt.Sprintf("validation: missing bounds for %s", crypto))
			continue
		}
		if b.Min <= 0 || b.Max <= b.Min {
			errs = append(errs, fmt.Sprintf("validation: bounds for %s must satisfy 0 < min < max", crypto))
		}
	}

	// Venues
	seen := make(map[string]bool, len(c.Venues))
	enabled := 0
	for i, v := range c.Venues {
		if v.ID == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: id must not be empty", i))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("venues: duplicate id %q", v.ID))
		}
		seen[v.ID] = true
		if v.Kind != "p2p" && v.Kind != "exchange" {
			errs = append(errs, fmt.Sprintf("venues.%s: kind must be p2p or exchange, got %q", v.ID, v.Kind))
		}
		if !validSources[v.Source] {
			errs = append(errs, fmt.Sprintf("venues.%s: unknown source %q", v.ID, v.Source))
		}
		if v.Source != "none" && v.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: base_url is required for source %s", v.ID, v.Source))
		}
		if v.Enabled {
			enabled++
		}
	}
	if enabled < 2 {
		errs = append(errs, "venues: at least two venues must be enabled")
	}

	// Fees
	if c.Fees.DefaultTradingFee <= 0 {
		errs = append(errs, "fees: default_trading_fee must be > 0")
	}
	for id, f := range c.Fees.Venues {
		if f.TradingFee < 0 || f.FiatDepositFee < 0 || f.FiatWithdrawalFee < 0 {
			errs = append(errs, fmt.Sprintf("fees.venues.%s: fees must be >= 0", id))
		}
	}

	// Alerts
	if c.Alerts.Enabled && c.Alerts.Cooldown.Duration <= 0 {
		errs = append(errs, "alerts: cooldown must be > 0 when enabled")
	}
	for i, r := range c.Alerts.Rules {
		if r.UserID == "" {
			errs = append(errs, fmt.Sprintf("alerts.rules[%d]: user_id must not be empty", i))
		}
		if r.MinSpreadPercent < 0 {
			errs = append(errs, fmt.Sprintf("alerts.rules[%d]: min_spread_percent must be >= 0", i))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Database
	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Mode != "scan" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
