package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
)

// PassphraseEnv names the environment variable holding the passphrase used to
// open "enc:" sealed secrets.
const PassphraseEnv = "ARBSCAN_SECRETS_PASSPHRASE"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBSCAN_* environment variable overrides, opens
// sealed secrets, and returns the final Config. An empty path skips the file.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := openSecrets(&cfg, os.Getenv(PassphraseEnv)); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Cryptos, "ARBSCAN_SCANNER_CRYPTOS")
	setStr(&cfg.Scanner.Fiat, "ARBSCAN_SCANNER_FIAT")
	setDuration(&cfg.Scanner.Interval, "ARBSCAN_SCANNER_INTERVAL")
	setDuration(&cfg.Scanner.VenueTimeout, "ARBSCAN_SCANNER_VENUE_TIMEOUT")
	setDuration(&cfg.Scanner.QuoteCacheTTL, "ARBSCAN_SCANNER_QUOTE_CACHE_TTL")
	setDuration(&cfg.Scanner.SnapshotCacheTTL, "ARBSCAN_SCANNER_SNAPSHOT_CACHE_TTL")
	setInt(&cfg.Scanner.TopN, "ARBSCAN_SCANNER_TOP_N")
	setFloat64(&cfg.Scanner.DefaultAmount, "ARBSCAN_SCANNER_DEFAULT_AMOUNT")
	setFloat64(&cfg.Scanner.MinSpreadPercent, "ARBSCAN_SCANNER_MIN_SPREAD_PERCENT")
	setInt(&cfg.Scanner.HistoryRetentionDays, "ARBSCAN_SCANNER_HISTORY_RETENTION_DAYS")
	setStr(&cfg.Scanner.RetentionCron, "ARBSCAN_SCANNER_RETENTION_CRON")

	// ── Validation ──
	setFloat64(&cfg.Validation.MaxSpreadFraction, "ARBSCAN_VALIDATION_MAX_SPREAD_FRACTION")

	// ── Alerts ──
	setBool(&cfg.Alerts.Enabled, "ARBSCAN_ALERTS_ENABLED")
	setDuration(&cfg.Alerts.Cooldown, "ARBSCAN_ALERTS_COOLDOWN")

	// ── Database ──
	setBool(&cfg.Database.Enabled, "ARBSCAN_DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "ARBSCAN_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ARBSCAN_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBSCAN_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBSCAN_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARBSCAN_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBSCAN_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBSCAN_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ARBSCAN_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBSCAN_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBSCAN_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "ARBSCAN_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSCAN_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "ARBSCAN_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform alias
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBSCAN_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBSCAN_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ARBSCAN_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.ResendAPIKey, "ARBSCAN_NOTIFY_RESEND_API_KEY")
	setStr(&cfg.Notify.EmailFrom, "ARBSCAN_NOTIFY_EMAIL_FROM")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "ARBSCAN_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookSecret, "ARBSCAN_NOTIFY_WEBHOOK_SECRET")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
}

// secretFields lists every field that may hold a sealed value, keyed by its
// TOML path for error messages.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"database.dsn":               &cfg.Database.DSN,
		"database.password":          &cfg.Database.Password,
		"redis.password":             &cfg.Redis.Password,
		"s3.access_key":              &cfg.S3.AccessKey,
		"s3.secret_key":              &cfg.S3.SecretKey,
		"server.api_key":             &cfg.Server.APIKey,
		"notify.telegram_token":      &cfg.Notify.TelegramToken,
		"notify.resend_api_key":      &cfg.Notify.ResendAPIKey,
		"notify.discord_webhook_url": &cfg.Notify.DiscordWebhookURL,
		"notify.webhook_secret":      &cfg.Notify.WebhookSecret,
	}
}

// openSecrets replaces every "enc:" sealed value with its plaintext.
func openSecrets(cfg *Config, passphrase string) error {
	for name, field := range secretFields(cfg) {
		if !crypto.IsSealed(*field) {
			continue
		}
		plain, err := crypto.Open(*field, passphrase)
		if err != nil {
			return fmt.Errorf("config: open %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
