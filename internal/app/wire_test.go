package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/alert"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offlineConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Redis.Enabled = false
	cfg.Database.Enabled = false
	cfg.S3.Enabled = false
	return &cfg
}

func TestWireOffline(t *testing.T) {
	cfg := offlineConfig()
	cfg.Notify.TelegramToken = "token"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, deps.Redis)
	assert.NotNil(t, deps.Cache)
	assert.NotNil(t, deps.Locks)
	assert.NotNil(t, deps.Bus)
	assert.NotNil(t, deps.Limiter)
	assert.Nil(t, deps.Rules)
	assert.Nil(t, deps.Quotes)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.Checks)

	assert.Len(t, deps.Venues.Venues(), len(cfg.Venues))
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, deps.Aggregator.Cryptos())
	assert.Equal(t, []domain.Channel{domain.ChannelDiscord, domain.ChannelTelegram}, deps.Notifier.Channels())

	entry := deps.Fees.EntryOrDefault("luno")
	assert.True(t, entry.TradingFee.Equal(decimal.RequireFromString("0.001")))
}

func TestWireRejectsBadVenueKind(t *testing.T) {
	cfg := offlineConfig()
	cfg.Venues = []config.VenueConfig{{ID: "x", Kind: "otc", Source: "none", Enabled: true}}

	_, _, err := Wire(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStaticRules(t *testing.T) {
	rules := staticRules([]config.AlertRuleConfig{
		{UserID: "u1", Crypto: "usdt", MinSpreadPercent: 1.5, NotifyTelegram: true, TelegramChatID: "42"},
		{ID: "named", UserID: "u2", NotifyEmail: true, Email: "a@b.c"},
	})
	require.Len(t, rules, 2)
	assert.Equal(t, "config-1", rules[0].ID)
	assert.Equal(t, "USDT", rules[0].Crypto)
	assert.True(t, rules[0].MinSpreadPercent.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, rules[0].Active)
	assert.Equal(t, "42", rules[0].Recipient.TelegramChatID)
	assert.Equal(t, "named", rules[1].ID)
}

func TestAlertRulesWithoutDatabase(t *testing.T) {
	cfg := offlineConfig()
	cfg.Alerts.Rules = []config.AlertRuleConfig{{UserID: "u1", NotifyDiscord: true}}
	deps := &Dependencies{}

	store := deps.alertRules(cfg)
	_, ok := store.(alert.StaticRules)
	assert.True(t, ok)

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestFeeEntries(t *testing.T) {
	entries := feeEntries(config.FeesConfig{
		Venues: map[string]config.VenueFeeConfig{
			"a": {TradingFee: 0.01, Withdrawal: map[string]map[string]float64{"USDT": {"trc20": 1}}},
		},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Venue)
	assert.True(t, entries[0].Withdrawal["USDT"]["trc20"].Equal(decimal.NewFromInt(1)))
}
