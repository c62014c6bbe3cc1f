package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/cache/memory"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/fees"
	"github.com/alanyoungcy/arbscanner/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeSnapshots struct {
	snaps map[string]domain.Snapshot
}

func (f *fakeSnapshots) Cryptos() []string { return []string{"BTC", "USDT"} }
func (f *fakeSnapshots) Fiat() string      { return "NGN" }

func (f *fakeSnapshots) CheckPair(crypto, fiat string) (string, string, error) {
	if crypto != "BTC" && crypto != "USDT" {
		return "", "", domain.ErrInvalidInput
	}
	return crypto, "NGN", nil
}

func (f *fakeSnapshots) Aggregate(_ context.Context, crypto, fiat string, _ bool) (domain.Snapshot, error) {
	if _, _, err := f.CheckPair(crypto, fiat); err != nil {
		return domain.Snapshot{}, err
	}
	if s, ok := f.snaps[crypto]; ok {
		return s, nil
	}
	return domain.Snapshot{Crypto: crypto, Fiat: "NGN"}, nil
}

type venues []domain.Venue

func (v venues) Venues() []domain.Venue { return v }

func quote(venue, buy, sell string) domain.Quote {
	return domain.Quote{Venue: venue, Crypto: "USDT", Fiat: "NGN", BuyPrice: d(buy), SellPrice: d(sell), Tier: domain.TierLive}
}

func newService(t *testing.T, cache domain.Cache) *ScannerService {
	t.Helper()
	snaps := &fakeSnapshots{snaps: map[string]domain.Snapshot{
		"USDT": {Crypto: "USDT", Fiat: "NGN", Quotes: []domain.Quote{
			quote("a", "1580", "1575"),
			quote("b", "1610", "1650"),
			quote("c", "1600", "1620"),
		}},
	}}
	sched := fees.NewSchedule(nil, fees.Defaults{TradingFee: decimal.Zero, Withdrawal: map[string]decimal.Decimal{"USDT": decimal.Zero}, Network: "trc20"})
	return NewScannerService(snaps, arbitrage.NewCalculator(sched, "trc20"), sched,
		venues{{ID: "a"}, {ID: "b"}, {ID: "c"}}, cache, nil, nil, testLogger())
}

func TestFindOpportunitiesAllCryptos(t *testing.T) {
	svc := newService(t, memory.NewCache())
	res, err := svc.FindOpportunities(context.Background(), "", d("0.5"), d("100000"), 10)
	require.NoError(t, err)
	assert.True(t, res.DataAvailable)
	require.NotEmpty(t, res.Opportunities)
	assert.Equal(t, "a", res.Opportunities[0].BuyVenue)
	assert.Equal(t, "b", res.Opportunities[0].SellVenue)
	for i := 1; i < len(res.Opportunities); i++ {
		assert.False(t, res.Opportunities[i].NetProfitPercent.GreaterThan(res.Opportunities[i-1].NetProfitPercent))
	}
}

func TestFindOpportunitiesNoData(t *testing.T) {
	svc := newService(t, memory.NewCache())
	res, err := svc.FindOpportunities(context.Background(), "BTC", d("0.5"), d("100000"), 10)
	require.NoError(t, err)
	assert.False(t, res.DataAvailable)
	assert.NotNil(t, res.Opportunities)
	assert.Empty(t, res.Opportunities)
}

func TestFindOpportunitiesInvalidInput(t *testing.T) {
	svc := newService(t, memory.NewCache())
	_, err := svc.FindOpportunities(context.Background(), "DOGE", d("0.5"), d("100000"), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.FindOpportunities(context.Background(), "", d("0.5"), d("0"), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEvaluatePair(t *testing.T) {
	svc := newService(t, memory.NewCache())
	ctx := context.Background()

	opp, err := svc.EvaluatePair(ctx, "a", "b", "USDT", d("100000"))
	require.NoError(t, err)
	assert.Equal(t, "NGN", opp.Fiat)
	assert.True(t, opp.BuyPrice.Equal(d("1580")))
	assert.True(t, opp.SellPrice.Equal(d("1650")))
	assert.True(t, opp.Profitable)

	_, err = svc.EvaluatePair(ctx, "a", "zzz", "USDT", d("100000"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.EvaluatePair(ctx, "a", "a", "USDT", d("100000"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetFeeSchedule(t *testing.T) {
	svc := newService(t, memory.NewCache())
	e, err := svc.GetFeeSchedule("a")
	require.NoError(t, err)
	assert.Equal(t, "a", e.Venue)

	_, err = svc.GetFeeSchedule("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTopOpportunities(t *testing.T) {
	cache := memory.NewCache()
	svc := newService(t, cache)
	ctx := context.Background()

	top, err := svc.TopOpportunities(ctx)
	require.NoError(t, err)
	assert.Empty(t, top.Opportunities)

	raw, err := json.Marshal(pipeline.TopOpportunities{
		TickID:        "t1",
		GeneratedAt:   time.Now().UTC(),
		Opportunities: []domain.Opportunity{{Crypto: "USDT", BuyVenue: "a", SellVenue: "b"}},
	})
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, pipeline.TopKey, raw, time.Minute))

	top, err = svc.TopOpportunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", top.TickID)
	assert.Len(t, top.Opportunities, 1)
}

func TestRecentOpportunitiesDisabled(t *testing.T) {
	svc := newService(t, memory.NewCache())
	_, err := svc.RecentOpportunities(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type memRules struct {
	rules []domain.AlertRule
}

func (m *memRules) ListActive(context.Context) ([]domain.AlertRule, error) { return m.rules, nil }
func (m *memRules) List(_ context.Context, user string) ([]domain.AlertRule, error) {
	var out []domain.AlertRule
	for _, r := range m.rules {
		if r.UserID == user {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memRules) Create(_ context.Context, r domain.AlertRule) (domain.AlertRule, error) {
	m.rules = append(m.rules, r)
	return r, nil
}
func (m *memRules) Delete(context.Context, string) error { return nil }

func TestAlertServiceCreate(t *testing.T) {
	repo := &memRules{}
	svc := NewAlertService(repo, venues{{ID: "a"}, {ID: "b"}}, []string{"USDT", "BTC"}, testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.AlertRule{
		UserID:           "u1",
		Crypto:           "usdt",
		MinSpreadPercent: d("2"),
		BuyVenues:        []string{"a"},
		NotifyTelegram:   true,
		Recipient:        domain.Recipient{TelegramChatID: "42"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	assert.Equal(t, "USDT", created.Crypto)

	rules, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	_, err = svc.Create(ctx, domain.AlertRule{
		UserID:      "u1",
		Crypto:      "DOGE",
		SellVenues:  []string{"zzz"},
		NotifyEmail: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), `unsupported crypto "DOGE"`)
	assert.Contains(t, err.Error(), `unknown exchange "zzz"`)
	assert.Contains(t, err.Error(), "email is required")
}
