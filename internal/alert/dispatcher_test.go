package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/cache/memory"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDeliverer struct {
	mu    sync.Mutex
	fail  map[domain.Channel]bool
	calls []domain.Alert
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ domain.Recipient, a domain.Alert, channels []domain.Channel) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a)
	var ok []domain.Channel
	var failed int
	for _, ch := range channels {
		if f.fail[ch] {
			failed++
			continue
		}
		ok = append(ok, ch)
	}
	if failed > 0 {
		return ok, errors.New("send failed")
	}
	return ok, nil
}

type fakeAlertLog struct {
	entries []domain.AlertLogEntry
}

func (f *fakeAlertLog) Record(_ context.Context, e domain.AlertLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func opp(crypto, buy, sell, spread string) domain.Opportunity {
	return domain.Opportunity{
		Crypto:             crypto,
		Fiat:               "NGN",
		BuyVenue:           buy,
		SellVenue:          sell,
		GrossSpreadPercent: decimal.RequireFromString(spread),
		Profitable:         true,
	}
}

func rule(id string) domain.AlertRule {
	return domain.AlertRule{
		ID:               id,
		UserID:           "user-" + id,
		MinSpreadPercent: decimal.RequireFromString("1"),
		Active:           true,
		NotifyTelegram:   true,
		Recipient:        domain.Recipient{TelegramChatID: "42"},
	}
}

func newDispatcher(rules []domain.AlertRule, d *fakeDeliverer, log domain.AlertLogStore) (*Dispatcher, *memory.Cache) {
	cache := memory.NewCache()
	return NewDispatcher(StaticRules(rules), NewDedup(cache, 5*time.Minute), d, log, testLogger()), cache
}

func TestMatches(t *testing.T) {
	r := rule("a")
	r.Crypto = "usdt"
	r.BuyVenues = []string{"quidax"}

	assert.True(t, Matches(r, opp("USDT", "quidax", "luno", "1.5")))
	assert.True(t, Matches(r, opp("USDT", "quidax", "luno", "1")), "threshold is inclusive")
	assert.False(t, Matches(r, opp("USDT", "quidax", "luno", "0.99")))
	assert.False(t, Matches(r, opp("BTC", "quidax", "luno", "5")))
	assert.False(t, Matches(r, opp("USDT", "luno", "quidax", "5")))

	r.Crypto = ""
	r.BuyVenues = nil
	r.SellVenues = []string{"binance_p2p"}
	assert.True(t, Matches(r, opp("ETH", "luno", "binance_p2p", "2")))
	assert.False(t, Matches(r, opp("ETH", "luno", "quidax", "2")))
}

func TestDispatch_DedupWithinCooldown(t *testing.T) {
	d := &fakeDeliverer{}
	log := &fakeAlertLog{}
	disp, _ := newDispatcher([]domain.AlertRule{rule("a")}, d, log)
	ctx := context.Background()

	opps := []domain.Opportunity{
		opp("USDT", "quidax", "binance_p2p", "2"),
		opp("USDT", "quidax", "binance_p2p", "2.5"),
	}
	n, err := disp.Dispatch(ctx, opps)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = disp.Dispatch(ctx, opps)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, d.calls, 1)
	require.Len(t, log.entries, 1)
	assert.Equal(t, "a", log.entries[0].RuleID)
	assert.Equal(t, []domain.Channel{domain.ChannelTelegram}, log.entries[0].Channels)
	assert.NotEmpty(t, log.entries[0].ID)
}

func TestDispatch_DistinctKeys(t *testing.T) {
	d := &fakeDeliverer{}
	disp, _ := newDispatcher([]domain.AlertRule{rule("a"), rule("b")}, d, nil)

	n, err := disp.Dispatch(context.Background(), []domain.Opportunity{
		opp("USDT", "quidax", "binance_p2p", "2"),
		opp("USDT", "luno", "binance_p2p", "2"),
		opp("BTC", "quidax", "binance_p2p", "2"),
		opp("USDT", "quidax", "luno", "0.5"), // below threshold
	})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestDispatch_AllChannelsFailReleasesKey(t *testing.T) {
	d := &fakeDeliverer{fail: map[domain.Channel]bool{domain.ChannelTelegram: true}}
	disp, cache := newDispatcher([]domain.AlertRule{rule("a")}, d, nil)
	ctx := context.Background()
	o := opp("USDT", "quidax", "binance_p2p", "2")

	n, err := disp.Dispatch(ctx, []domain.Opportunity{o})
	require.Error(t, err)
	assert.Equal(t, 0, n)

	held, err := cache.Exists(ctx, DedupKey("user-a", "quidax", "binance_p2p", "USDT"))
	require.NoError(t, err)
	assert.False(t, held)

	d.fail = nil
	n, err = disp.Dispatch(ctx, []domain.Opportunity{o})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatch_PartialFailureCounts(t *testing.T) {
	r := rule("a")
	r.NotifyEmail = true
	r.Recipient.Email = "x@example.com"
	d := &fakeDeliverer{fail: map[domain.Channel]bool{domain.ChannelEmail: true}}
	disp, _ := newDispatcher([]domain.AlertRule{r}, d, nil)

	n, err := disp.Dispatch(context.Background(), []domain.Opportunity{opp("USDT", "quidax", "luno", "2")})
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatch_SkipsInactiveAndChannelless(t *testing.T) {
	inactive := rule("a")
	inactive.Active = false
	silent := rule("b")
	silent.NotifyTelegram = false

	d := &fakeDeliverer{}
	disp, _ := newDispatcher([]domain.AlertRule{inactive, silent}, d, nil)
	n, err := disp.Dispatch(context.Background(), []domain.Opportunity{opp("USDT", "quidax", "luno", "2")})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.calls)
}

func TestMergedRules(t *testing.T) {
	a := rule("a")
	shadow := rule("a")
	shadow.UserID = "other"
	m := MergedRules{StaticRules{a}, StaticRules{shadow, rule("b")}}

	rules, err := m.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "user-a", rules[0].UserID)
	assert.Equal(t, "b", rules[1].ID)
}
