package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/pipeline"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePrices struct {
	snaps   map[string]domain.Snapshot
	history []domain.Quote
	refresh bool
}

func (f *fakePrices) Cryptos() []string { return []string{"BTC", "USDT"} }

func (f *fakePrices) GetSnapshot(_ context.Context, crypto, _ string, force bool) (domain.Snapshot, error) {
	f.refresh = force
	if crypto == "DOGE" {
		return domain.Snapshot{}, fmt.Errorf("unsupported crypto: %w", domain.ErrInvalidInput)
	}
	if s, ok := f.snaps[crypto]; ok {
		return s, nil
	}
	return domain.Snapshot{}, fmt.Errorf("boom")
}

func (f *fakePrices) PriceHistory(context.Context, string, time.Time) ([]domain.Quote, error) {
	if f.history == nil {
		return nil, fmt.Errorf("disabled: %w", domain.ErrNotFound)
	}
	return f.history, nil
}

func usdtSnapshot() domain.Snapshot {
	buy := domain.Quote{Venue: "a", Crypto: "USDT", Fiat: "NGN", BuyPrice: d("1500"), SellPrice: d("1490"), Tier: domain.TierLive}
	sell := domain.Quote{Venue: "b", Crypto: "USDT", Fiat: "NGN", BuyPrice: d("1540"), SellPrice: d("1530"), Tier: domain.TierSample}
	return domain.Snapshot{
		Crypto:   "USDT",
		Fiat:     "NGN",
		Quotes:   []domain.Quote{buy, sell},
		BestBuy:  &buy,
		BestSell: &sell,
		Statuses: map[string]domain.Tier{"a": domain.TierLive, "b": domain.TierSample},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetPrices(t *testing.T) {
	prices := &fakePrices{snaps: map[string]domain.Snapshot{"USDT": usdtSnapshot()}}
	h := NewPriceHandler(prices, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices/{crypto}", h.GetPrices)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/USDT?refresh=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, prices.refresh)

	body := decode(t, rec)
	assert.Equal(t, true, body["data_available"])
	assert.Equal(t, "mixed", body["data_source"])
	assert.Equal(t, "30", body["max_spread"])
	assert.Equal(t, "2", body["max_spread_percent"])
	assert.Len(t, body["exchanges"], 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/DOGE", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPricesDegrades(t *testing.T) {
	prices := &fakePrices{snaps: map[string]domain.Snapshot{"USDT": usdtSnapshot()}}
	h := NewPriceHandler(prices, testLogger())

	rec := httptest.NewRecorder()
	h.ListPrices(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	all := body["prices"].(map[string]any)
	assert.Equal(t, true, all["USDT"].(map[string]any)["data_available"])
	assert.Equal(t, false, all["BTC"].(map[string]any)["data_available"])
}

func TestPriceHistoryDisabled(t *testing.T) {
	h := NewPriceHandler(&fakePrices{}, testLogger())
	rec := httptest.NewRecorder()
	h.PriceHistory(rec, httptest.NewRequest(http.MethodGet, "/api/prices/USDT/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeOpps struct {
	gotMin, gotAmount decimal.Decimal
	gotLimit          int
	evalErr           error
}

func (f *fakeOpps) FindOpportunities(_ context.Context, _ string, min, amount decimal.Decimal, limit int) (service.OpportunityResult, error) {
	f.gotMin, f.gotAmount, f.gotLimit = min, amount, limit
	return service.OpportunityResult{
		Opportunities: []domain.Opportunity{{Crypto: "USDT", BuyVenue: "a", SellVenue: "b"}},
		DataAvailable: true,
	}, nil
}

func (f *fakeOpps) EvaluatePair(_ context.Context, buy, sell, crypto string, amount decimal.Decimal) (domain.Opportunity, error) {
	if f.evalErr != nil {
		return domain.Opportunity{}, f.evalErr
	}
	return domain.Opportunity{Crypto: crypto, BuyVenue: buy, SellVenue: sell, FiatAmount: amount}, nil
}

func (f *fakeOpps) TopOpportunities(context.Context) (pipeline.TopOpportunities, error) {
	return pipeline.TopOpportunities{TickID: "t1", Opportunities: []domain.Opportunity{}}, nil
}

func (f *fakeOpps) RecentOpportunities(context.Context, int) ([]domain.Opportunity, error) {
	return nil, fmt.Errorf("disabled: %w", domain.ErrNotFound)
}

func TestListOpportunitiesDefaults(t *testing.T) {
	opps := &fakeOpps{}
	h := NewOpportunityHandler(opps, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities?limit=500", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, opps.gotMin.Equal(d("0.5")))
	assert.True(t, opps.gotAmount.Equal(d("100000")))
	assert.Equal(t, 50, opps.gotLimit)

	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, true, body["data_available"])

	rec = httptest.NewRecorder()
	h.ListOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities?amount=lots", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate(t *testing.T) {
	opps := &fakeOpps{}
	h := NewOpportunityHandler(opps, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/opportunities/evaluate",
		strings.NewReader(`{"buy_exchange":"a","sell_exchange":"b","amount":"5000"}`))
	h.Evaluate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "USDT", body["crypto"])
	assert.Equal(t, "5000", body["trade_amount"])

	opps.evalErr = fmt.Errorf("no quote: %w", domain.ErrNotFound)
	rec = httptest.NewRecorder()
	h.Evaluate(rec, httptest.NewRequest(http.MethodPost, "/api/opportunities/evaluate",
		strings.NewReader(`{"buy_exchange":"a","sell_exchange":"zzz"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Evaluate(rec, httptest.NewRequest(http.MethodPost, "/api/opportunities/evaluate", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopAndHistory(t *testing.T) {
	h := NewOpportunityHandler(&fakeOpps{}, testLogger())

	rec := httptest.NewRecorder()
	h.TopOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/top", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", decode(t, rec)["tick_id"])

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeVenues struct{}

func (fakeVenues) ListVenues() []domain.Venue {
	return []domain.Venue{{ID: "a", DisplayName: "A", Kind: domain.VenueP2P}}
}

func (fakeVenues) GetFeeSchedule(venue string) (domain.FeeEntry, error) {
	if venue != "a" {
		return domain.FeeEntry{}, fmt.Errorf("venue %q: %w", venue, domain.ErrNotFound)
	}
	return domain.FeeEntry{Venue: "a", TradingFee: d("0.001")}, nil
}

func TestVenues(t *testing.T) {
	h := NewVenueHandler(fakeVenues{}, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/venues", h.ListVenues)
	mux.HandleFunc("GET /api/venues/{id}/fees", h.GetFees)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/venues", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/venues/a/fees", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.001", decode(t, rec)["trading_fee"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/venues/zzz/fees", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeRules struct {
	created []domain.AlertRule
	deleted string
}

func (f *fakeRules) List(_ context.Context, user string) ([]domain.AlertRule, error) {
	if user == "" {
		return nil, fmt.Errorf("user id required: %w", domain.ErrInvalidInput)
	}
	return nil, nil
}

func (f *fakeRules) Create(_ context.Context, r domain.AlertRule) (domain.AlertRule, error) {
	r.ID = "r1"
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeRules) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func TestAlertRules(t *testing.T) {
	rules := &fakeRules{}
	h := NewAlertHandler(rules, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/alerts/rules", h.ListRules)
	mux.HandleFunc("POST /api/alerts/rules", h.CreateRule)
	mux.HandleFunc("DELETE /api/alerts/rules/{id}", h.DeleteRule)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/rules?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["rules"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/rules", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts/rules",
		strings.NewReader(`{"user_id":"u1","crypto":"USDT","min_spread_percent":"2","notify_telegram":true}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, rules.created, 1)
	assert.True(t, rules.created[0].MinSpreadPercent.Equal(d("2")))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/alerts/rules/r1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "r1", rules.deleted)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler("full", []string{"USDT"}, map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "full", body["mode"])
	assert.Equal(t, map[string]any{"redis": "ok"}, body["dependencies"])
}

func TestHealthCheckDegraded(t *testing.T) {
	h := NewHealthHandler("server", nil, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return fmt.Errorf("connection refused") },
	})
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["postgres"])
}
