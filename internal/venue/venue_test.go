package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func TestQuidaxGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/markets/tickers/usdtngn", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","data":{"at":1700000000,"ticker":{"buy":"1585.5","sell":"1570","last":"1580","vol":"12345.6"}}}`))
	}))
	defer srv.Close()

	src := NewQuidax(domain.Venue{ID: "quidax", DisplayName: "Quidax", Kind: domain.VenueExchange}, srv.URL+"/api/v1", 0, 0)
	q, err := src.GetQuote(context.Background(), "USDT", "NGN")
	require.NoError(t, err)

	assert.Equal(t, "quidax", q.Venue)
	assert.Equal(t, "1585.5", q.BuyPrice.String())
	assert.Equal(t, "1570", q.SellPrice.String())
	assert.True(t, q.Volume24h.Valid)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), q.ObservedAt)
	assert.Equal(t, domain.TierLive, q.Tier)
	assert.True(t, src.Venue().LiveSource)
}

func TestLunoGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBTNGN", r.URL.Query().Get("pair"))
		_, _ = w.Write([]byte(`{"pair":"XBTNGN","timestamp":1700000000000,"bid":"154400000","ask":"155100000","last_trade":"155000000","rolling_24_hour_volume":"3.21","status":"ACTIVE"}`))
	}))
	defer srv.Close()

	src := NewLuno(domain.Venue{ID: "luno", Kind: domain.VenueExchange}, srv.URL, 0, 0)
	q, err := src.GetQuote(context.Background(), "BTC", "NGN")
	require.NoError(t, err)

	assert.Equal(t, "155100000", q.BuyPrice.String(), "user buys at the ask")
	assert.Equal(t, "154400000", q.SellPrice.String(), "user sells at the bid")
	assert.Equal(t, "3.21", q.Volume24h.Decimal.String())
}

func TestLunoPair(t *testing.T) {
	assert.Equal(t, "XBTNGN", LunoPair("btc", "ngn"))
	assert.Equal(t, "USDTNGN", LunoPair("USDT", "NGN"))
}

func TestBinanceP2PGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req binanceSearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "USDT", req.Asset)
		assert.Equal(t, "NGN", req.Fiat)
		assert.Equal(t, 10, req.Rows)

		switch req.TradeType {
		case "BUY":
			_, _ = w.Write([]byte(`{"code":"000000","success":true,"data":[{"adv":{"price":"1582"}},{"adv":{"price":"1580"}},{"adv":{"price":"1590"}}]}`))
		case "SELL":
			_, _ = w.Write([]byte(`{"code":"000000","success":true,"data":[{"adv":{"price":"1571"}},{"adv":{"price":"1575"}}]}`))
		}
	}))
	defer srv.Close()

	src := NewBinanceP2P(domain.Venue{ID: "binance_p2p", Kind: domain.VenueP2P}, srv.URL, 0, 0)
	q, err := src.GetQuote(context.Background(), "usdt", "ngn")
	require.NoError(t, err)

	assert.Equal(t, "1580", q.BuyPrice.String())
	assert.Equal(t, "1575", q.SellPrice.String())
	assert.Equal(t, "USDT", q.Crypto)
	assert.False(t, q.Volume24h.Valid)
}

func TestBinanceP2PNoAds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"000000","success":true,"data":[]}`))
	}))
	defer srv.Close()

	src := NewBinanceP2P(domain.Venue{ID: "binance_p2p", Kind: domain.VenueP2P}, srv.URL, 0, 0)
	_, err := src.GetQuote(context.Background(), "USDT", "NGN")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBybitP2PGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bybitItemsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ETH", req.TokenID)

		if req.Side == "1" {
			_, _ = w.Write([]byte(`{"ret_code":0,"result":{"count":2,"items":[{"price":"4110000"},{"price":"4105000"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ret_code":0,"result":{"count":2,"items":[{"price":"4070000"},{"price":"4080000"}]}}`))
	}))
	defer srv.Close()

	src := NewBybitP2P(domain.Venue{ID: "bybit_p2p", Kind: domain.VenueP2P}, srv.URL, 0, 0)
	q, err := src.GetQuote(context.Background(), "ETH", "NGN")
	require.NoError(t, err)
	assert.Equal(t, "4105000", q.BuyPrice.String())
	assert.Equal(t, "4080000", q.SellPrice.String())
}

func TestBybitP2PErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ret_code":10001,"ret_msg":"params error"}`))
	}))
	defer srv.Close()

	src := NewBybitP2P(domain.Venue{ID: "bybit_p2p", Kind: domain.VenueP2P}, srv.URL, 0, 0)
	_, err := src.GetQuote(context.Background(), "USDT", "NGN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params error")
}

func TestHTTPStatusMapping(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	src := NewQuidax(domain.Venue{ID: "quidax", Kind: domain.VenueExchange}, srv.URL, 0, 0)
	_, err := src.GetQuote(context.Background(), "USDT", "NGN")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSourceHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	src := NewQuidax(domain.Venue{ID: "quidax", Kind: domain.VenueExchange}, srv.URL, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.GetQuote(ctx, "USDT", "NGN")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewAndRegistry(t *testing.T) {
	reg, err := BuildRegistry([]Config{
		{ID: "quidax", Name: "Quidax", Kind: domain.VenueExchange, Source: "quidax", BaseURL: "http://x"},
		{ID: "paxful", Name: "Paxful", Kind: domain.VenueP2P, Source: "none"},
		{ID: "binance_p2p", Name: "Binance P2P", Kind: domain.VenueP2P, Source: "binance_p2p", BaseURL: "http://y"},
	})
	require.NoError(t, err)

	venues := reg.Venues()
	require.Len(t, venues, 3)
	assert.Equal(t, "binance_p2p", venues[0].ID)
	assert.Equal(t, "paxful", venues[1].ID)
	assert.False(t, venues[1].LiveSource)

	src, err := reg.Get("paxful")
	require.NoError(t, err)
	_, err = src.GetQuote(context.Background(), "USDT", "NGN")
	assert.ErrorIs(t, err, domain.ErrNoLiveSource)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = New(Config{ID: "x", Kind: domain.VenueP2P, Source: "ftx"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = New(Config{ID: "x", Kind: "dex", Source: "none"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
