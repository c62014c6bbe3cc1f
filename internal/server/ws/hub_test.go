package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/cache/memory"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// notifyingBus signals once every expected subscription is in place.
type notifyingBus struct {
	*memory.Bus
	wg sync.WaitGroup
}

func (b *notifyingBus) Subscribe(ctx context.Context, channel string) (<-chan domain.Message, error) {
	ch, err := b.Bus.Subscribe(ctx, channel)
	b.wg.Done()
	return ch, err
}

func startHub(t *testing.T, channels []string) (*notifyingBus, *Hub, string) {
	t.Helper()
	bus := &notifyingBus{Bus: memory.NewBus()}
	bus.wg.Add(len(channels))

	hub := NewHub(bus, Config{Channels: channels, Mode: "full", Cryptos: []string{"USDT"}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})

	bus.wg.Wait()
	return bus, hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHubRelaysBusMessages(t *testing.T) {
	bus, hub, url := startHub(t, []string{"ch:opportunities", "ch:snapshot:*"})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "scanner_status", status.Type)
	var body map[string]any
	require.NoError(t, json.Unmarshal(status.Data, &body))
	assert.Equal(t, "full", body["mode"])

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "ch:snapshot:BTC", []byte(`{"crypto":"BTC"}`)))
	env := readEnvelope(t, conn)
	assert.Equal(t, "event", env.Type)
	assert.Equal(t, "ch:snapshot:BTC", env.Channel)
	assert.JSONEq(t, `{"crypto":"BTC"}`, string(env.Data))
}

func TestHubUnsubscribe(t *testing.T) {
	bus, hub, url := startHub(t, []string{"ch:opportunities", "ch:snapshot:*"})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(controlMsg{Action: "unsubscribe", Channels: []string{"ch:snapshot:*"}}))

	// Wait for the control frame to land before publishing.
	require.Eventually(t, func() bool {
		s := onlySession(hub)
		return s != nil && !s.filter.match("ch:snapshot:ETH")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "ch:snapshot:ETH", []byte(`{}`)))
	require.NoError(t, bus.Publish(context.Background(), "ch:opportunities", []byte(`[]`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, "ch:opportunities", env.Channel)
}

func onlySession(h *Hub) *session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		return s
	}
	return nil
}

func TestFilter(t *testing.T) {
	f := newFilter([]string{"ch:opportunities", "ch:snapshot:*"})
	assert.True(t, f.match("ch:opportunities"))
	assert.True(t, f.match("ch:snapshot:USDT"))
	assert.False(t, f.match("ch:other"))

	f.remove([]string{"ch:snapshot:*"})
	f.add([]string{"ch:snapshot:BTC"})
	assert.False(t, f.match("ch:snapshot:USDT"))
	assert.True(t, f.match("ch:snapshot:BTC"))
}

func TestOriginAllowed(t *testing.T) {
	h := NewHub(memory.NewBus(), Config{AllowedOrigins: []string{"https://app.example.com/"}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, h.originAllowed(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.originAllowed(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.originAllowed(req))
}
