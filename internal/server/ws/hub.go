// Package ws streams scanner output from the signal bus to WebSocket clients.
//
// Every bus message is wrapped as {"type":"event","channel":...,"data":...}.
// A new client first receives a "scanner_status" frame and starts subscribed
// to all relayed channels; it may narrow or widen that set by sending
// {"action":"subscribe"|"unsubscribe","channels":[...]}.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Config configures the hub.
type Config struct {
	// Channels are the bus channels (or "prefix*" patterns) relayed to clients.
	Channels []string
	// AllowedOrigins restricts the upgrade Origin header. Empty allows all.
	AllowedOrigins []string
	Mode           string
	Cryptos        []string
	StartedAt      time.Time
}

type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Hub fans bus messages out to the connected sessions.
type Hub struct {
	bus      domain.SignalBus
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	inbox chan domain.Message
	join  chan *session
	leave chan *session
	done  chan struct{}

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// NewHub creates a hub relaying cfg.Channels from bus. Call Run to start it.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	h := &Hub{
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "ws_hub")),
		inbox:    make(chan domain.Message, 256),
		join:     make(chan *session),
		leave:    make(chan *session),
		done:     make(chan struct{}),
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

// Clients returns the number of connected sessions.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

// Run subscribes to the configured channels and serves sessions until ctx is
// cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range h.cfg.Channels {
		go h.relay(ctx, ch)
	}
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				s.close()
			}
			clear(h.sessions)
			h.mu.Unlock()
			return ctx.Err()

		case s := <-h.join:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			n := len(h.sessions)
			h.mu.Unlock()
			h.logger.Debug("ws: client connected", slog.Int("clients", n))

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				s.close()
			}
			n := len(h.sessions)
			h.mu.Unlock()
			h.logger.Debug("ws: client disconnected", slog.Int("clients", n))

		case msg := <-h.inbox:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg domain.Message) {
	frame, err := json.Marshal(envelope{Type: "event", Channel: msg.Channel, Data: msg.Payload})
	if err != nil {
		h.logger.Warn("ws: dropping non-JSON payload", slog.String("channel", msg.Channel))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if s.filter.match(msg.Channel) && !s.offer(frame) {
			h.logger.Warn("ws: client too slow, frame dropped", slog.String("channel", msg.Channel))
		}
	}
}

// relay copies one bus subscription into the hub inbox.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.inbox <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and starts a session.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := newSession(h, conn, h.cfg.Channels)
	s.offer(h.statusFrame())
	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}
	go s.writeLoop()
	go s.readLoop()
}

// statusFrame greets a new client so it can mark the stream healthy before
// the next tick.
func (h *Hub) statusFrame() []byte {
	data, _ := json.Marshal(map[string]any{
		"mode":           h.cfg.Mode,
		"cryptos":        h.cfg.Cryptos,
		"channels":       h.cfg.Channels,
		"uptime_seconds": int64(max(time.Since(h.cfg.StartedAt), 0).Seconds()),
	})
	frame, _ := json.Marshal(envelope{Type: "scanner_status", Data: data})
	return frame
}
