package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// filter is a session's channel subscription set. An entry ending in '*'
// matches by prefix.
type filter struct {
	mu   sync.RWMutex
	subs map[string]struct{}
}

func newFilter(channels []string) *filter {
	f := &filter{subs: make(map[string]struct{}, len(channels))}
	f.add(channels)
	return f
}

func (f *filter) add(channels []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range channels {
		f.subs[ch] = struct{}{}
	}
}

func (f *filter) remove(channels []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range channels {
		delete(f.subs, ch)
	}
}

func (f *filter) match(channel string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.subs[channel]; ok {
		return true
	}
	for sub := range f.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

// controlMsg is what clients send to change their subscriptions.
type controlMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// session is one WebSocket connection. send is closed exactly once, by the
// hub loop, which ends writeLoop.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter *filter
	once   sync.Once
}

func newSession(h *Hub, conn *websocket.Conn, channels []string) *session {
	return &session{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		filter: newFilter(channels),
	}
}

// offer queues frame without blocking and reports whether it fit.
func (s *session) offer(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() { close(s.send) })
}

func (s *session) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("ws: read ended", slog.String("error", err.Error()))
			}
			return
		}
		var msg controlMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			s.filter.add(msg.Channels)
		case "unsubscribe":
			s.filter.remove(msg.Channels)
		}
	}
}

func (s *session) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
