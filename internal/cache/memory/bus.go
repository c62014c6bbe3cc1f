package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// subscriberBuffer matches the Redis bus so slow readers behave the same.
const subscriberBuffer = 128

type subscriber struct {
	pattern string
	ch      chan domain.Message
}

// Bus implements domain.SignalBus in process. Publish never blocks: a message
// is dropped for any subscriber whose buffer is full.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers payload to every matching subscriber.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := domain.Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled, at which point the
// returned channel is closed.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan domain.Message, error) {
	s := &subscriber{pattern: channel, ch: make(chan domain.Message, subscriberBuffer)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(s.ch)
		b.mu.Unlock()
	}()

	return s.ch, nil
}

// matches applies the bus pattern rule: a trailing '*' matches by prefix.
func matches(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// Compile-time interface check.
var _ domain.SignalBus = (*Bus)(nil)
