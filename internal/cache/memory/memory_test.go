package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache()
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	clk.advance(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Cleanup()
	assert.Equal(t, 0, c.Len())
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewCache()
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	clk.advance(24 * time.Hour)
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	src := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", src, 0))
	src[0] = 'x'

	got, _ := c.Get(ctx, "k")
	got[1] = 'y'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(0, 0)}
	lm := NewLockManager()
	lm.now = clk.now

	unlock, err := lm.Acquire(ctx, "tick", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "tick", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	unlock2, err := lm.Acquire(ctx, "tick", time.Minute)
	require.NoError(t, err)

	// An expired lock can be taken over, and the stale unlock must not
	// release the new holder.
	clk.advance(2 * time.Minute)
	_, err = lm.Acquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	unlock2()
	_, err = lm.Acquire(ctx, "tick", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := rl.Allow(ctx, "1.2.3.4", 3, time.Minute)
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "5.6.7.8", 3, time.Minute)
	assert.True(t, ok)

	ok, _ = rl.Allow(ctx, "x", 0, time.Minute)
	assert.False(t, ok)
}

func TestBusPrefixSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBus()

	all, err := b.Subscribe(ctx, "ch:snapshot:*")
	require.NoError(t, err)
	exact, err := b.Subscribe(ctx, "ch:opportunities")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "ch:snapshot:BTC", []byte("btc")))
	require.NoError(t, b.Publish(ctx, "ch:opportunities", []byte("opps")))

	msg := <-all
	assert.Equal(t, "ch:snapshot:BTC", msg.Channel)
	assert.Equal(t, []byte("btc"), msg.Payload)

	msg = <-exact
	assert.Equal(t, "ch:opportunities", msg.Channel)

	select {
	case m := <-all:
		t.Fatalf("unexpected message %q", m.Channel)
	default:
	}
}

func TestBusClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBus()
	ch, err := b.Subscribe(ctx, "x")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
