package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAllow_BurstThenDenied(t *testing.T) {
	rl := PerMinute(1, 2)
	defer rl.Stop()

	assert.True(t, rl.Allow("203.0.113.7"))
	assert.True(t, rl.Allow("203.0.113.7"))
	assert.False(t, rl.Allow("203.0.113.7"), "third login attempt within a minute")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	rl := PerMinute(1, 1)
	defer rl.Stop()

	require.True(t, rl.Allow("198.51.100.1"))
	require.False(t, rl.Allow("198.51.100.1"))

	assert.True(t, rl.Allow("198.51.100.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestRetryAfter(t *testing.T) {
	rl := PerMinute(6, 1)
	defer rl.Stop()

	require.True(t, rl.Allow("client"))

	wait := rl.RetryAfter("client")
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 10*time.Second)

	// RetryAfter does not consume a token.
	assert.InDelta(t, wait.Seconds(), rl.RetryAfter("client").Seconds(), 0.5)
}

func TestWait_HonorsContext(t *testing.T) {
	rl := New(0.01, 1)
	defer rl.Stop()

	require.NoError(t, rl.Wait(context.Background(), "api.bookworm.test"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "api.bookworm.test"))
}

func TestEvictIdle(t *testing.T) {
	rl := newLimiter(rate.Limit(1), 1, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("stale")
	now = now.Add(45 * time.Second)
	rl.Allow("fresh")

	now = now.Add(30 * time.Second)
	rl.evictIdle()

	rl.mu.Lock()
	_, staleKept := rl.entries["stale"]
	_, freshKept := rl.entries["fresh"]
	rl.mu.Unlock()

	assert.False(t, staleKept)
	assert.True(t, freshKept)
}

func TestStop_Idempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
