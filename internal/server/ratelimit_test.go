package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter through time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(perMin, perHour, perDay int, data int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMin, perHour, perDay, data)
	rl.now = clock.now
	return rl, clock
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 100, 1000, 1024*1024)

	assert.NotNil(t, rl)
	assert.Equal(t, 10, rl.requestsPerMinute)
	assert.Equal(t, 100, rl.requestsPerHour)
	assert.Equal(t, 1000, rl.maxRequestsPerDay)
	assert.Equal(t, int64(1024*1024), rl.maxDataPerDay)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiter_CheckRateLimit_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)

	for range 100 {
		require.NoError(t, rl.CheckRateLimit("user1", 100))
	}

	usage := rl.GetUsage("user1")
	assert.Equal(t, 100, usage.RequestsToday)
	assert.Equal(t, int64(10000), usage.DataToday)
}

func TestRateLimiter_CheckRateLimit_RequestsPerMinute(t *testing.T) {
	rl, clock := newClockedLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("user1", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.CheckRateLimit("user1", 0))

	clock.advance(10 * time.Second)
	err := rl.CheckRateLimit("user1", 0)
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// A rejected request does not count, and the window ends a minute
	// after it started.
	assert.Equal(t, 2, rl.GetUsage("user1").RequestsThisMinute)
	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("user1", 0))
}

func TestRateLimiter_CheckRateLimit_RequestsPerHour(t *testing.T) {
	rl, clock := newClockedLimiter(0, 3, 0, 0)

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("user1", 0))
		clock.advance(5 * time.Minute)
	}

	err := rl.CheckRateLimit("user1", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 3, rle.Limit)
	assert.Equal(t, 45*time.Minute, rle.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("user1", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	t.Run("requests", func(t *testing.T) {
		rl, clock := newClockedLimiter(0, 0, 2, 0)
		require.NoError(t, rl.CheckRateLimit("user1", 0))
		require.NoError(t, rl.CheckRateLimit("user1", 0))

		err := rl.CheckRateLimit("user1", 0)
		var qe *QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, "requests", qe.Type)
		assert.Equal(t, int64(2), qe.Limit)
		assert.Equal(t, int64(2), qe.Used)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

		clock.advance(15 * time.Hour)
		assert.NoError(t, rl.CheckRateLimit("user1", 0), "new day resets the quota")
	})

	t.Run("data", func(t *testing.T) {
		rl, _ := newClockedLimiter(0, 0, 0, 1000)
		require.NoError(t, rl.CheckRateLimit("user1", 600))

		err := rl.CheckRateLimit("user1", 500)
		var qe *QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, "data", qe.Type)
		assert.Equal(t, int64(1000), qe.Limit)
		assert.Equal(t, int64(600), qe.Used)

		assert.NoError(t, rl.CheckRateLimit("user1", 400), "exactly at the limit is allowed")
	})
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newClockedLimiter(1, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("b", 0))
	assert.Error(t, rl.CheckRateLimit("a", 0))
	assert.Error(t, rl.CheckRateLimit("b", 0))
	assert.Equal(t, Usage{}, rl.GetUsage("c"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("old", 0))
	clock.advance(2 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("fresh", 0))

	assert.Equal(t, 1, rl.Prune(time.Hour))
	assert.Equal(t, Usage{}, rl.GetUsage("old"))
	assert.Equal(t, 1, rl.GetUsage("fresh").RequestsToday)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(0, 0, 250, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 30 {
				if err := rl.CheckRateLimit(fmt.Sprintf("client-%d", i%2), 1); err != nil {
					mu.Lock()
					rejected++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 250, rl.GetUsage("client-0").RequestsToday)
	assert.Equal(t, 250, rl.GetUsage("client-1").RequestsToday)
	assert.Equal(t, 100, rejected)
}

func TestRateLimitErrors_Messages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 2s)", rle.Error())

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 7, Resets: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 7, limit: 10, resets: 2026-01-02T00:00:00Z)", qe.Error())
}

func TestServer_PrunesIdleClients(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("old", 0))
	clock.advance(26 * time.Hour)

	s := &Server{rateLimiter: rl, stop: make(chan struct{})}
	go s.pruneClients(time.Millisecond, clientIdleTTL)
	defer func() { _ = s.Close() }()

	assert.Eventually(t, func() bool {
		return rl.GetUsage("old") == Usage{}
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close(), "second close is a no-op")
}
