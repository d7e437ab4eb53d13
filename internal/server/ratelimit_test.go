package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(l Limits) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(l)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(Limits{})

	for range 100 {
		require.NoError(t, rl.Allow("a", 1000))
	}
	u := rl.Usage("a")
	assert.Equal(t, 100, u.RequestsToday)
	assert.Equal(t, int64(100000), u.DataToday)
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(Limits{RequestsPerMinute: 2})

	require.NoError(t, rl.Allow("a", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.Allow("a", 0))

	err := rl.Allow("a", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 50*time.Second, rle.RetryAfter)

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.Allow("a", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newTestLimiter(Limits{RequestsPerHour: 3})

	for range 3 {
		require.NoError(t, rl.Allow("a", 0))
		clock.advance(2 * time.Minute)
	}
	var rle *RateLimitError
	require.ErrorAs(t, rl.Allow("a", 0), &rle)
	assert.Equal(t, "hour", rle.Type)

	clock.advance(time.Hour)
	assert.NoError(t, rl.Allow("a", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newTestLimiter(Limits{MaxRequestsPerDay: 2, MaxDataPerDay: 100})

	require.NoError(t, rl.Allow("a", 60))

	var qe *QuotaExceededError
	require.ErrorAs(t, rl.Allow("a", 60), &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(60), qe.Used)

	require.NoError(t, rl.Allow("a", 40))
	require.ErrorAs(t, rl.Allow("a", 0), &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(14 * time.Hour)
	assert.NoError(t, rl.Allow("a", 100))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(Limits{RequestsPerMinute: 1})

	require.NoError(t, rl.Allow("a", 0))
	require.Error(t, rl.Allow("a", 0))
	require.NoError(t, rl.Allow("b", 0))

	assert.Equal(t, Usage{}, rl.Usage("unknown"))
}

func TestRateLimitErrors_Messages(t *testing.T) {
	err := error(&RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second})
	assert.Contains(t, err.Error(), "rate limit exceeded for minute")

	err = &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, err.Error(), "quota exceeded for data")
}
