package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanity/internal/structures"
)

func testLimiterConf() structures.RateLimitConfig {
	return structures.RateLimitConfig{
		MaxRequests:     30,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	for i := 0; i < 30; i++ {
		res := rl.Check("1.2.3.4")
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 29-i, res.Remaining)
	}

	res := rl.Check("1.2.3.4")
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	for i := 0; i < 30; i++ {
		rl.Check("1.2.3.4")
	}
	assert.False(t, rl.Check("1.2.3.4").Allowed)

	now = now.Add(61 * time.Second)
	res := rl.Check("1.2.3.4")
	assert.True(t, res.Allowed)
	assert.Equal(t, 29, res.Remaining)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	for i := 0; i < 30; i++ {
		rl.Check("1.2.3.4")
	}
	assert.False(t, rl.Check("1.2.3.4").Allowed)
	assert.True(t, rl.Check("5.6.7.8").Allowed)
}

func TestRateLimiter_ResetAtReported(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	res := rl.Check("1.2.3.4")
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)
}

func TestRateLimitResult_RetryAfter(t *testing.T) {
	now := time.Now()
	res := RateLimitResult{ResetAt: now.Add(30 * time.Second)}
	assert.Equal(t, 30, res.RetryAfter(now))

	res = RateLimitResult{ResetAt: now.Add(500 * time.Millisecond)}
	assert.Equal(t, 1, res.RetryAfter(now))

	res = RateLimitResult{ResetAt: now.Add(-time.Second)}
	assert.Equal(t, 1, res.RetryAfter(now))
}

func TestRateLimiter_SweepRemovesExpiredEntries(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	rl.Check("1.2.3.4")
	rl.Check("5.6.7.8")
	assert.Len(t, rl.entries, 2)

	// Entries expire after one minute; the sweep runs on the next check once
	// the cleanup interval has elapsed.
	now = now.Add(6 * time.Minute)
	rl.Check("9.9.9.9")
	assert.Len(t, rl.entries, 1)
}

func TestRateLimiter_SweepThrottled(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(testLimiterConf(), func() time.Time { return now })

	rl.Check("1.2.3.4")
	// Within the cleanup interval the stale entry survives even though its
	// window has passed.
	now = now.Add(2 * time.Minute)
	rl.Check("5.6.7.8")
	assert.Len(t, rl.entries, 2)
}

func TestClientKey_ForwardedForFirstValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", ClientKey(req))
}

func TestClientKey_RealIPFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientKey(req))
}

func TestClientKey_UnknownFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unknown", ClientKey(req))
}
