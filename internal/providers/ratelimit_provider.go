package providers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"vanity/internal/structures"
)

// RateLimitResult reports a single fixed-window check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, at least 1.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int((r.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type RateLimiterInterface interface {
	Check(key string) RateLimitResult
}

type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

// RateLimitProvider is a fixed-window counter per client key. Expired
// entries are swept opportunistically, at most once per cleanup interval,
// to bound the table between bursts of distinct keys.
type RateLimitProvider struct {
	mu          sync.Mutex
	entries     map[string]*rateLimitEntry
	max         int
	window      time.Duration
	cleanupEach time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimitProvider(conf *structures.Config) RateLimiterInterface {
	return newRateLimiter(conf.RateLimit, time.Now)
}

func newRateLimiter(conf structures.RateLimitConfig, now func() time.Time) *RateLimitProvider {
	cleanup := conf.CleanupInterval
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	return &RateLimitProvider{
		entries:     make(map[string]*rateLimitEntry),
		max:         conf.MaxRequests,
		window:      conf.Window,
		cleanupEach: cleanup,
		lastCleanup: now(),
		now:         now,
	}
}

func (rl *RateLimitProvider) Check(key string) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	e, ok := rl.entries[key]
	if !ok || !e.resetAt.After(now) {
		e = &rateLimitEntry{count: 1, resetAt: now.Add(rl.window)}
		rl.entries[key] = e
		return RateLimitResult{Allowed: true, Remaining: rl.max - 1, ResetAt: e.resetAt}
	}

	if e.count >= rl.max {
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return RateLimitResult{Allowed: true, Remaining: rl.max - e.count, ResetAt: e.resetAt}
}

func (rl *RateLimitProvider) sweepLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < rl.cleanupEach {
		return
	}
	rl.lastCleanup = now
	for key, e := range rl.entries {
		if !e.resetAt.After(now) {
			delete(rl.entries, key)
		}
	}
}

// ClientKey derives the rate-limit key from proxy headers, falling back to a
// shared "unknown" bucket when no client address is reported.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return "unknown"
}
