package external

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultMaxTrackedKeys bounds a SlidingWindowRateLimiter's memory: once
// this many distinct peer keys are tracked, admitting a new one evicts
// the least-recently-seen existing key first (spec §4.7's
// max_tracked_keys parameter — the same unbounded-growth hazard
// sig.MaxTrackedNonces guards against for the nonce store).
const DefaultMaxTrackedKeys = 100_000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen int64
}

// SlidingWindowRateLimiter gates session acceptance per peer key using a
// token bucket per key (golang.org/x/time/rate), bounded to at most
// maxTrackedKeys buckets so long-lived deployments don't accumulate one
// limiter per ever-seen peer forever.
type SlidingWindowRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*bucket
	rps            rate.Limit
	burst          int
	maxTrackedKeys int
}

// NewSlidingWindowRateLimiter returns a limiter allowing up to burst
// immediate sessions per key, refilling at rps sessions/sec thereafter,
// tracking at most DefaultMaxTrackedKeys distinct peer keys at once.
func NewSlidingWindowRateLimiter(rps float64, burst int) *SlidingWindowRateLimiter {
	return NewSlidingWindowRateLimiterWithCapacity(rps, burst, DefaultMaxTrackedKeys)
}

// NewSlidingWindowRateLimiterWithCapacity is NewSlidingWindowRateLimiter
// with an explicit max_tracked_keys ceiling (spec §4.7).
func NewSlidingWindowRateLimiterWithCapacity(rps float64, burst, maxTrackedKeys int) *SlidingWindowRateLimiter {
	return &SlidingWindowRateLimiter{
		limiters:       make(map[string]*bucket),
		rps:            rate.Limit(rps),
		burst:          burst,
		maxTrackedKeys: maxTrackedKeys,
	}
}

// Allow reports whether a new session for key is permitted right now.
// now is used only to stamp and compare recency for eviction under
// capacity pressure; rate.Limiter tracks its own monotonic clock for the
// token-bucket decision itself.
func (l *SlidingWindowRateLimiter) Allow(key string, now int64) bool {
	l.mu.Lock()
	b, ok := l.limiters[key]
	if !ok {
		if l.maxTrackedKeys > 0 && len(l.limiters) >= l.maxTrackedKeys {
			l.evictOldestLocked()
		}
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	lim := b.limiter
	l.mu.Unlock()
	return lim.Allow()
}

// evictOldestLocked drops the bucket with the smallest lastSeen,
// making room for a new key once the tracked-key ceiling is reached.
// Callers must hold l.mu.
func (l *SlidingWindowRateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldestSeen int64
	first := true
	for k, b := range l.limiters {
		if first || b.lastSeen < oldestSeen {
			oldestKey, oldestSeen = k, b.lastSeen
			first = false
		}
	}
	if !first {
		delete(l.limiters, oldestKey)
	}
}

// Forget drops the bucket tracked for key, freeing its memory once a
// peer is known to be gone for good.
func (l *SlidingWindowRateLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// TrackedKeys reports how many distinct peer buckets are currently held,
// for diagnostics.
func (l *SlidingWindowRateLimiter) TrackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
