package external

import "time"

// SystemClock is the reference Clock backed by the OS wall clock. The
// retrieval pack's own clock.Clock abstraction ships no buildable source
// in this tree, so callers needing a real clock use this adapter
// directly rather than importing an unverifiable dependency.
type SystemClock struct{}

// NowSecs returns the current Unix time in seconds.
func (SystemClock) NowSecs() int64 { return time.Now().Unix() }

// FixedClock is a Clock that always reports the same instant, useful for
// deterministic tests of time-bound logic (envelope expiry, subscription
// ticks). Advance moves the reported time forward.
type FixedClock struct {
	secs int64
}

// NewFixedClock returns a FixedClock reporting secs.
func NewFixedClock(secs int64) *FixedClock {
	return &FixedClock{secs: secs}
}

// NowSecs implements Clock.
func (c *FixedClock) NowSecs() int64 { return c.secs }

// Advance moves the clock forward by delta seconds.
func (c *FixedClock) Advance(delta int64) { c.secs += delta }

// Set pins the clock to secs.
func (c *FixedClock) Set(secs int64) { c.secs = secs }
