package backfill

import (
	"sync"
	"time"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/observability"
)

// Cooldown defaults.
const (
	DefaultFailureMargin  = 5
	DefaultCooldownWindow = time.Hour
)

// CooldownTracker turns batch failure counts into a rate-limit signal.
// When failures exceed successes by more than the margin, fetching should
// pause until the window elapses.
type CooldownTracker struct {
	mu     sync.Mutex
	margin int
	window time.Duration
	clock  clock.Clock
	until  time.Time
}

// NewCooldownTracker creates a tracker. A margin of zero cools down as soon
// as failures outnumber successes; a negative margin or non-positive window
// uses the default.
func NewCooldownTracker(margin int, window time.Duration, clk clock.Clock) *CooldownTracker {
	if margin < 0 {
		margin = DefaultFailureMargin
	}
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	return &CooldownTracker{margin: margin, window: window, clock: clock.OrReal(clk)}
}

// Observe records a batch result. Returns true if it started a cooldown.
func (c *CooldownTracker) Observe(successes, failures int) bool {
	if failures-successes <= c.margin {
		return false
	}

	c.mu.Lock()
	c.until = c.clock.Now().Add(c.window)
	c.mu.Unlock()

	observability.SetCooldown(true)
	return true
}

// Active reports whether a cooldown is in effect.
func (c *CooldownTracker) Active() bool {
	_, active := c.Status()
	return active
}

// Status returns the reset time and whether the cooldown is active.
func (c *CooldownTracker) Status() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.until.IsZero() {
		return time.Time{}, false
	}
	if !c.clock.Now().Before(c.until) {
		c.until = time.Time{}
		observability.SetCooldown(false)
		return time.Time{}, false
	}
	return c.until, true
}

// Remaining returns the time left in the cooldown, or zero.
func (c *CooldownTracker) Remaining() time.Duration {
	until, active := c.Status()
	if !active {
		return 0
	}
	return until.Sub(c.clock.Now())
}
