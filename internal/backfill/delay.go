package backfill

import (
	"context"
	"time"
)

// Default delays between fill attempts.
const (
	DefaultRetryDelay    = 3 * time.Second
	DefaultCooldown      = 2 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// Delay strategy names accepted in configuration.
const (
	DelayFixed       = "fixed"
	DelayExponential = "exponential"
)

// DelayStrategy decides how long the executor waits between attempts on
// one gap and after a gap that could not be filled.
type DelayStrategy interface {
	// RetryDelay is the wait after the attempt-th failed attempt (1-based).
	RetryDelay(attempt int) time.Duration

	// Cooldown is the wait after an unsuccessful gap.
	Cooldown() time.Duration
}

// FixedDelay waits the same duration before every retry.
type FixedDelay struct {
	Retry        time.Duration
	AfterFailure time.Duration
}

// DefaultDelays returns the fixed 3s retry / 2s cooldown strategy.
func DefaultDelays() FixedDelay {
	return FixedDelay{Retry: DefaultRetryDelay, AfterFailure: DefaultCooldown}
}

// RetryDelay returns the fixed retry delay.
func (d FixedDelay) RetryDelay(int) time.Duration {
	return d.Retry
}

// Cooldown returns the fixed cooldown.
func (d FixedDelay) Cooldown() time.Duration {
	return d.AfterFailure
}

// ExponentialBackoff grows the retry delay by Multiplier per attempt, capped at Max.
type ExponentialBackoff struct {
	Initial      time.Duration // default 1s
	Max          time.Duration // default 10s
	Multiplier   float64       // default 2.0
	AfterFailure time.Duration
}

// RetryDelay returns Initial * Multiplier^(attempt-1), capped at Max.
func (b ExponentialBackoff) RetryDelay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2.0
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// Cooldown returns the post-failure wait.
func (b ExponentialBackoff) Cooldown() time.Duration {
	return b.AfterFailure
}

// Sleeper blocks for d. It returns early with ctx.Err() on shutdown.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
