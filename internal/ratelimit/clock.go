package ratelimit

import (
	"context"
	"time"
)

// Clock supplies the current time to integrations of the limiter.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockedLimiter adapts a SlidingWindowLimiter to the Limiter interface by
// reading the current time from a Clock on every check.
type ClockedLimiter struct {
	limiter *SlidingWindowLimiter
	clock   Clock
}

// NewClockedLimiter creates a Limiter that checks against clock's current time.
func NewClockedLimiter(limiter *SlidingWindowLimiter, clock Clock) *ClockedLimiter {
	return &ClockedLimiter{
		limiter: limiter,
		clock:   clock,
	}
}

func (c *ClockedLimiter) Allow(_ context.Context, key string) (Decision, error) {
	return c.limiter.CheckAndConsume(key, SecondsFromTime(c.clock.Now()))
}

// Stats returns the wrapped limiter's stats.
func (c *ClockedLimiter) Stats() Stats {
	return c.limiter.Stats()
}

// Compile-time check.
var _ Limiter = (*ClockedLimiter)(nil)
