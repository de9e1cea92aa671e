package ratelimit

import (
	"math"
	"time"
)

// Seconds is the only time unit the limiter works in.
// Values are seconds since the Unix epoch or a span of seconds, depending on use.
type Seconds float64

// SecondsFromTime converts a wall-clock instant to seconds since the Unix epoch.
func SecondsFromTime(t time.Time) Seconds {
	return Seconds(float64(t.UnixNano()) / float64(time.Second))
}

// SecondsFromDuration converts a duration to seconds.
func SecondsFromDuration(d time.Duration) Seconds {
	return Seconds(d.Seconds())
}

// Duration converts s back to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Ceil rounds s up to whole seconds, as used by the Retry-After header.
func (s Seconds) Ceil() int {
	return int(math.Ceil(float64(s)))
}

func (s Seconds) valid() bool {
	f := float64(s)

	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
