package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultIdleWindows is how many whole windows a client may stay silent before EvictIdle drops it.
const DefaultIdleWindows = 2

const defaultShards = 32

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request from the given key should be allowed, consuming capacity when it is.
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter Seconds
	Limit      int
}

// Stats is a read-only snapshot of the limiter.
type Stats struct {
	TrackedClients int     `json:"trackedClients"`
	MaxRequests    int     `json:"maxRequests"`
	WindowSize     Seconds `json:"windowSizeSeconds"`
}

// clientWindow holds the two counters kept per client.
type clientWindow struct {
	current  uint64
	previous uint64
	index    int64
}

// advance moves the client to window index. Earlier indexes are ignored so
// the stored index never goes backwards.
func (c *clientWindow) advance(index int64) {
	switch gap := index - c.index; {
	case gap <= 0:
		return
	case gap == 1:
		c.previous = c.current
	default:
		// silent for at least one whole window, nothing to carry over
		c.previous = 0
	}

	c.current = 0
	c.index = index
}

type shard struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
}

// SlidingWindowLimiter implements rate limiting using a sliding window counter.
// It blends a linearly decaying share of the previous fixed window's count with
// the current window's count, so each client costs two counters of memory.
type SlidingWindowLimiter struct {
	maxRequests int
	window      Seconds
	shardCount  int
	shards      []shard
}

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// WithShards sets how many independently locked partitions the client map is split into.
func WithShards(n int) Option {
	return func(l *SlidingWindowLimiter) {
		l.shardCount = n
	}
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter allowing
// maxRequests per window.
func NewSlidingWindowLimiter(maxRequests int, window Seconds, opts ...Option) (*SlidingWindowLimiter, error) {
	l := &SlidingWindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		shardCount:  defaultShards,
	}

	for _, opt := range opts {
		opt(l)
	}

	if maxRequests <= 0 {
		return nil, fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidConfiguration, maxRequests)
	}

	if !window.valid() {
		return nil, fmt.Errorf("%w: window must be a positive number of seconds, got %v", ErrInvalidConfiguration, window)
	}

	if l.shardCount <= 0 {
		return nil, fmt.Errorf("%w: shard count must be positive, got %d", ErrInvalidConfiguration, l.shardCount)
	}

	l.shards = make([]shard, l.shardCount)
	for i := range l.shards {
		l.shards[i].clients = make(map[string]*clientWindow)
	}

	return l, nil
}

// CheckAndConsume decides whether key may perform one more action at now and
// records the action when it is allowed. Denied checks leave the counters untouched.
func (l *SlidingWindowLimiter) CheckAndConsume(key string, now Seconds) (Decision, error) {
	if key == "" {
		return Decision{}, ErrInvalidKey
	}

	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	index := l.windowIndex(now)

	state, ok := s.clients[key]
	if !ok {
		state = &clientWindow{index: index}
		s.clients[key] = state
	}

	state.advance(index)

	elapsed := l.elapsedInto(now, state.index)
	weight := 1 - float64(elapsed/l.window)
	weighted := float64(state.previous)*weight + float64(state.current)
	limit := float64(l.maxRequests)

	if weighted >= limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: l.retryAfter(state, elapsed),
			Limit:      l.maxRequests,
		}, nil
	}

	state.current++

	remaining := int(math.Floor(limit - weighted - 1))
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   true,
		Remaining: remaining,
		Limit:     l.maxRequests,
	}, nil
}

// EvictIdle removes every client whose window is more than idleWindows windows
// behind the window containing now, and returns how many were removed.
// Shards are locked one at a time so traffic on other shards keeps flowing.
func (l *SlidingWindowLimiter) EvictIdle(now Seconds, idleWindows int) int {
	if idleWindows < 0 {
		idleWindows = 0
	}

	cutoff := l.windowIndex(now) - int64(idleWindows)
	evicted := 0

	for i := range l.shards {
		s := &l.shards[i]

		s.mu.Lock()

		for key, state := range s.clients {
			if state.index < cutoff {
				delete(s.clients, key)

				evicted++
			}
		}

		s.mu.Unlock()
	}

	return evicted
}

// Stats returns a snapshot of the limiter configuration and tracked client count.
func (l *SlidingWindowLimiter) Stats() Stats {
	tracked := 0

	for i := range l.shards {
		s := &l.shards[i]

		s.mu.Lock()
		tracked += len(s.clients)
		s.mu.Unlock()
	}

	return Stats{
		TrackedClients: tracked,
		MaxRequests:    l.maxRequests,
		WindowSize:     l.window,
	}
}

func (l *SlidingWindowLimiter) windowIndex(now Seconds) int64 {
	return int64(math.Floor(float64(now / l.window)))
}

// elapsedInto returns how far now is into the window with the given index, in [0, window).
func (l *SlidingWindowLimiter) elapsedInto(now Seconds, index int64) Seconds {
	elapsed := now - Seconds(index)*l.window

	switch {
	case elapsed < 0:
		return 0
	case elapsed >= l.window:
		return Seconds(math.Nextafter(float64(l.window), 0))
	default:
		return elapsed
	}
}

// retryAfter returns the shortest wait after which the weighted count falls
// below the limit, capped at the time left in the current window.
func (l *SlidingWindowLimiter) retryAfter(state *clientWindow, elapsed Seconds) Seconds {
	wait := l.window - elapsed
	limit := float64(l.maxRequests)

	if state.previous > 0 && float64(state.current) < limit {
		// previous*(1 - e/window) + current < limit once e passes threshold
		threshold := l.window * Seconds(1-(limit-float64(state.current))/float64(state.previous))

		d := threshold - elapsed
		if d <= 0 {
			// sitting exactly on the threshold
			d = min(1, wait)
		}

		wait = min(d, wait)
	}

	if wait <= 0 {
		wait = min(1, l.window)
	}

	return wait
}

func (l *SlidingWindowLimiter) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)%uint64(len(l.shards))]
}
