package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often idle clients are evicted when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// SweeperConfig controls periodic eviction of idle clients.
type SweeperConfig struct {
	// Interval between eviction passes.
	Interval time.Duration
	// IdleWindows is how many whole windows a client may stay silent before eviction.
	IdleWindows int
}

// DefaultSweeperConfig returns a five minute interval with DefaultIdleWindows.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:    DefaultSweepInterval,
		IdleWindows: DefaultIdleWindows,
	}
}

// SweepHook is called after every eviction pass.
type SweepHook func(evicted int, stats Stats)

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepHook registers a hook run after each pass, e.g. for metrics or events.
func WithSweepHook(hook SweepHook) SweeperOption {
	return func(s *Sweeper) {
		s.hooks = append(s.hooks, hook)
	}
}

// Sweeper periodically evicts idle clients from a limiter.
type Sweeper struct {
	limiter *SlidingWindowLimiter
	clock   Clock
	config  SweeperConfig
	logger  *zap.Logger
	hooks   []SweepHook
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweeper creates a sweeper for limiter. It does nothing until Start is called.
func NewSweeper(
	limiter *SlidingWindowLimiter,
	clock Clock,
	config SweeperConfig,
	logger *zap.Logger,
	opts ...SweeperOption,
) (*Sweeper, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("%w: sweep interval must be positive, got %s", ErrInvalidConfiguration, config.Interval)
	}

	if config.IdleWindows < 0 {
		return nil, fmt.Errorf("%w: idle windows must not be negative, got %d", ErrInvalidConfiguration, config.IdleWindows)
	}

	s := &Sweeper{
		limiter: limiter,
		clock:   clock,
		config:  config,
		logger:  logger,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start begins evicting on every interval until ctx is cancelled or Shutdown is called.
func (s *Sweeper) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Info("idle client sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("idleWindows", s.config.IdleWindows),
	)

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single eviction pass and returns how many clients were removed.
func (s *Sweeper) SweepOnce() int {
	evicted := s.limiter.EvictIdle(SecondsFromTime(s.clock.Now()), s.config.IdleWindows)
	stats := s.limiter.Stats()

	if evicted > 0 {
		s.logger.Debug("evicted idle clients",
			zap.Int("evicted", evicted),
			zap.Int("tracked", stats.TrackedClients),
		)
	}

	for _, hook := range s.hooks {
		hook(evicted, stats)
	}

	return evicted
}

// Shutdown stops the sweeper and waits for an in-flight pass to finish.
func (s *Sweeper) Shutdown() error {
	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done

	s.logger.Info("idle client sweeper stopped")

	return nil
}
