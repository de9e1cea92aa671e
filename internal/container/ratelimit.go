package container

import (
	"time"

	"github.com/samber/do"
	"github.com/serroba/throttle/internal/analytics"
	"github.com/serroba/throttle/internal/metrics"
	"github.com/serroba/throttle/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimitPackage provides the limiter, its clocked adapter and the idle
// client sweeper.
func RateLimitPackage(injector *do.Injector) {
	do.ProvideValue[ratelimit.Clock](injector, ratelimit.SystemClock{})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.SlidingWindowLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		return ratelimit.NewSlidingWindowLimiter(
			opts.MaxRequests,
			ratelimit.Seconds(opts.WindowSeconds),
			ratelimit.WithShards(opts.Shards),
		)
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.ClockedLimiter, error) {
		return ratelimit.NewClockedLimiter(
			do.MustInvoke[*ratelimit.SlidingWindowLimiter](i),
			do.MustInvoke[ratelimit.Clock](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Sweeper, error) {
		opts := do.MustInvoke[*Options](i)

		sweepOpts := []ratelimit.SweeperOption{
			ratelimit.WithSweepHook(do.MustInvoke[*metrics.RateLimitMetrics](i).ObserveSweep),
		}

		if opts.PublishEvents {
			publisher := do.MustInvoke[*analytics.Publisher](i)
			sweepOpts = append(sweepOpts, ratelimit.WithSweepHook(publisher.OnSweep))
		}

		return ratelimit.NewSweeper(
			do.MustInvoke[*ratelimit.SlidingWindowLimiter](i),
			do.MustInvoke[ratelimit.Clock](i),
			ratelimit.SweeperConfig{
				Interval:    time.Duration(opts.CleanupIntervalSeconds) * time.Second,
				IdleWindows: opts.IdleWindows,
			},
			do.MustInvoke[*zap.Logger](i),
			sweepOpts...,
		)
	})
}

// MetricsPackage provides the Prometheus collectors.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*metrics.RateLimitMetrics, error) {
		limiter := do.MustInvoke[*ratelimit.SlidingWindowLimiter](i)

		return metrics.New(limiter.Stats), nil
	})
}
