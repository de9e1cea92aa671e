package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/throttle/internal/analytics"
	"github.com/serroba/throttle/internal/handlers"
	"github.com/serroba/throttle/internal/health"
	"github.com/serroba/throttle/internal/metrics"
	"github.com/serroba/throttle/internal/middleware"
	"github.com/serroba/throttle/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the Huma API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Handle("/metrics", do.MustInvoke[*metrics.RateLimitMetrics](i).Handler())

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, huma.DefaultConfig("Throttle", "1.0.0"))

		cfg := middleware.Config{
			Keys: middleware.KeyPolicy{
				TrustProxyHeaders: opts.TrustProxy,
				AnonymousKey:      opts.AnonymousKey,
			},
			Hooks: []middleware.DecisionHook{
				do.MustInvoke[*metrics.RateLimitMetrics](i).ObserveDecision,
			},
		}

		if opts.PublishEvents {
			cfg.Hooks = append(cfg.Hooks, do.MustInvoke[*analytics.Publisher](i).OnDecision)
		}

		limiter := do.MustInvoke[*ratelimit.ClockedLimiter](i)
		api.UseMiddleware(middleware.RateLimiter(api, limiter, cfg, logger))

		handlers.RegisterRoutes(api, handlers.NewHandler(limiter))

		redisConn := do.MustInvoke[*RedisConnection](i)
		health.RegisterRoutes(api, health.NewHandler(health.NewRedisChecker(redisConn.Client)))

		return api, nil
	})
}
