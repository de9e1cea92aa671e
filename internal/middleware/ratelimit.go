package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttle/internal/ratelimit"
	"go.uber.org/zap"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// CheckedRequest describes one rate limit decision made by the middleware.
type CheckedRequest struct {
	ClientKey string
	Method    string
	Path      string
	Decision  ratelimit.Decision
}

// DecisionHook observes every decision, e.g. for metrics or event publishing.
type DecisionHook func(ctx context.Context, req CheckedRequest)

// Config configures the RateLimiter middleware.
type Config struct {
	Keys  KeyPolicy
	Hooks []DecisionHook
}

// RateLimiter returns a Huma middleware that limits requests per client.
//
// Allowed requests get X-RateLimit-Limit and X-RateLimit-Remaining headers and
// continue down the chain. Denied requests additionally get Retry-After in
// whole seconds and a 429 response. Operations marked with ratelimit.Exempt
// bypass the limiter.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Limiter,
	cfg Config,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if ratelimit.IsExempt(ctx) {
			next(ctx)

			return
		}

		path := getOperationPath(ctx)
		key := cfg.Keys.ClientKey(ctx)

		decision, err := limiter.Allow(ctx.Context(), key)
		if err != nil {
			handleLimiterError(api, ctx, err, path, logger)

			return
		}

		setLimitHeaders(ctx, decision)

		checked := CheckedRequest{
			ClientKey: key,
			Method:    ctx.Method(),
			Path:      path,
			Decision:  decision,
		}
		for _, hook := range cfg.Hooks {
			hook(ctx.Context(), checked)
		}

		if !decision.Allowed {
			handleRateLimitExceeded(api, ctx, checked, logger)

			return
		}

		next(ctx)
	}
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	u := ctx.URL()

	return u.Path
}

func setLimitHeaders(ctx huma.Context, decision ratelimit.Decision) {
	ctx.SetHeader(HeaderLimit, strconv.Itoa(decision.Limit))
	ctx.SetHeader(HeaderRemaining, strconv.Itoa(decision.Remaining))
}

// handleLimiterError responds 400 for unidentifiable clients and 500 otherwise.
func handleLimiterError(api huma.API, ctx huma.Context, err error, path string, logger *zap.Logger) {
	if errors.Is(err, ratelimit.ErrInvalidKey) {
		logger.Warn("unable to identify client for rate limiting",
			zap.String("path", path),
			zap.String("method", ctx.Method()),
		)
		_ = huma.WriteErr(api, ctx, http.StatusBadRequest, "unable to identify client", err)

		return
	}

	logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
	_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)
}

// handleRateLimitExceeded logs and responds to a rate limit exceeded condition.
func handleRateLimitExceeded(api huma.API, ctx huma.Context, req CheckedRequest, logger *zap.Logger) {
	retryAfter := req.Decision.RetryAfter.Ceil()

	logger.Warn("rate limit exceeded",
		zap.String("path", req.Path),
		zap.String("method", req.Method),
		zap.String("client_key", req.ClientKey),
		zap.Int("limit", req.Decision.Limit),
		zap.Float64("retry_after", float64(req.Decision.RetryAfter)),
	)

	ctx.SetHeader(HeaderRetryAfter, strconv.Itoa(retryAfter))

	msg := fmt.Sprintf("rate limit exceeded, retry in %d seconds", retryAfter)
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}
