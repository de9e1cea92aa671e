package health_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttle/internal/health"
	"github.com/serroba/throttle/internal/middleware"
	"github.com/serroba/throttle/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) Ping(_ context.Context) error {
	return m.err
}

type denyAll struct{}

func (denyAll) Allow(_ context.Context, _ string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: false, RetryAfter: 60, Limit: 1}, nil
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestHandler_Check(t *testing.T) {
	t.Run("returns ok when redis is healthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{})

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Equal(t, "healthy", resp.Body.Redis)
	})

	t.Run("returns degraded when redis is unhealthy", func(t *testing.T) {
		handler := health.NewHandler(&mockChecker{err: errors.New("connection refused")})

		resp, err := handler.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "unhealthy", resp.Body.Redis)
	})
}

func TestRedisChecker(t *testing.T) {
	t.Run("ping succeeds against a running server", func(t *testing.T) {
		_, client := newRedisClient(t)

		assert.NoError(t, health.NewRedisChecker(client).Ping(context.Background()))
	})

	t.Run("ping fails once the server is gone", func(t *testing.T) {
		mr, client := newRedisClient(t)
		mr.Close()

		assert.Error(t, health.NewRedisChecker(client).Ping(context.Background()))
	})
}

func TestRegisterRoutes(t *testing.T) {
	_, api := humatest.New(t)
	api.UseMiddleware(middleware.RateLimiter(api, denyAll{}, middleware.Config{}, zap.NewNop()))

	_, client := newRedisClient(t)
	health.RegisterRoutes(api, health.NewHandler(health.NewRedisChecker(client)))

	resp := api.Get("/health")

	require.Equal(t, http.StatusOK, resp.Code, "health must bypass the rate limiter")
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
}
