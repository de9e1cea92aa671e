package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/throttle/internal/middleware"
	"github.com/serroba/throttle/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testRemoteAddr = "192.168.1.1:12345"
	testClientIP   = "192.168.1.1"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

type mockLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (m *mockLimiter) Allow(_ context.Context, _ string) (ratelimit.Decision, error) {
	m.calls++

	return m.decision, m.err
}

type capturingLimiter struct {
	capturedKey string
}

func (c *capturingLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	c.capturedKey = key

	return ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}, nil
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers         map[string]string
	responseHeaders map[string]string
	remoteAddr      string
	written         []byte
	statusCode      int
	method          string
	operation       *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:         make(map[string]string),
		responseHeaders: make(map[string]string),
		remoteAddr:      testRemoteAddr,
		method:          "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return "example.com" }
func (m *mockHumaContext) RemoteAddr() string                    { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{Path: "/ping"} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)   { m.responseHeaders[name] = value }
func (m *mockHumaContext) SetHeader(name, value string)      { m.responseHeaders[name] = value }
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

func TestRateLimiter(t *testing.T) {
	t.Run("calls next and sets headers when allowed", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 4, Limit: 5}}
		mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

		ctx := newMockHumaContext()

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled, "next should be called when allowed")
		assert.Equal(t, "5", ctx.responseHeaders[middleware.HeaderLimit])
		assert.Equal(t, "4", ctx.responseHeaders[middleware.HeaderRemaining])
		assert.NotContains(t, ctx.responseHeaders, middleware.HeaderRetryAfter)
	})

	t.Run("returns 429 with retry after in seconds when rate limited", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 29.2, Limit: 5}}
		mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

		ctx := newMockHumaContext()

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled, "next should not be called when rate limited")
		assert.Equal(t, http.StatusTooManyRequests, ctx.statusCode)
		assert.Equal(t, "30", ctx.responseHeaders[middleware.HeaderRetryAfter])
		assert.Equal(t, "0", ctx.responseHeaders[middleware.HeaderRemaining])
		assert.Equal(t, "5", ctx.responseHeaders[middleware.HeaderLimit])
		assert.Contains(t, string(ctx.written), "rate limit exceeded, retry in 30 seconds")
	})

	t.Run("returns 400 when the client cannot be identified", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{err: ratelimit.ErrInvalidKey}
		mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

		ctx := newMockHumaContext()

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusBadRequest, ctx.statusCode)
	})

	t.Run("returns 500 on limiter error", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{err: errors.New("limiter error")}
		mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

		ctx := newMockHumaContext()

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.False(t, nextCalled, "next should not be called when limiter errors")
		assert.Equal(t, http.StatusInternalServerError, ctx.statusCode)
	})

	t.Run("skips rate limiting for exempt operations", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false}}
		mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{Path: "/health", Metadata: ratelimit.Exempt()}

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled)
		assert.Zero(t, limiter.calls)
		assert.Empty(t, ctx.responseHeaders)
	})

	t.Run("runs hooks for every decision", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 10, Limit: 3}}

		var checked []middleware.CheckedRequest

		cfg := middleware.Config{
			Hooks: []middleware.DecisionHook{
				func(_ context.Context, req middleware.CheckedRequest) {
					checked = append(checked, req)
				},
			},
		}
		mw := middleware.RateLimiter(api, limiter, cfg, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.method = "POST"
		ctx.operation = &huma.Operation{Path: "/ping"}

		mw(ctx, func(_ huma.Context) {})

		require.Len(t, checked, 1)
		assert.Equal(t, testClientIP, checked[0].ClientKey)
		assert.Equal(t, "POST", checked[0].Method)
		assert.Equal(t, "/ping", checked[0].Path)
		assert.False(t, checked[0].Decision.Allowed)
	})

	t.Run("falls back to the request path without an operation", func(t *testing.T) {
		api := newTestAPI()
		limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 3}}

		var path string

		cfg := middleware.Config{
			Hooks: []middleware.DecisionHook{
				func(_ context.Context, req middleware.CheckedRequest) { path = req.Path },
			},
		}
		mw := middleware.RateLimiter(api, limiter, cfg, zap.NewNop())

		mw(newMockHumaContext(), func(_ huma.Context) {})

		assert.Equal(t, "/ping", path)
	})
}

func TestRateLimiter_WithSlidingWindowLimiter(t *testing.T) {
	api := newTestAPI()

	core, err := ratelimit.NewSlidingWindowLimiter(3, 60)
	require.NoError(t, err)

	limiter := ratelimit.NewClockedLimiter(core, ratelimit.SystemClock{})
	mw := middleware.RateLimiter(api, limiter, middleware.Config{}, zap.NewNop())

	for i, want := range []string{"2", "1", "0"} {
		ctx := newMockHumaContext()

		nextCalled := false

		mw(ctx, func(_ huma.Context) {
			nextCalled = true
		})

		assert.True(t, nextCalled, "request %d should be allowed", i+1)
		assert.Equal(t, "3", ctx.responseHeaders[middleware.HeaderLimit])
		assert.Equal(t, want, ctx.responseHeaders[middleware.HeaderRemaining])
	}

	ctx := newMockHumaContext()

	nextCalled := false

	mw(ctx, func(_ huma.Context) {
		nextCalled = true
	})

	assert.False(t, nextCalled, "4th request should be denied")
	assert.Equal(t, http.StatusTooManyRequests, ctx.statusCode)
	assert.NotEmpty(t, ctx.responseHeaders[middleware.HeaderRetryAfter])

	// a different client is unaffected
	other := newMockHumaContext()
	other.remoteAddr = "10.0.0.9:4000"

	nextCalled = false

	mw(other, func(_ huma.Context) {
		nextCalled = true
	})

	assert.True(t, nextCalled)
}
