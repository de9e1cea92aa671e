package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttle/internal/ratelimit"
)

// RegisterRoutes registers the API routes. Only /ping is rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Summary:     "Ping",
		Description: "Returns pong. Subject to the per-client rate limit.",
		Tags:        []string{"Demo"},
		Errors:      []int{http.StatusBadRequest, http.StatusTooManyRequests},
	}, h.Ping)

	huma.Register(api, huma.Operation{
		OperationID: "rate-limit-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Rate limiter stats",
		Description: "Reports the limiter policy and how many clients it currently tracks.",
		Tags:        []string{"Rate limiting"},
		Metadata:    ratelimit.Exempt(),
	}, h.Stats)
}
