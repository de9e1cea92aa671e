package handlers

import (
	"context"

	"github.com/serroba/throttle/internal/ratelimit"
)

// StatsProvider reports limiter state.
type StatsProvider interface {
	Stats() ratelimit.Stats
}

// Handler serves the demo API protected by the rate limiter.
type Handler struct {
	stats StatsProvider
}

// NewHandler creates a new API handler.
func NewHandler(stats StatsProvider) *Handler {
	return &Handler{stats: stats}
}

// Ping answers pong. It is the action being rate limited.
func (h *Handler) Ping(_ context.Context, _ *struct{}) (*PingResponse, error) {
	resp := &PingResponse{}
	resp.Body.Message = "pong"

	return resp, nil
}

// Stats reports the limiter's configuration and tracked client count.
func (h *Handler) Stats(_ context.Context, _ *struct{}) (*StatsResponse, error) {
	stats := h.stats.Stats()

	resp := &StatsResponse{}
	resp.Body.TrackedClients = stats.TrackedClients
	resp.Body.MaxRequests = stats.MaxRequests
	resp.Body.WindowSizeSeconds = float64(stats.WindowSize)

	return resp, nil
}
