package store

import (
	"context"

	"github.com/serroba/throttle/internal/analytics"
	"go.uber.org/zap"
)

// Noop is an analytics.Store that only logs events.
type Noop struct {
	logger *zap.Logger
}

var _ analytics.Store = (*Noop)(nil)

// NewNoop creates a new logging-only analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveClientThrottled(_ context.Context, event *analytics.ClientThrottledEvent) error {
	n.logger.Info("client throttled",
		zap.String("client_key", event.ClientKey),
		zap.String("method", event.Method),
		zap.String("path", event.Path),
		zap.Int("limit", event.Limit),
		zap.Float64("retry_after_seconds", event.RetryAfterSeconds),
		zap.Time("occurred_at", event.OccurredAt),
	)

	return nil
}

func (n *Noop) SaveClientsEvicted(_ context.Context, event *analytics.ClientsEvictedEvent) error {
	n.logger.Info("idle clients evicted",
		zap.Int("evicted", event.Evicted),
		zap.Int("tracked_clients", event.TrackedClients),
		zap.Time("swept_at", event.SweptAt),
	)

	return nil
}
