package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/throttle/internal/messaging"
	"github.com/serroba/throttle/internal/middleware"
	"github.com/serroba/throttle/internal/ratelimit"
	"go.uber.org/zap"
)

// Publisher turns limiter activity into analytics events.
//
// Publishing is best effort: failures are logged and never affect the
// request or the sweep that triggered them.
type Publisher struct {
	throttled messaging.Publish[ClientThrottledEvent]
	evicted   messaging.Publish[ClientsEvictedEvent]
	clock     ratelimit.Clock
	logger    *zap.Logger
}

// NewPublisher creates a new analytics publisher.
func NewPublisher(publisher message.Publisher, clock ratelimit.Clock, logger *zap.Logger) *Publisher {
	return &Publisher{
		throttled: messaging.NewPublishFunc[ClientThrottledEvent](publisher, TopicClientThrottled),
		evicted:   messaging.NewPublishFunc[ClientsEvictedEvent](publisher, TopicClientsEvicted),
		clock:     clock,
		logger:    logger,
	}
}

// OnDecision publishes a ClientThrottledEvent for denied requests. It
// satisfies middleware.DecisionHook.
func (p *Publisher) OnDecision(ctx context.Context, req middleware.CheckedRequest) {
	if req.Decision.Allowed {
		return
	}

	event := &ClientThrottledEvent{
		ClientKey:         req.ClientKey,
		Method:            req.Method,
		Path:              req.Path,
		Limit:             req.Decision.Limit,
		RetryAfterSeconds: float64(req.Decision.RetryAfter),
		OccurredAt:        p.clock.Now().UTC(),
	}

	if err := p.throttled(ctx, event); err != nil {
		p.logger.Warn("failed to publish throttled event",
			zap.String("client_key", req.ClientKey),
			zap.Error(err),
		)
	}
}

// OnSweep publishes a ClientsEvictedEvent when a sweep removed anything. It
// satisfies ratelimit.SweepHook.
func (p *Publisher) OnSweep(evicted int, stats ratelimit.Stats) {
	if evicted == 0 {
		return
	}

	event := &ClientsEvictedEvent{
		Evicted:        evicted,
		TrackedClients: stats.TrackedClients,
		SweptAt:        p.clock.Now().UTC(),
	}

	if err := p.evicted(context.Background(), event); err != nil {
		p.logger.Warn("failed to publish evicted event",
			zap.Int("evicted", evicted),
			zap.Error(err),
		)
	}
}
