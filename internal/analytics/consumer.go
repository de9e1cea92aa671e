package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/throttle/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumers returns one consumer per analytics topic, each persisting
// into store.
func NewConsumers(subscriber message.Subscriber, store Store, logger *zap.Logger) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer(subscriber, TopicClientThrottled,
			func(ctx context.Context, event *ClientThrottledEvent) error {
				return store.SaveClientThrottled(ctx, event)
			},
			logger,
		),
		messaging.NewConsumer(subscriber, TopicClientsEvicted,
			func(ctx context.Context, event *ClientsEvictedEvent) error {
				return store.SaveClientsEvicted(ctx, event)
			},
			logger,
		),
	}
}
