package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveClientThrottled(ctx context.Context, event *ClientThrottledEvent) error
	SaveClientsEvicted(ctx context.Context, event *ClientsEvictedEvent) error
}
