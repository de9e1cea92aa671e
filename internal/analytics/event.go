package analytics

import "time"

// Topics carrying rate limit events.
const (
	TopicClientThrottled = "ratelimit.throttled"
	TopicClientsEvicted  = "ratelimit.evicted"
)

// ClientThrottledEvent is emitted when a request is rejected by the limiter.
type ClientThrottledEvent struct {
	ClientKey         string    `json:"clientKey"`
	Method            string    `json:"method"`
	Path              string    `json:"path"`
	Limit             int       `json:"limit"`
	RetryAfterSeconds float64   `json:"retryAfterSeconds"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// ClientsEvictedEvent is emitted when a sweep removes idle clients.
type ClientsEvictedEvent struct {
	Evicted        int       `json:"evicted"`
	TrackedClients int       `json:"trackedClients"`
	SweptAt        time.Time `json:"sweptAt"`
}
