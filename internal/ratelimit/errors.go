package ratelimit

import "errors"

var (
	// ErrInvalidConfiguration is returned by constructors given a non-positive limit, window or shard count.
	ErrInvalidConfiguration = errors.New("ratelimit: invalid configuration")

	// ErrInvalidKey is returned when a check is made without a client key.
	ErrInvalidKey = errors.New("ratelimit: client key must not be empty")
)
