package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration.
// This can be attached to Huma operations via the Metadata field.
//
// Every endpoint shares the single limiter policy; the only per-endpoint
// choice is whether the endpoint is limited at all.
type EndpointConfig struct {
	// Disabled skips rate limiting entirely for this endpoint.
	Disabled bool
}

// Exempt is operation metadata that disables rate limiting for an endpoint.
func Exempt() map[string]any {
	return map[string]any{
		MetadataKey: EndpointConfig{Disabled: true},
	}
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// IsExempt reports whether the operation handling ctx opted out of rate limiting.
func IsExempt(ctx huma.Context) bool {
	cfg := GetEndpointConfig(ctx)

	return cfg != nil && cfg.Disabled
}
