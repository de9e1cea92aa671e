package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// KeyPolicy controls how the rate limit key is derived from a request.
type KeyPolicy struct {
	// TrustProxyHeaders reads the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that overwrites these headers.
	TrustProxyHeaders bool

	// AnonymousKey is used when no client address can be determined. When
	// empty, such requests are rejected instead of sharing one bucket.
	AnonymousKey string
}

// ClientKey returns the rate limit key for the request, or "" if the client
// cannot be identified and no anonymous key is configured.
func (p KeyPolicy) ClientKey(ctx huma.Context) string {
	if ip := p.clientIP(ctx); ip != "" {
		return ip
	}

	return p.AnonymousKey
}

// clientIP extracts the client IP from the request, considering proxies when trusted.
func (p KeyPolicy) clientIP(ctx huma.Context) string {
	if p.TrustProxyHeaders {
		// Check X-Forwarded-For header (may contain multiple IPs)
		if xff := ctx.Header("X-Forwarded-For"); xff != "" {
			// Take the first IP (original client)
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
			return xri
		}
	}

	addr := strings.TrimSpace(ctx.RemoteAddr())

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
