// Package requestcontext stores request-scoped values (request id, clock,
// resolved principal) on a context.Context using unexported keys.
package requestcontext

import (
	"context"
	"time"

	identity "streak/contracts/identity"
)

type (
	requestIDKey struct{}
	nowKey       struct{}
	principalKey struct{}
)

// WithRequestID attaches the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" outside a request.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins the request clock so every layer observes the same instant.
func WithTime(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if ctx != nil {
		if v, ok := ctx.Value(nowKey{}).(time.Time); ok && !v.IsZero() {
			return v
		}
	}
	return time.Now().UTC()
}

// WithPrincipal attaches the resolved caller.
func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Principal returns the resolved caller, if identity resolution ran.
func Principal(ctx context.Context) (identity.Principal, bool) {
	if ctx == nil {
		return identity.Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(identity.Principal)
	if !ok || p.IsZero() {
		return identity.Principal{}, false
	}
	return p, true
}
