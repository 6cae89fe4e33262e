// Package requestcontext gives services access to request-scoped values
// without importing net/http. Middleware sets the values, domain code
// reads them, and tests inject them directly.
//
// The request time deserves a note: compliance records written within
// one operation must share a single timestamp, so services read the
// clock through Now instead of calling time.Now themselves. The
// requesttime middleware pins that instant per request, and tests pin
// it to cross eligibility expiry boundaries deterministically.
package requestcontext

import (
	"context"
	"time"
)

type (
	callerKey      struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Caller reports the authenticated principal key, or the empty string
// for unauthenticated requests and background work.
func Caller(ctx context.Context) string {
	s, _ := ctx.Value(callerKey{}).(string)
	return s
}

// WithCaller records the authenticated principal key.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// ClientIP reports the client address captured by the metadata
// middleware, or the empty string when none was recorded.
func ClientIP(ctx context.Context) string {
	s, _ := ctx.Value(clientIPKey{}).(string)
	return s
}

// UserAgent reports the client's User-Agent header, or the empty string
// when none was recorded.
func UserAgent(ctx context.Context) string {
	s, _ := ctx.Value(userAgentKey{}).(string)
	return s
}

// WithClientMetadata records the client address and User-Agent. Tests
// that bypass the middleware chain use it to exercise audit attribution.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// RequestID reports the request correlation ID, or the empty string
// outside a request.
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey{}).(string)
	return s
}

// WithRequestID records the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now reports the request-scoped time, falling back to the wall clock
// for workers and command-line tools that run outside a request.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request-scoped time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
