package core

import "context"

type contextKey string

const requestIDKey contextKey = "request-id"

// HeaderRequestID carries the caller-side correlation ID on outgoing requests.
const HeaderRequestID = "X-Request-ID"

// WithRequestID attaches a correlation ID that transports forward as HeaderRequestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the correlation ID on ctx, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
