// Package requestcontext carries per-request values that services read
// without depending on net/http. The access-log middleware stamps them;
// tests and the CLI set them directly to pin the clock.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	requestIDKey key = iota
	clockKey
)

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID is empty outside an HTTP request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTime fixes the instant that eligibility and timestamps use for the
// rest of the request.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, clockKey, t)
}

// Now returns the instant set by WithTime, or the wall clock in UTC when none
// was set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(clockKey).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}
