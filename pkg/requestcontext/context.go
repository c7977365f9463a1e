// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services only read them, so the
// core never evaluates authorization itself.
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actor is the resolved acting identity attached to every mutating operation.
// It is used purely for audit attribution; authorization happens upstream.
type Actor struct {
	UserID uuid.UUID
	// AuthType tags the channel the actor authenticated through
	// (e.g. "session", "api_key", "system").
	AuthType string
}

// System is the actor recorded for internally triggered mutations
// (cascades, auto-approvals).
var System = Actor{AuthType: "system"}

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorFrom retrieves the acting identity from the context.
// Returns the zero Actor if not set.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}

// WithActor injects an acting identity into the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts like workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
