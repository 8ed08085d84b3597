// Package actorcontext carries the acting principal and request metadata
// through a request context so the audit trail can attribute mutations.
package actorcontext

import (
	"context"
	"strings"
)

type actorKey struct{}
type requestIDKey struct{}

// Actor identifies who triggered a mutation: a provider webhook, an
// operator, or the system itself.
type Actor struct {
	Type string
	ID   string
}

const (
	ActorTypeSystem   = "system"
	ActorTypeOperator = "operator"
	ActorTypeProvider = "provider"
)

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || strings.TrimSpace(actor.Type) == "" {
		return Actor{}, false
	}
	return actor, true
}

// WithRequestID stores the request correlation ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID from context, if set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}
