// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, tests
// inject them, without anyone importing net/http.
package requestcontext

import (
	"context"
	"time"

	id "civicdesk/pkg/domain"
)

type (
	actorIDKey   struct{}
	actorRoleKey struct{}
	requestIDKey struct{}
	timeKey      struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActorID   = actorIDKey{}
	ContextKeyActorRole = actorRoleKey{}
	ContextKeyRequestID = requestIDKey{}
	ContextKeyTime      = timeKey{}
)

// ActorID retrieves the authenticated actor id, zero when unauthenticated.
func ActorID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(ContextKeyActorID).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

// WithActorID injects the authenticated actor id.
func WithActorID(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorRole retrieves the authorization class of the caller.
func ActorRole(ctx context.Context) id.ActorRole {
	if v, ok := ctx.Value(ContextKeyActorRole).(id.ActorRole); ok {
		return v
	}
	return ""
}

// WithActorRole injects the caller's authorization class.
func WithActorRole(ctx context.Context, role id.ActorRole) context.Context {
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// RequestID retrieves the request correlation id, empty when unset.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-pinned time when one was injected, wall-clock
// otherwise. Tests pin time with WithTime.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ContextKeyTime).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime pins the clock for the rest of the request.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyTime, t)
}
