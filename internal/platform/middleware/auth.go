package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "civicdesk/pkg/domain"
	"civicdesk/pkg/requestcontext"
)

// TokenValidator validates an access token and returns the actor it
// belongs to. Satisfied by jwt_token.JWTService.
type TokenValidator interface {
	Actor(tokenString string) (id.UserID, id.ActorRole, error)
}

// RequireAuth rejects requests without a valid bearer token and injects
// the actor id and role into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			actorID, role, err := validator.Actor(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithActorID(ctx, actorID)
			ctx = requestcontext.WithActorRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose actor role is not in
// the allowed set. Mount after RequireAuth.
func RequireRole(logger *slog.Logger, allowed ...id.ActorRole) func(http.Handler) http.Handler {
	allowedSet := make(map[id.ActorRole]bool, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.ActorRole(ctx)
			if !allowedSet[role] {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", string(role),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"permission_denied","error_description":"Role not allowed for this resource"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
