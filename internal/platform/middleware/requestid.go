package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"civicdesk/pkg/requestcontext"
)

// RequestIDHeader carries the correlation id in and out.
const RequestIDHeader = "X-Request-Id"

// RequestID reuses the caller-supplied correlation id or generates one,
// injects it into the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
