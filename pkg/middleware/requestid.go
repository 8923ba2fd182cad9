package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/agentfleet/console/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on both request and response
const RequestIDHeader = "X-Request-Id"

// RequestID assigns every request an ID, honoring one forwarded by an
// upstream proxy, and echoes it on the response for client correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextkeys.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom extracts the request ID assigned by RequestID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return id
}
