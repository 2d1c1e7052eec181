// Package requestid assigns a UUID to every inbound HTTP request,
// stores it in the request context and echoes it in the X-Request-Id
// response header.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key under which the request id is stored.
const RequestIDKey contextKey = "requestID"

// Header is the HTTP header carrying the request id.
const Header = "X-Request-Id"

// Middleware attaches a request id to the context and the response.
// An id supplied by the client is reused, otherwise a new one is generated.
func Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(Header, id)

		h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// FromContext returns the request id stored in ctx, or an empty string.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
