// Package requesttime captures a single "now" per request so audit entries,
// quotes and authorizations produced by one request share a timestamp.
package requesttime

import (
	"net/http"
	"time"

	"tradegate/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
