// Package request provides request-scoped middleware: correlation ids, panic
// recovery and access logging.
package request

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tradegate/pkg/requestcontext"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// RequestID propagates an inbound X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery converts panics into 500 responses and logs the stack value.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", requestcontext.RequestID(r.Context()),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal_error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Observer receives the outcome of every request, e.g. a metrics collector.
type Observer interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Logger writes one structured line per request and reports to observer
// when non-nil. route resolves the templated route for low-cardinality labels.
func Logger(logger *slog.Logger, observer Observer, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			pattern := r.URL.Path
			if route != nil {
				if p := route(r); p != "" {
					pattern = p
				}
			}
			if observer != nil {
				observer.ObserveRequest(r.Method, pattern, rec.status, elapsed)
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", pattern,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}
