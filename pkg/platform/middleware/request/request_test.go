package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/requestcontext"
)

type observation struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method: method, route: route, status: status})
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = requestcontext.RequestID(r.Context())
	}))

	t.Run("inbound id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
		assert.Equal(t, "req-123", fromCtx)
	})

	t.Run("missing id is generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rec.Header().Get(HeaderRequestID)
		assert.Len(t, got, 36)
		assert.Equal(t, got, fromCtx)
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	})
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "boom")
}

func TestLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	observer := &recordingObserver{}
	route := func(*http.Request) string { return "/orders/{id}" }

	h := Logger(logger, observer, route)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders/abc", nil))

	require.Len(t, observer.seen, 1)
	assert.Equal(t, observation{method: http.MethodPost, route: "/orders/{id}", status: http.StatusConflict}, observer.seen[0])
	assert.Contains(t, logs.String(), `"route":"/orders/{id}"`)
	assert.Contains(t, logs.String(), `"status":409`)

	t.Run("falls back to the raw path without a route resolver", func(t *testing.T) {
		observer := &recordingObserver{}
		h := Logger(slog.New(slog.NewTextHandler(io.Discard, nil)), observer, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Len(t, observer.seen, 1)
		assert.Equal(t, "/healthz", observer.seen[0].route)
		assert.Equal(t, http.StatusOK, observer.seen[0].status)
	})
}
