// Package callback authenticates server-to-server callbacks signed with a
// shared secret, such as payment capture notifications.
package callback

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tradegate/pkg/requestcontext"
)

const (
	HeaderTimestamp = "X-Tradegate-Timestamp"
	HeaderSignature = "X-Tradegate-Signature"

	maxBodyBytes = 1 << 20
)

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>" under secret.
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type config struct {
	tolerance time.Duration
	now       func() time.Time
}

type Option func(*config)

// WithTolerance bounds how far the signed timestamp may drift from now.
func WithTolerance(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.tolerance = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// RequireSignature rejects requests whose body is not signed with secret
// inside the tolerance window. An empty secret rejects every request, so an
// unconfigured deployment never accepts callbacks.
func RequireSignature(secret string, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{tolerance: 5 * time.Minute, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(reason string) {
				logger.WarnContext(ctx, "callback rejected",
					"reason", reason,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write(fmt.Appendf(nil, `{"error":"unauthorized","error_description":"%s"}`, reason))
			}

			if secret == "" {
				reject("callbacks are not enabled")
				return
			}
			ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				reject("missing or invalid callback timestamp")
				return
			}
			if drift := cfg.now().Sub(time.Unix(ts, 0)).Abs(); drift > cfg.tolerance {
				reject("callback timestamp outside tolerance")
				return
			}
			sig, err := hex.DecodeString(r.Header.Get(HeaderSignature))
			if err != nil || len(sig) == 0 {
				reject("missing or invalid callback signature")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				reject("unreadable callback body")
				return
			}
			_ = r.Body.Close()
			expected, _ := hex.DecodeString(Sign(secret, ts, body))
			if !hmac.Equal(sig, expected) {
				reject("callback signature mismatch")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
