package metadata

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"tradegate/pkg/requestcontext"
)

// ClientMetadata extracts client IP, User-Agent and a parsed device summary
// and stores them in the request context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua, DeviceSummary(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceSummary renders a short "Browser Version / OS" label for audit
// trails. Returns "" for an empty User-Agent.
func DeviceSummary(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	os := ua.OS()
	if name == "" {
		name = "unknown"
	}
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}
	label := strings.TrimSpace(fmt.Sprintf("%s %s", name, version))
	if ua.Mobile() {
		label += " (mobile)"
	}
	if os != "" {
		label += " / " + os
	}
	return label
}

// ClientIPFromRequest extracts the real client IP, honoring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs; the first is the client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" or "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
