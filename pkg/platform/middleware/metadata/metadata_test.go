package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradegate/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain takes first", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:443", "203.0.113.7"},
		{"real ip header", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:443", "198.51.100.4"},
		{"remote addr strips port", nil, "192.0.2.10:51234", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req))
		})
	}
}

func TestDeviceSummary(t *testing.T) {
	t.Run("empty agent", func(t *testing.T) {
		assert.Empty(t, DeviceSummary(""))
	})

	t.Run("desktop chrome", func(t *testing.T) {
		ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		summary := DeviceSummary(ua)
		assert.Contains(t, summary, "Chrome 120")
		assert.Contains(t, summary, "Windows")
	})
}

func TestClientMetadataMiddleware(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("User-Agent", "curl/8.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "curl/8.0", gotUA)
}
