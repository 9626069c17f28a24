// Package testutil provides request builders and response assertions for
// handler and router tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/platform/middleware/callback"
)

// NewJSONRequest creates a request whose body is body marshaled to JSON. A
// nil body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithCallbackSignature signs the request body the way the payment
// collaborator does.
func WithCallbackSignature(t *testing.T, req *http.Request, secret string) *http.Request {
	t.Helper()
	var body []byte
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		body = raw
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	ts := time.Now().Unix()
	req.Header.Set(callback.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(callback.HeaderSignature, callback.Sign(secret, ts, body))
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the response body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response: %s", rr.Body.String())
	return &result
}

// AssertStatusAndError asserts the status code and the "error" field of a
// JSON error body.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code: %s", rr.Body.String())
	errResp := UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, expectedCode, (*errResp)["error"], "unexpected error code")
}

// AssertJSONContains asserts the top-level JSON object has key set to value.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expectedValue any) {
	t.Helper()
	result := UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, expectedValue, (*result)[key], "unexpected value for key %q", key)
}
