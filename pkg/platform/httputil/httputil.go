// Package httputil holds the JSON request/response plumbing shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "tradegate/pkg/domain-errors"
)

// maxBodyBytes caps request bodies; the largest payload is a five-row demat
// submission.
const maxBodyBytes = 64 << 10

// Validatable is implemented by request structs that normalize and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Field       string `json:"field,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto a status code and JSON body. Internal
// errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		de = dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	resp := errorResponse{
		Error:       string(de.Code),
		Field:       de.Field,
		Expected:    de.Expected,
		Actual:      de.Actual,
		Recoverable: de.Code.Recoverable(),
	}
	if de.Code != dErrors.CodeInternal {
		resp.Description = de.Message
	}
	WriteJSON(w, StatusFor(de.Code), resp)
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeFieldValidationFailed,
		dErrors.CodeInvalidOrderValue, dErrors.CodeUnknownJurisdiction,
		dErrors.CodeUnknownPaymentMethod:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidState, dErrors.CodeOutOfOrderStep,
		dErrors.CodeVerificationIncomplete, dErrors.CodeStaleFeeSnapshot:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON body into T and runs its Validate method
// when present. On failure it writes the error response and returns false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
