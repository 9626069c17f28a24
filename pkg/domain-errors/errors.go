// Package domainerrors carries coded errors across service and transport
// boundaries. Services return these (optionally wrapping an infrastructure
// cause) and handlers translate the code into a status.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure independent of the transport.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeInvalidState       Code = "invalid_state"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Fee engine. Non-retryable: the caller must correct the input.
	CodeInvalidOrderValue     Code = "invalid_order_value"
	CodeUnknownJurisdiction   Code = "unknown_jurisdiction"
	CodeUnknownPaymentMethod  Code = "unknown_payment_method"
	CodeFieldValidationFailed Code = "field_validation_failed"

	// Verification gate.
	CodeOutOfOrderStep Code = "out_of_order_step"

	// Checkout.
	CodeVerificationIncomplete Code = "verification_incomplete"
	CodeStaleFeeSnapshot       Code = "stale_fee_snapshot"
)

// Recoverable reports whether the user can resolve the failure by completing
// a workflow step or recomputing a quote, as opposed to correcting input.
func (c Code) Recoverable() bool {
	switch c {
	case CodeOutOfOrderStep, CodeFieldValidationFailed,
		CodeVerificationIncomplete, CodeStaleFeeSnapshot:
		return true
	}
	return false
}

// Error is a coded domain error. Field, Expected and Actual are optional and
// describe the offending input when the failure is tied to one.
type Error struct {
	Code     Code
	Message  string
	Field    string
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s", e.Field)
		if e.Expected != "" || e.Actual != "" {
			msg += fmt.Sprintf(" expected=%q actual=%q", e.Expected, e.Actual)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetail returns a copy of e naming the offending field and the
// expected-versus-actual values.
func (e *Error) WithDetail(field, expected, actual string) *Error {
	cp := *e
	cp.Field = field
	cp.Expected = expected
	cp.Actual = actual
	return &cp
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
