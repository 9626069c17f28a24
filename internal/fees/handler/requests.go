package handler

import (
	"tradegate/internal/fees"
	dErrors "tradegate/pkg/domain-errors"
)

// QuoteRequest is the HTTP request body for POST /fees/quote.
type QuoteRequest struct {
	OrderValue     string `json:"order_value"`
	Jurisdiction   string `json:"jurisdiction"`
	DeliveryMethod string `json:"delivery_method"`
	PaymentMethod  string `json:"payment_method"`

	parsed fees.Inputs
}

// Validate parses the request into fee inputs.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *QuoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.OrderValue == "" {
		return dErrors.New(dErrors.CodeValidation, "order_value is required")
	}
	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	in, err := fees.ParseInputs(r.OrderValue, r.Jurisdiction, r.DeliveryMethod, r.PaymentMethod)
	if err != nil {
		return err
	}
	r.parsed = in
	return nil
}

// Inputs returns the parsed fee inputs.
func (r *QuoteRequest) Inputs() fees.Inputs {
	return r.parsed
}
