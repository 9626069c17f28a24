package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradegate/internal/checkout"
	"tradegate/internal/fees"
	dErrors "tradegate/pkg/domain-errors"
)

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Side           string `json:"side"`
	OrderValue     string `json:"order_value"`
	Jurisdiction   string `json:"jurisdiction"`
	DeliveryMethod string `json:"delivery_method"`
	PaymentMethod  string `json:"payment_method"`

	side   checkout.Side
	inputs fees.Inputs
}

// Validate parses the side and fee inputs.
func (r *CreateOrderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	side, err := checkout.ParseSide(r.Side)
	if err != nil {
		return err
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
	r.side = side
	r.inputs = in
	return nil
}

func (r *CreateOrderRequest) ParsedSide() checkout.Side { return r.side }
func (r *CreateOrderRequest) Inputs() fees.Inputs      { return r.inputs }

// UpdateOrderRequest is the body of PATCH /orders/{id}. Omitted fields are
// left unchanged.
type UpdateOrderRequest struct {
	OrderValue     *string `json:"order_value,omitempty"`
	Jurisdiction   *string `json:"jurisdiction,omitempty"`
	DeliveryMethod *string `json:"delivery_method,omitempty"`
	PaymentMethod  *string `json:"payment_method,omitempty"`

	update checkout.Update
}

// Validate parses the present fields into an update.
func (r *UpdateOrderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var u checkout.Update
	if r.OrderValue != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*r.OrderValue))
		if err != nil {
			return dErrors.New(dErrors.CodeFieldValidationFailed, "order value must be a decimal number").
				WithDetail("order_value", "decimal number", *r.OrderValue)
		}
		u.OrderValue = &v
	}
	if r.Jurisdiction != nil {
		j := fees.NormalizeJurisdiction(*r.Jurisdiction)
		u.Jurisdiction = &j
	}
	if r.DeliveryMethod != nil {
		d, err := fees.ParseDeliveryMethod(*r.DeliveryMethod)
		if err != nil {
			return err
		}
		u.DeliveryMethod = &d
	}
	if r.PaymentMethod != nil {
		p := fees.PaymentMethod(strings.ToLower(strings.TrimSpace(*r.PaymentMethod)))
		u.PaymentMethod = &p
	}
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "update changes no fields")
	}
	r.update = u
	return nil
}

func (r *UpdateOrderRequest) Update() checkout.Update { return r.update }

// ConfirmPaymentRequest is sent by the payment collaborator once it captured
// the authorized amount.
type ConfirmPaymentRequest struct {
	Token            string `json:"token"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

func (r *ConfirmPaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}
