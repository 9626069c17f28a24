package handler

import (
	"time"

	"tradegate/internal/checkout"
	"tradegate/internal/fees"
	feehandler "tradegate/internal/fees/handler"
)

// OrderResponse is the JSON view of an order.
type OrderResponse struct {
	OrderID        string                        `json:"order_id"`
	Side           string                        `json:"side"`
	OrderValue     string                        `json:"order_value"`
	Jurisdiction   string                        `json:"jurisdiction"`
	DeliveryMethod string                        `json:"delivery_method"`
	PaymentMethod  string                        `json:"payment_method"`
	State          string                        `json:"state"`
	QuoteCurrent   bool                          `json:"quote_current"`
	Fees           *feehandler.BreakdownResponse `json:"fees,omitempty"`
	Authorization  *AuthorizationResponse        `json:"authorization,omitempty"`
	Archived       bool                          `json:"archived"`
	ArchivedReason string                        `json:"archived_reason,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

// AuthorizationResponse carries the amount to capture and its idempotency
// token.
type AuthorizationResponse struct {
	OrderID      string                        `json:"order_id"`
	Token        string                        `json:"token"`
	Payable      string                        `json:"payable"`
	PayableExact string                        `json:"payable_exact"`
	Fees         *feehandler.BreakdownResponse `json:"fees,omitempty"`
	AuthorizedAt time.Time                     `json:"authorized_at"`
}

func toOrderResponse(o *checkout.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:        o.ID.String(),
		Side:           string(o.Side),
		OrderValue:     o.Value.String(),
		Jurisdiction:   string(o.Jurisdiction),
		DeliveryMethod: string(o.DeliveryMethod),
		PaymentMethod:  string(o.PaymentMethod),
		State:          string(o.State),
		QuoteCurrent:   o.QuoteIsCurrent(),
		Fees:           feehandler.FromBreakdown(o.Breakdown),
		Authorization:  toAuthorizationResponse(o.Authorization),
		Archived:       o.Archived,
		ArchivedReason: string(o.ArchivedReason),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toAuthorizationResponse(a *checkout.Authorization) *AuthorizationResponse {
	if a == nil {
		return nil
	}
	return &AuthorizationResponse{
		OrderID:      a.OrderID.String(),
		Token:        a.Token,
		Payable:      fees.Money(a.Payable),
		PayableExact: a.Payable.String(),
		Fees:         feehandler.FromBreakdown(a.Breakdown),
		AuthorizedAt: a.AuthorizedAt,
	}
}
