package handler

import "tradegate/internal/fees"

// InputsResponse echoes the snapshot a breakdown was computed from.
type InputsResponse struct {
	OrderValue     string `json:"order_value"`
	Jurisdiction   string `json:"jurisdiction"`
	DeliveryMethod string `json:"delivery_method"`
	PaymentMethod  string `json:"payment_method"`
}

// BreakdownResponse is the itemized JSON form of a fee breakdown. Amounts are
// rounded to two decimals; Exact keeps the full-precision values.
type BreakdownResponse struct {
	Inputs    InputsResponse `json:"inputs"`
	Lines     []fees.Line    `json:"lines"`
	TotalFees string         `json:"total_fees"`
	Payable   string         `json:"payable"`
}

// FromBreakdown converts a breakdown to its response form.
func FromBreakdown(b *fees.FeeBreakdown) *BreakdownResponse {
	if b == nil {
		return nil
	}
	return &BreakdownResponse{
		Inputs: InputsResponse{
			OrderValue:     b.Inputs.OrderValue.String(),
			Jurisdiction:   string(b.Inputs.Jurisdiction),
			DeliveryMethod: string(b.Inputs.DeliveryMethod),
			PaymentMethod:  string(b.Inputs.PaymentMethod),
		},
		Lines:     b.Display(),
		TotalFees: fees.Money(b.TotalFees),
		Payable:   fees.Money(b.Payable),
	}
}
