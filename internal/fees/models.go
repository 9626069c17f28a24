package fees

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tradegate/pkg/domain-errors"
)

// DeliveryMethod selects how purchased securities reach the buyer.
type DeliveryMethod string

const (
	DeliveryDematTransfer    DeliveryMethod = "demat_transfer"
	DeliveryPhysicalDelivery DeliveryMethod = "physical_delivery"
)

// IsValid checks if the delivery method is one of the supported values.
func (d DeliveryMethod) IsValid() bool {
	return d == DeliveryDematTransfer || d == DeliveryPhysicalDelivery
}

// ParseDeliveryMethod normalizes and validates a delivery method.
func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	d := DeliveryMethod(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeFieldValidationFailed, "unsupported delivery method").
			WithDetail("delivery_method", "demat_transfer|physical_delivery", s)
	}
	return d, nil
}

// PaymentMethod is the instrument used to pay the amount due.
type PaymentMethod string

const (
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "net_banking"
	PaymentWallet     PaymentMethod = "wallet"
	PaymentCard       PaymentMethod = "card"
)

// JurisdictionCode identifies a stamp-duty jurisdiction, e.g. "MH".
type JurisdictionCode string

// NormalizeJurisdiction upper-cases and trims a jurisdiction code.
func NormalizeJurisdiction(s string) JurisdictionCode {
	return JurisdictionCode(strings.ToUpper(strings.TrimSpace(s)))
}

// Jurisdiction carries the stamp rate levied on transaction value.
type Jurisdiction struct {
	Code      JurisdictionCode
	Name      string
	StampRate decimal.Decimal
}

// Inputs is everything a fee breakdown depends on. A breakdown keeps the
// Inputs it was computed from so callers can detect a stale quote.
type Inputs struct {
	OrderValue     decimal.Decimal
	Jurisdiction   JurisdictionCode
	DeliveryMethod DeliveryMethod
	PaymentMethod  PaymentMethod
}

// Mismatch compares two snapshots and returns the first differing field with
// its values in o (expected) and other (actual). Returns field "" when equal.
// Order values compare numerically, so 100 and 100.00 match.
func (o Inputs) Mismatch(other Inputs) (field, expected, actual string) {
	switch {
	case !o.OrderValue.Equal(other.OrderValue):
		return "order_value", o.OrderValue.String(), other.OrderValue.String()
	case o.Jurisdiction != other.Jurisdiction:
		return "jurisdiction", string(o.Jurisdiction), string(other.Jurisdiction)
	case o.DeliveryMethod != other.DeliveryMethod:
		return "delivery_method", string(o.DeliveryMethod), string(other.DeliveryMethod)
	case o.PaymentMethod != other.PaymentMethod:
		return "payment_method", string(o.PaymentMethod), string(other.PaymentMethod)
	}
	return "", "", ""
}

// FeeBreakdown is the itemized, full-precision result of ComputeFees.
type FeeBreakdown struct {
	Inputs           Inputs
	PlatformFee      decimal.Decimal
	Brokerage        decimal.Decimal
	GST              decimal.Decimal
	StampDuty        decimal.Decimal
	DPCharges        decimal.Decimal
	ESignCharge      decimal.Decimal
	PaymentSurcharge decimal.Decimal
	TotalFees        decimal.Decimal
	Payable          decimal.Decimal
}

// Line is one presentation row of a breakdown.
type Line struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Exact  string `json:"exact"`
}

// Display renders the breakdown rounded to two decimals for presentation.
// Exact carries the unrounded value for audit.
func (b *FeeBreakdown) Display() []Line {
	rows := []struct {
		name string
		v    decimal.Decimal
	}{
		{"order_value", b.Inputs.OrderValue},
		{"platform_fee", b.PlatformFee},
		{"brokerage", b.Brokerage},
		{"gst", b.GST},
		{"stamp_duty", b.StampDuty},
		{"dp_charges", b.DPCharges},
		{"esign_charge", b.ESignCharge},
		{"payment_surcharge", b.PaymentSurcharge},
		{"total_fees", b.TotalFees},
		{"payable", b.Payable},
	}
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, Line{Name: r.name, Amount: Money(r.v), Exact: r.v.String()})
	}
	return lines
}

// Money formats an amount with exactly two decimals, rounding half away
// from zero.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseInputs builds Inputs from their wire representation. It rejects
// malformed values; range and table checks stay in ComputeFees.
func ParseInputs(orderValue, jurisdiction, delivery, payment string) (Inputs, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(orderValue))
	if err != nil {
		return Inputs{}, dErrors.New(dErrors.CodeFieldValidationFailed, "order value must be a decimal number").
			WithDetail("order_value", "decimal number", orderValue)
	}
	d, err := ParseDeliveryMethod(delivery)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{
		OrderValue:     value,
		Jurisdiction:   NormalizeJurisdiction(jurisdiction),
		DeliveryMethod: d,
		PaymentMethod:  PaymentMethod(strings.ToLower(strings.TrimSpace(payment))),
	}, nil
}
