// Package fees computes the itemized, deterministic fee breakdown for a
// pending order. All arithmetic keeps full decimal precision; rounding happens
// only in FeeBreakdown.Display.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	dErrors "tradegate/pkg/domain-errors"
)

// Engine applies a Schedule. It is immutable after construction and safe for
// concurrent use.
type Engine struct {
	schedule Schedule
}

// NewEngine validates the schedule and takes a private copy of its tables.
func NewEngine(schedule Schedule) (*Engine, error) {
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}
	return &Engine{schedule: schedule.clone()}, nil
}

// ComputeFees prices an order:
//
//	platformFee      = max(value × 0.5%, 50)
//	brokerage        = value × 0.2%
//	gst              = (platformFee + brokerage) × 18%
//	stampDuty        = value × jurisdiction stamp rate
//	dpCharges        = 25 for demat transfer, else 0
//	esignCharge      = 10
//	paymentSurcharge = per payment method, added last
//	payable          = value + sum of the above
func (e *Engine) ComputeFees(in Inputs) (*FeeBreakdown, error) {
	if !in.OrderValue.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidOrderValue, "order value must be greater than zero").
			WithDetail("order_value", "> 0", in.OrderValue.String())
	}
	jurisdiction, ok := e.schedule.Jurisdictions[in.Jurisdiction]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownJurisdiction, "no stamp rate for jurisdiction").
			WithDetail("jurisdiction", "known jurisdiction code", string(in.Jurisdiction))
	}
	if !in.DeliveryMethod.IsValid() {
		return nil, dErrors.New(dErrors.CodeFieldValidationFailed, "unsupported delivery method").
			WithDetail("delivery_method", "demat_transfer|physical_delivery", string(in.DeliveryMethod))
	}
	surcharge, ok := e.schedule.Surcharges[in.PaymentMethod]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownPaymentMethod, "unsupported payment method").
			WithDetail("payment_method", "upi|net_banking|wallet|card", string(in.PaymentMethod))
	}

	s := e.schedule
	platformFee := decimal.Max(in.OrderValue.Mul(s.PlatformRate), s.PlatformFloor)
	brokerage := in.OrderValue.Mul(s.BrokerageRate)
	gst := platformFee.Add(brokerage).Mul(s.GSTRate)
	stampDuty := in.OrderValue.Mul(jurisdiction.StampRate)
	dpCharges := decimal.Zero
	if in.DeliveryMethod == DeliveryDematTransfer {
		dpCharges = s.DematDPCharge
	}
	esign := s.ESignCharge

	total := platformFee.Add(brokerage).Add(gst).Add(stampDuty).Add(dpCharges).Add(esign).Add(surcharge)

	return &FeeBreakdown{
		Inputs:           in,
		PlatformFee:      platformFee,
		Brokerage:        brokerage,
		GST:              gst,
		StampDuty:        stampDuty,
		DPCharges:        dpCharges,
		ESignCharge:      esign,
		PaymentSurcharge: surcharge,
		TotalFees:        total,
		Payable:          in.OrderValue.Add(total),
	}, nil
}

// Jurisdiction looks up a configured jurisdiction.
func (e *Engine) Jurisdiction(code JurisdictionCode) (Jurisdiction, bool) {
	j, ok := e.schedule.Jurisdictions[code]
	return j, ok
}

// Jurisdictions lists configured jurisdictions sorted by code.
func (e *Engine) Jurisdictions() []Jurisdiction {
	return e.schedule.sortedJurisdictions()
}

// IsSupportedPaymentMethod reports whether a surcharge is configured for m.
func (e *Engine) IsSupportedPaymentMethod(m PaymentMethod) bool {
	_, ok := e.schedule.Surcharges[m]
	return ok
}
