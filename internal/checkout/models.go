package checkout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/fees"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes and validates an order side.
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToLower(strings.TrimSpace(s)))
	if side != SideBuy && side != SideSell {
		return "", dErrors.New(dErrors.CodeValidation, "side must be buy or sell").
			WithDetail("side", "buy|sell", s)
	}
	return side, nil
}

// State is the checkout position of an order.
type State string

const (
	StateDraft           State = "draft"
	StateFeesComputed    State = "fees_computed"
	StateAwaitingPayment State = "awaiting_payment"
	StatePlaced          State = "placed"
)

// ArchiveReason records why an order left the active set.
type ArchiveReason string

const (
	ArchivePlaced    ArchiveReason = "placed"
	ArchiveAbandoned ArchiveReason = "abandoned"
)

// Order is a buy or sell intent moving through checkout. Breakdown is the
// most recent quote; it is kept after an edit so authorization can report
// which input went stale.
type Order struct {
	ID             id.OrderID
	UserID         id.UserID
	Side           Side
	Value          decimal.Decimal
	Jurisdiction   fees.JurisdictionCode
	DeliveryMethod fees.DeliveryMethod
	PaymentMethod  fees.PaymentMethod
	State          State

	Breakdown     *fees.FeeBreakdown
	Authorization *Authorization

	Archived       bool
	ArchivedReason ArchiveReason
	ArchivedAt     time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder creates a draft order. Jurisdiction and payment method are checked
// against the fee schedule when the order is quoted.
func NewOrder(orderID id.OrderID, userID id.UserID, side Side, in fees.Inputs, now time.Time) (*Order, error) {
	if err := checkInputs(in); err != nil {
		return nil, err
	}
	return &Order{
		ID:             orderID,
		UserID:         userID,
		Side:           side,
		Value:          in.OrderValue,
		Jurisdiction:   in.Jurisdiction,
		DeliveryMethod: in.DeliveryMethod,
		PaymentMethod:  in.PaymentMethod,
		State:          StateDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func checkInputs(in fees.Inputs) error {
	if !in.OrderValue.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidOrderValue, "order value must be greater than zero").
			WithDetail("order_value", "> 0", in.OrderValue.String())
	}
	if !in.DeliveryMethod.IsValid() {
		return dErrors.New(dErrors.CodeFieldValidationFailed, "unsupported delivery method").
			WithDetail("delivery_method", "demat_transfer|physical_delivery", string(in.DeliveryMethod))
	}
	return nil
}

// Inputs returns the order's current fee inputs.
func (o *Order) Inputs() fees.Inputs {
	return fees.Inputs{
		OrderValue:     o.Value,
		Jurisdiction:   o.Jurisdiction,
		DeliveryMethod: o.DeliveryMethod,
		PaymentMethod:  o.PaymentMethod,
	}
}

// QuoteIsCurrent reports whether the stored quote matches the current inputs.
func (o *Order) QuoteIsCurrent() bool {
	if o.Breakdown == nil {
		return false
	}
	field, _, _ := o.Breakdown.Inputs.Mismatch(o.Inputs())
	return field == ""
}

// Clone returns a shallow copy. Breakdown and Authorization are never mutated
// after creation, so sharing them is safe.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// Update carries the fields an edit changes; nil fields are left as is.
type Update struct {
	OrderValue     *decimal.Decimal
	Jurisdiction   *fees.JurisdictionCode
	DeliveryMethod *fees.DeliveryMethod
	PaymentMethod  *fees.PaymentMethod
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.OrderValue == nil && u.Jurisdiction == nil && u.DeliveryMethod == nil && u.PaymentMethod == nil
}

func (o *Order) ensureActive() error {
	if o.Archived {
		return dErrors.New(dErrors.CodeInvalidState, "order is archived").
			WithDetail("state", "active", string(o.ArchivedReason))
	}
	return nil
}

// ApplyUpdate edits a draft-side order and returns it to Draft. Orders
// awaiting payment can no longer change.
func (o *Order) ApplyUpdate(u Update, now time.Time) error {
	if err := o.ensureActive(); err != nil {
		return err
	}
	if o.State == StateAwaitingPayment || o.State == StatePlaced {
		return dErrors.New(dErrors.CodeInvalidState, "order can no longer be edited").
			WithDetail("state", "draft|fees_computed", string(o.State))
	}
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "update changes no fields")
	}

	in := o.Inputs()
	if u.OrderValue != nil {
		in.OrderValue = *u.OrderValue
	}
	if u.Jurisdiction != nil {
		in.Jurisdiction = *u.Jurisdiction
	}
	if u.DeliveryMethod != nil {
		in.DeliveryMethod = *u.DeliveryMethod
	}
	if u.PaymentMethod != nil {
		in.PaymentMethod = *u.PaymentMethod
	}
	if err := checkInputs(in); err != nil {
		return err
	}

	o.Value = in.OrderValue
	o.Jurisdiction = in.Jurisdiction
	o.DeliveryMethod = in.DeliveryMethod
	o.PaymentMethod = in.PaymentMethod
	o.State = StateDraft
	o.UpdatedAt = now
	return nil
}

// ApplyQuote stores a freshly computed breakdown for the current inputs.
func (o *Order) ApplyQuote(b *fees.FeeBreakdown, now time.Time) error {
	if err := o.ensureActive(); err != nil {
		return err
	}
	if o.State == StateAwaitingPayment || o.State == StatePlaced {
		return dErrors.New(dErrors.CodeInvalidState, "order is already authorized").
			WithDetail("state", "draft|fees_computed", string(o.State))
	}
	o.Breakdown = b
	o.State = StateFeesComputed
	o.UpdatedAt = now
	return nil
}

// ConfirmPayment places an authorized order once the payment collaborator
// captured the amount for token.
func (o *Order) ConfirmPayment(token string, now time.Time) error {
	if err := o.ensureActive(); err != nil {
		return err
	}
	if o.State != StateAwaitingPayment || o.Authorization == nil {
		return dErrors.New(dErrors.CodeInvalidState, "order is not awaiting payment").
			WithDetail("state", string(StateAwaitingPayment), string(o.State))
	}
	if token != o.Authorization.Token {
		return dErrors.New(dErrors.CodeConflict, "payment does not match the authorization")
	}
	o.State = StatePlaced
	o.archive(ArchivePlaced, now)
	return nil
}

// Abandon archives an order that was never placed.
func (o *Order) Abandon(now time.Time) error {
	if err := o.ensureActive(); err != nil {
		return err
	}
	if o.State == StatePlaced {
		return dErrors.New(dErrors.CodeInvalidState, "placed orders cannot be abandoned").
			WithDetail("state", "draft|fees_computed|awaiting_payment", string(o.State))
	}
	o.archive(ArchiveAbandoned, now)
	return nil
}

func (o *Order) archive(reason ArchiveReason, now time.Time) {
	o.Archived = true
	o.ArchivedReason = reason
	o.ArchivedAt = now
	o.UpdatedAt = now
}

// OrderAuthorized is published when an order first becomes payable so the
// payment collaborator can capture it.
type OrderAuthorized struct {
	OrderID       id.OrderID `json:"order_id"`
	UserID        id.UserID  `json:"user_id"`
	Token         string     `json:"token"`
	Payable       string     `json:"payable"`
	PaymentMethod string     `json:"payment_method"`
	AuthorizedAt  time.Time  `json:"authorized_at"`
}
