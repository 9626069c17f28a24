// Package domain holds typed identifiers shared across modules. Distinct types
// stop an order id from being passed where a user id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "tradegate/pkg/domain-errors"
)

// UserID identifies an authenticated user (the identity provider's subject).
type UserID uuid.UUID

// OrderID identifies a draft or placed order.
type OrderID uuid.UUID

// VerificationID identifies a verification session.
type VerificationID uuid.UUID

func (u UserID) String() string         { return uuid.UUID(u).String() }
func (o OrderID) String() string        { return uuid.UUID(o).String() }
func (v VerificationID) String() string { return uuid.UUID(v).String() }

func (u UserID) IsNil() bool         { return uuid.UUID(u) == uuid.Nil }
func (o OrderID) IsNil() bool        { return uuid.UUID(o) == uuid.Nil }
func (v VerificationID) IsNil() bool { return uuid.UUID(v) == uuid.Nil }

// NewOrderID returns a random order id.
func NewOrderID() OrderID { return OrderID(uuid.New()) }

// NewVerificationID returns a random verification session id.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// ParseUserID parses a non-nil UUID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseOrderID parses a non-nil UUID string.
func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID(s, "order_id")
	return OrderID(u), err
}

// ParseVerificationID parses a non-nil UUID string.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification_id")
	return VerificationID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}

// Text encoding keeps ids readable in JSON payloads, Redis snapshots and logs.

func (u UserID) MarshalText() ([]byte, error)         { return []byte(u.String()), nil }
func (o OrderID) MarshalText() ([]byte, error)        { return []byte(o.String()), nil }
func (v VerificationID) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	*u = UserID(parsed)
	return err
}

func (o *OrderID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	*o = OrderID(parsed)
	return err
}

func (v *VerificationID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	*v = VerificationID(parsed)
	return err
}
