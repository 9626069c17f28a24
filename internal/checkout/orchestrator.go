// Package checkout joins a fee quote with the verification gate to authorize
// an order for payment.
package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/fees"
	"tradegate/internal/verification"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// SessionState is the part of a verification session checkout depends on.
type SessionState interface {
	IsComplete() bool
	CompletedCount() int
}

// Authorization is the result of a successful AuthorizeOrder: the amount the
// payment collaborator must capture and the idempotency token for it.
type Authorization struct {
	OrderID      id.OrderID
	Token        string
	Payable      decimal.Decimal
	Breakdown    *fees.FeeBreakdown
	AuthorizedAt time.Time
}

// Token derives the idempotency token for a set of fee inputs. Numerically
// equal order values produce the same token.
func Token(in fees.Inputs) string {
	canonical := strings.Join([]string{
		in.OrderValue.String(),
		string(in.Jurisdiction),
		string(in.DeliveryMethod),
		string(in.PaymentMethod),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// AuthorizeOrder moves order to AwaitingPayment when the session is complete
// and breakdown was computed from the order's current inputs. An order that is
// already awaiting payment returns its existing authorization, so repeated
// calls have one effect. On error the order is left unchanged.
func AuthorizeOrder(order *Order, session SessionState, breakdown *fees.FeeBreakdown, now time.Time) (*Authorization, error) {
	if err := order.ensureActive(); err != nil {
		return nil, err
	}

	current := order.Inputs()
	token := Token(current)

	switch order.State {
	case StateAwaitingPayment:
		if order.Authorization != nil && order.Authorization.Token == token {
			return order.Authorization, nil
		}
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorization does not match order inputs")
	case StatePlaced:
		return nil, dErrors.New(dErrors.CodeInvalidState, "order is already placed").
			WithDetail("state", string(StateFeesComputed), string(order.State))
	}

	completed := 0
	if session != nil {
		completed = session.CompletedCount()
	}
	if session == nil || !session.IsComplete() {
		return nil, dErrors.New(dErrors.CodeVerificationIncomplete, "verification must be completed before placing an order").
			WithDetail("verification", strconv.Itoa(verification.StepCount)+" steps completed", strconv.Itoa(completed)+" steps completed")
	}

	if breakdown == nil {
		return nil, dErrors.New(dErrors.CodeStaleFeeSnapshot, "fees have not been computed for this order").
			WithDetail("fee_snapshot", "current quote", "none")
	}
	if field, expected, actual := breakdown.Inputs.Mismatch(current); field != "" {
		return nil, dErrors.New(dErrors.CodeStaleFeeSnapshot, "order changed since fees were computed").
			WithDetail(field, expected, actual)
	}

	if order.State == StateDraft {
		order.State = StateFeesComputed
		order.Breakdown = breakdown
	}
	auth := &Authorization{
		OrderID:      order.ID,
		Token:        token,
		Payable:      breakdown.Payable,
		Breakdown:    breakdown,
		AuthorizedAt: now,
	}
	order.State = StateAwaitingPayment
	order.Authorization = auth
	order.UpdatedAt = now
	return auth, nil
}
