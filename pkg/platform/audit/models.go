package audit

import (
	"context"
	"time"

	id "tradegate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: KYC
	// completion and order authorization. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or suspicious actions such as
	// out-of-order step submissions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity like fee quotes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from services to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string // order id, verification session id
	Action    string
	Decision  string // "authorized", "rejected", "completed"
	Reason    string // error code when rejected
	Detail    string // e.g. step name, payable amount
	Email     string
	RequestID string
	Device    string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

type AuditEvent string

const (
	// Verification events
	EventVerificationStarted   AuditEvent = "verification_started"
	EventStepCompleted         AuditEvent = "verification_step_completed"
	EventStepRejected          AuditEvent = "verification_step_rejected"
	EventVerificationCompleted AuditEvent = "verification_session_completed"

	// Checkout events
	EventOrderCreated    AuditEvent = "order_created"
	EventOrderUpdated    AuditEvent = "order_updated"
	EventFeesComputed    AuditEvent = "fees_computed"
	EventOrderAuthorized AuditEvent = "order_authorized"
	EventOrderRejected   AuditEvent = "order_rejected"
	EventOrderPlaced     AuditEvent = "order_placed"
	EventOrderAbandoned  AuditEvent = "order_abandoned"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationCompleted: CategoryCompliance,
	EventOrderAuthorized:       CategoryCompliance,
	EventOrderPlaced:           CategoryCompliance,

	EventStepRejected:  CategorySecurity,
	EventOrderRejected: CategorySecurity,

	EventVerificationStarted: CategoryOperations,
	EventStepCompleted:       CategoryOperations,
	EventOrderCreated:        CategoryOperations,
	EventOrderUpdated:        CategoryOperations,
	EventFeesComputed:        CategoryOperations,
	EventOrderAbandoned:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
