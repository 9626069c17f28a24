package verification

import (
	"strconv"
	"sync"
	"time"

	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
)

// Session is the ordered KYC gate for one user: a fixed array of step slots
// and a pointer to the one active step. Every slot below current is Completed,
// the slot at current is Active, and every slot above is Locked.
//
// Session is safe for concurrent use; CompleteStep calls are serialized.
type Session struct {
	mu sync.RWMutex

	ID        id.VerificationID
	UserID    id.UserID
	CreatedAt time.Time
	UpdatedAt time.Time

	steps   [StepCount]StepRecord
	current int
}

// NewSession returns a session with step 0 active.
func NewSession(sessionID id.VerificationID, userID id.UserID, now time.Time) *Session {
	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range s.steps {
		s.steps[i] = StepRecord{Kind: StepKind(i), Status: StatusLocked}
	}
	s.steps[0].Status = StatusActive
	return s
}

// CompleteStep accepts input for the step at index. Only the active step can
// be completed; any other index fails with OutOfOrderStep before the input is
// looked at. An input of the wrong kind or one that fails its own validation
// returns FieldValidationFailed and leaves the session unchanged.
func (s *Session) CompleteStep(index int, input StepInput, now time.Time) (StepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index != s.current {
		expected := strconv.Itoa(s.current)
		if s.current == StepCount {
			expected = "none"
		}
		return StepRecord{}, dErrors.New(dErrors.CodeOutOfOrderStep, "step is not the active step").
			WithDetail("step", expected, strconv.Itoa(index))
	}

	kind := StepKind(index)
	if input == nil {
		return StepRecord{}, dErrors.New(dErrors.CodeFieldValidationFailed, "step input is required").
			WithDetail("step", kind.String(), "none")
	}
	if input.Kind() != kind {
		return StepRecord{}, dErrors.New(dErrors.CodeFieldValidationFailed, "input does not belong to this step").
			WithDetail("step", kind.String(), input.Kind().String())
	}
	if err := input.Validate(); err != nil {
		return StepRecord{}, err
	}

	s.steps[index] = StepRecord{
		Kind:        kind,
		Status:      StatusCompleted,
		CompletedAt: now,
		Summary:     input.Summary(),
	}
	s.current++
	if s.current < StepCount {
		s.steps[s.current].Status = StatusActive
	}
	s.UpdatedAt = now
	return s.steps[index].clone(), nil
}

// Step returns a copy of the slot at index.
func (s *Session) Step(index int) (StepRecord, error) {
	if !StepKind(index).IsValid() {
		return StepRecord{}, dErrors.New(dErrors.CodeNotFound, "no such step").
			WithDetail("step", "0-6", strconv.Itoa(index))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[index].clone(), nil
}

// Steps returns a copy of every slot in workflow order.
func (s *Session) Steps() []StepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepRecord, StepCount)
	for i, r := range s.steps {
		out[i] = r.clone()
	}
	return out
}

// Current returns the index of the active step, or StepCount when done.
func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CompletedCount returns how many steps have been completed.
func (s *Session) CompletedCount() int {
	return s.Current()
}

// IsComplete reports whether every step has been completed.
func (s *Session) IsComplete() bool {
	return s.Current() == StepCount
}

// Snapshot is the serializable form of a session.
type Snapshot struct {
	ID        id.VerificationID `json:"id"`
	UserID    id.UserID         `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Current   int               `json:"current"`
	Steps     []StepSnapshot    `json:"steps"`
}

// StepSnapshot is the serializable form of a completed step.
type StepSnapshot struct {
	CompletedAt time.Time         `json:"completed_at"`
	Summary     map[string]string `json:"summary,omitempty"`
}

// Snapshot captures the session for persistence. Only completed steps are
// recorded; statuses are derived from the pointer on restore.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.ID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Current:   s.current,
		Steps:     make([]StepSnapshot, 0, s.current),
	}
	for i := 0; i < s.current; i++ {
		r := s.steps[i].clone()
		snap.Steps = append(snap.Steps, StepSnapshot{CompletedAt: r.CompletedAt, Summary: r.Summary})
	}
	return snap
}

// Restore rebuilds a session from a snapshot, rejecting snapshots whose
// pointer disagrees with the recorded steps.
func Restore(snap Snapshot) (*Session, error) {
	if snap.Current < 0 || snap.Current > StepCount || len(snap.Steps) != snap.Current {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "corrupt verification snapshot").
			WithDetail("current", strconv.Itoa(len(snap.Steps)), strconv.Itoa(snap.Current))
	}
	s := NewSession(snap.ID, snap.UserID, snap.CreatedAt)
	s.UpdatedAt = snap.UpdatedAt
	for i, st := range snap.Steps {
		s.steps[i] = StepRecord{
			Kind:        StepKind(i),
			Status:      StatusCompleted,
			CompletedAt: st.CompletedAt,
			Summary:     st.Summary,
		}
	}
	s.current = snap.Current
	if s.current < StepCount {
		s.steps[s.current].Status = StatusActive
	}
	return s, nil
}
