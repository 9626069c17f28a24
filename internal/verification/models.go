package verification

import (
	"fmt"
	"maps"
	"time"

	id "tradegate/pkg/domain"
)

// StepKind identifies one stage of the KYC workflow. The numeric value is the
// stage's fixed position in a session.
type StepKind int

const (
	StepDocuments StepKind = iota
	StepPAN
	StepAddress
	StepBank
	StepDemat
	StepVideoKYC
	StepESign
)

// StepCount is the number of stages a session must complete.
const StepCount = 7

var stepNames = [StepCount]string{
	"documents",
	"pan",
	"address",
	"bank",
	"demat",
	"video_kyc",
	"esign",
}

func (k StepKind) String() string {
	if k.IsValid() {
		return stepNames[k]
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// ParseStepKind resolves a step name such as "video_kyc".
func ParseStepKind(name string) (StepKind, bool) {
	for i, n := range stepNames {
		if n == name {
			return StepKind(i), true
		}
	}
	return 0, false
}

// IsValid reports whether k names a workflow stage.
func (k StepKind) IsValid() bool {
	return k >= 0 && int(k) < StepCount
}

// StepStatus is the lifecycle position of a single step.
type StepStatus string

const (
	StatusLocked    StepStatus = "locked"
	StatusActive    StepStatus = "active"
	StatusCompleted StepStatus = "completed"
)

// StepRecord is one slot of a session. Summary holds a redacted view of the
// accepted input for read-only display.
type StepRecord struct {
	Kind        StepKind
	Status      StepStatus
	CompletedAt time.Time
	Summary     map[string]string
}

func (r StepRecord) clone() StepRecord {
	cp := r
	if r.Summary != nil {
		cp.Summary = maps.Clone(r.Summary)
	}
	return cp
}

// SessionCompleted is published once a user finishes every stage.
type SessionCompleted struct {
	SessionID   id.VerificationID `json:"session_id"`
	UserID      id.UserID         `json:"user_id"`
	CompletedAt time.Time         `json:"completed_at"`
}
