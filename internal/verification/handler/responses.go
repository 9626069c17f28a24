package handler

import (
	"time"

	"tradegate/internal/verification"
)

// SessionResponse is the JSON view of a verification session.
type SessionResponse struct {
	SessionID      string         `json:"session_id"`
	CurrentStep    int            `json:"current_step"`
	CompletedSteps int            `json:"completed_steps"`
	Complete       bool           `json:"complete"`
	Steps          []StepResponse `json:"steps"`
}

// StepResponse is the JSON view of one step slot.
type StepResponse struct {
	Index       int               `json:"index"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Summary     map[string]string `json:"summary,omitempty"`
}

func toStepResponse(r verification.StepRecord) StepResponse {
	resp := StepResponse{
		Index:   int(r.Kind),
		Kind:    r.Kind.String(),
		Status:  string(r.Status),
		Summary: r.Summary,
	}
	if !r.CompletedAt.IsZero() {
		t := r.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

func toSessionResponse(s *verification.Session) *SessionResponse {
	steps := s.Steps()
	resp := &SessionResponse{
		SessionID:      s.ID.String(),
		CurrentStep:    s.Current(),
		CompletedSteps: s.CompletedCount(),
		Complete:       s.IsComplete(),
		Steps:          make([]StepResponse, 0, len(steps)),
	}
	for _, st := range steps {
		resp.Steps = append(resp.Steps, toStepResponse(st))
	}
	return resp
}
