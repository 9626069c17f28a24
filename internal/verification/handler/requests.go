package handler

import (
	"strings"

	"tradegate/internal/verification"
	dErrors "tradegate/pkg/domain-errors"
)

// CompleteStepRequest is the body of POST /verification/steps/{index}. Kind
// selects which of the remaining fields apply.
type CompleteStepRequest struct {
	Kind string `json:"kind"`

	Acknowledged        bool                  `json:"acknowledged,omitempty"`
	Aadhaar             string                `json:"aadhaar,omitempty"`
	Channel             string                `json:"channel,omitempty"`
	ProofAcknowledged   bool                  `json:"proof_acknowledged,omitempty"`
	Accounts            []DematAccountRequest `json:"accounts,omitempty"`
	CameraStreamStarted bool                  `json:"camera_stream_started,omitempty"`
	Consent             bool                  `json:"consent,omitempty"`

	input verification.StepInput
}

// DematAccountRequest is one demat row.
type DematAccountRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Validate resolves the kind and builds the step input. Field-level checks
// run inside the gate so that ordering is enforced first.
func (r *CompleteStepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	kind, ok := verification.ParseStepKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "unknown step kind").
			WithDetail("kind", "documents|pan|address|bank|demat|video_kyc|esign", r.Kind)
	}

	switch kind {
	case verification.StepDocuments:
		r.input = verification.DocumentsInput{Acknowledged: r.Acknowledged}
	case verification.StepPAN:
		r.input = verification.PANInput{Aadhaar: strings.TrimSpace(r.Aadhaar), Channel: verification.Channel(strings.ToLower(r.Channel))}
	case verification.StepAddress:
		r.input = verification.AddressInput{Aadhaar: strings.TrimSpace(r.Aadhaar), Channel: verification.Channel(strings.ToLower(r.Channel))}
	case verification.StepBank:
		r.input = verification.BankInput{ProofAcknowledged: r.ProofAcknowledged}
	case verification.StepDemat:
		accounts := make([]verification.DematAccount, 0, len(r.Accounts))
		for _, a := range r.Accounts {
			accounts = append(accounts, verification.DematAccount{
				Type: verification.Depository(strings.ToUpper(strings.TrimSpace(a.Type))),
				ID:   strings.TrimSpace(a.ID),
			})
		}
		r.input = verification.DematInput{Accounts: accounts}
	case verification.StepVideoKYC:
		r.input = verification.VideoKYCInput{CameraStreamStarted: r.CameraStreamStarted}
	case verification.StepESign:
		r.input = verification.ESignInput{Consent: r.Consent}
	}
	return nil
}

// Input returns the parsed step input.
func (r *CompleteStepRequest) Input() verification.StepInput {
	return r.input
}
