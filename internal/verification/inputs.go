package verification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	dErrors "tradegate/pkg/domain-errors"
)

var (
	aadhaarPattern   = regexp.MustCompile(`^[0-9]{12}$`)
	dematIDPattern   = regexp.MustCompile(`^[A-Za-z0-9]{8,16}$`)
	maxDematAccounts = 5
)

// StepInput is the submission for one step. Each step kind has exactly one
// input type; the gate rejects an input whose Kind does not match the slot.
type StepInput interface {
	Kind() StepKind
	Validate() error
	// Summary returns a redacted view kept on the completed step.
	Summary() map[string]string
}

// Channel is how an Aadhaar-based check is performed.
type Channel string

const (
	ChannelOTP        Channel = "otp"
	ChannelDigiLocker Channel = "digilocker"
)

// Depository is the custodian holding a demat account.
type Depository string

const (
	DepositoryCDSL Depository = "CDSL"
	DepositoryNSDL Depository = "NSDL"
)

func fieldError(field, expected, actual, msg string) error {
	return dErrors.New(dErrors.CodeFieldValidationFailed, msg).WithDetail(field, expected, actual)
}

// redacted describes a rejected identifier without echoing it.
func redacted(s string) string {
	return strconv.Itoa(len(s)) + " characters"
}

func requireTrue(field string, v bool) error {
	if !v {
		return fieldError(field, "true", "false", field+" must be confirmed")
	}
	return nil
}

// DocumentsInput acknowledges the required documents checklist.
type DocumentsInput struct {
	Acknowledged bool
}

func (DocumentsInput) Kind() StepKind { return StepDocuments }

func (in DocumentsInput) Validate() error { return requireTrue("acknowledged", in.Acknowledged) }

func (in DocumentsInput) Summary() map[string]string {
	return map[string]string{"acknowledged": "true"}
}

// aadhaarCheck is shared by the PAN and address steps.
type aadhaarCheck struct {
	Aadhaar string
	Channel Channel
}

func (a aadhaarCheck) validate() error {
	if !aadhaarPattern.MatchString(a.Aadhaar) {
		return fieldError("aadhaar", "12 digits", redacted(a.Aadhaar), "aadhaar number must be 12 digits")
	}
	switch a.Channel {
	case ChannelOTP, ChannelDigiLocker:
		return nil
	}
	return fieldError("channel", "otp|digilocker", string(a.Channel), "unsupported verification channel")
}

func (a aadhaarCheck) summary() map[string]string {
	return map[string]string{
		"aadhaar": MaskAadhaar(a.Aadhaar),
		"channel": string(a.Channel),
	}
}

// PANInput links the PAN via an Aadhaar-backed check.
type PANInput aadhaarCheck

func (PANInput) Kind() StepKind                 { return StepPAN }
func (in PANInput) Validate() error             { return aadhaarCheck(in).validate() }
func (in PANInput) Summary() map[string]string { return aadhaarCheck(in).summary() }

// AddressInput verifies the residential address via an Aadhaar-backed check.
type AddressInput aadhaarCheck

func (AddressInput) Kind() StepKind                 { return StepAddress }
func (in AddressInput) Validate() error             { return aadhaarCheck(in).validate() }
func (in AddressInput) Summary() map[string]string { return aadhaarCheck(in).summary() }

// BankInput acknowledges that bank-account proof was uploaded.
type BankInput struct {
	ProofAcknowledged bool
}

func (BankInput) Kind() StepKind { return StepBank }

func (in BankInput) Validate() error { return requireTrue("proof_acknowledged", in.ProofAcknowledged) }

func (in BankInput) Summary() map[string]string {
	return map[string]string{"proof_acknowledged": "true"}
}

// DematAccount is one row of the demat step.
type DematAccount struct {
	Type Depository
	ID   string
}

// DematInput lists between one and five demat accounts.
type DematInput struct {
	Accounts []DematAccount
}

func (DematInput) Kind() StepKind { return StepDemat }

func (in DematInput) Validate() error {
	n := len(in.Accounts)
	if n < 1 || n > maxDematAccounts {
		return fieldError("accounts", "1-5 rows", strconv.Itoa(n), "between one and five demat accounts are required")
	}
	for i, acct := range in.Accounts {
		switch acct.Type {
		case DepositoryCDSL, DepositoryNSDL:
		default:
			return fieldError(fmt.Sprintf("accounts[%d].type", i), "CDSL|NSDL", string(acct.Type), "unsupported depository")
		}
		if !dematIDPattern.MatchString(acct.ID) {
			return fieldError(fmt.Sprintf("accounts[%d].id", i), "8-16 alphanumeric characters", redacted(acct.ID), "malformed demat account id")
		}
	}
	return nil
}

func (in DematInput) Summary() map[string]string {
	out := map[string]string{"accounts": strconv.Itoa(len(in.Accounts))}
	for i, acct := range in.Accounts {
		out[fmt.Sprintf("accounts[%d]", i)] = string(acct.Type) + ":" + maskTail(acct.ID)
	}
	return out
}

// VideoKYCInput reports that the capture collaborator started the camera
// stream.
type VideoKYCInput struct {
	CameraStreamStarted bool
}

func (VideoKYCInput) Kind() StepKind { return StepVideoKYC }

func (in VideoKYCInput) Validate() error {
	return requireTrue("camera_stream_started", in.CameraStreamStarted)
}

func (in VideoKYCInput) Summary() map[string]string {
	return map[string]string{"camera_stream_started": "true"}
}

// ESignInput records consent to electronically sign the account agreement.
type ESignInput struct {
	Consent bool
}

func (ESignInput) Kind() StepKind { return StepESign }

func (in ESignInput) Validate() error { return requireTrue("consent", in.Consent) }

func (in ESignInput) Summary() map[string]string {
	return map[string]string{"consent": "true"}
}

// MaskAadhaar keeps the last four digits, e.g. "XXXXXXXX9012".
func MaskAadhaar(s string) string {
	return maskTail(s)
}

func maskTail(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("X", len(s))
	}
	return strings.Repeat("X", len(s)-4) + s[len(s)-4:]
}
