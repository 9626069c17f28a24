package verification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tradegate/pkg/domain-errors"
)

func TestStepInputValidation(t *testing.T) {
	tests := []struct {
		name      string
		input     StepInput
		wantField string
	}{
		{"documents acknowledged", DocumentsInput{Acknowledged: true}, ""},
		{"documents not acknowledged", DocumentsInput{}, "acknowledged"},
		{"pan otp", PANInput{Aadhaar: "123456789012", Channel: ChannelOTP}, ""},
		{"pan eleven digits", PANInput{Aadhaar: "12345678901", Channel: ChannelOTP}, "aadhaar"},
		{"pan letters", PANInput{Aadhaar: "12345678901a", Channel: ChannelOTP}, "aadhaar"},
		{"pan unknown channel", PANInput{Aadhaar: "123456789012", Channel: "sms"}, "channel"},
		{"address digilocker", AddressInput{Aadhaar: "123456789012", Channel: ChannelDigiLocker}, ""},
		{"address thirteen digits", AddressInput{Aadhaar: "1234567890123", Channel: ChannelDigiLocker}, "aadhaar"},
		{"bank proof", BankInput{ProofAcknowledged: true}, ""},
		{"bank no proof", BankInput{}, "proof_acknowledged"},
		{"demat none", DematInput{}, "accounts"},
		{"demat one", DematInput{Accounts: []DematAccount{{Type: DepositoryCDSL, ID: "12345678"}}}, ""},
		{"demat six", DematInput{Accounts: make([]DematAccount, 6)}, "accounts"},
		{"demat bad type", DematInput{Accounts: []DematAccount{{Type: "XYZ", ID: "12345678"}}}, "accounts[0].type"},
		{"demat short id", DematInput{Accounts: []DematAccount{
			{Type: DepositoryCDSL, ID: "12345678"},
			{Type: DepositoryNSDL, ID: "ABCDEFGH"},
			{Type: DepositoryNSDL, ID: "abc"},
		}}, "accounts[2].id"},
		{"demat long id", DematInput{Accounts: []DematAccount{{Type: DepositoryNSDL, ID: strings.Repeat("A", 17)}}}, "accounts[0].id"},
		{"demat punctuation", DematInput{Accounts: []DematAccount{{Type: DepositoryNSDL, ID: "IN-3001234"}}}, "accounts[0].id"},
		{"video started", VideoKYCInput{CameraStreamStarted: true}, ""},
		{"video not started", VideoKYCInput{}, "camera_stream_started"},
		{"esign consent", ESignInput{Consent: true}, ""},
		{"esign no consent", ESignInput{}, "consent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			de, ok := dErrors.As(err)
			require.True(t, ok)
			assert.Equal(t, dErrors.CodeFieldValidationFailed, de.Code)
			assert.Equal(t, tt.wantField, de.Field)
		})
	}
}

func TestDematErrorCarriesExpectedAndActual(t *testing.T) {
	err := DematInput{Accounts: []DematAccount{
		{Type: DepositoryCDSL, ID: "12345678"},
		{Type: DepositoryCDSL, ID: "12345678"},
		{Type: DepositoryCDSL, ID: "bad!"},
	}}.Validate()
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "accounts[2].id", de.Field)
	assert.Equal(t, "4 characters", de.Actual)
	assert.NotEmpty(t, de.Expected)
}

func TestRejectedIdentifiersAreNotEchoed(t *testing.T) {
	tests := []struct {
		name  string
		input StepInput
		raw   string
		want  string
	}{
		{"aadhaar one digit short", PANInput{Aadhaar: "12345678901", Channel: ChannelOTP}, "12345678901", "11 characters"},
		{"aadhaar with a typo", AddressInput{Aadhaar: "1234567890l2", Channel: ChannelDigiLocker}, "1234567890l2", "12 characters"},
		{"demat id with a stray symbol", DematInput{Accounts: []DematAccount{{Type: DepositoryNSDL, ID: "IN3001234-5"}}}, "IN3001234-5", "11 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			de, ok := dErrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, de.Actual)
			assert.NotContains(t, de.Error(), tt.raw)
			assert.NotContains(t, de.Message, tt.raw)
		})
	}
}

func TestSummariesAreRedacted(t *testing.T) {
	sum := PANInput{Aadhaar: "123456789012", Channel: ChannelOTP}.Summary()
	assert.Equal(t, "XXXXXXXX9012", sum["aadhaar"])
	assert.Equal(t, "otp", sum["channel"])

	demat := DematInput{Accounts: []DematAccount{{Type: DepositoryCDSL, ID: "AB12CD34EF"}}}.Summary()
	assert.Equal(t, "1", demat["accounts"])
	assert.Equal(t, "CDSL:XXXXXX34EF", demat["accounts[0]"])

	assert.Equal(t, "XXX", MaskAadhaar("123"))
}

func TestStepKindNames(t *testing.T) {
	for i := 0; i < StepCount; i++ {
		k, ok := ParseStepKind(StepKind(i).String())
		assert.True(t, ok)
		assert.Equal(t, StepKind(i), k)
	}
	_, ok := ParseStepKind("selfie")
	assert.False(t, ok)
	assert.Equal(t, "step(9)", StepKind(9).String())
}
