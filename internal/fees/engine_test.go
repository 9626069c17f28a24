package fees

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	dErrors "tradegate/pkg/domain-errors"
)

// =============================================================================
// Fee Engine Test Suite
// =============================================================================
// The engine is pure arithmetic, so these tests pin the exact computation
// chain rather than rounded display values.

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	var err error
	s.engine, err = NewEngine(DefaultSchedule())
	s.Require().NoError(err)
}

func (s *EngineSuite) equalDecimal(expected string, got decimal.Decimal, field string) {
	want := decimal.RequireFromString(expected)
	s.True(want.Equal(got), "%s: expected %s, got %s", field, want, got)
}

func inputs(value string, j JurisdictionCode, d DeliveryMethod, p PaymentMethod) Inputs {
	return Inputs{
		OrderValue:     decimal.RequireFromString(value),
		Jurisdiction:   j,
		DeliveryMethod: d,
		PaymentMethod:  p,
	}
}

// =============================================================================
// Computation chain
// =============================================================================

func (s *EngineSuite) TestWorkedExample() {
	b, err := s.engine.ComputeFees(inputs("350.92", "MH", DeliveryDematTransfer, PaymentCard))
	s.Require().NoError(err)

	s.equalDecimal("50", b.PlatformFee, "platform fee (floor applies; 0.5% is 1.7546)")
	s.equalDecimal("0.70184", b.Brokerage, "brokerage")
	s.equalDecimal("9.1263312", b.GST, "gst on 50.70184")
	s.equalDecimal("0.70184", b.StampDuty, "stamp duty at 0.002")
	s.equalDecimal("25", b.DPCharges, "dp charges")
	s.equalDecimal("10", b.ESignCharge, "esign")
	s.equalDecimal("10.80", b.PaymentSurcharge, "card surcharge")
	s.equalDecimal("106.3300112", b.TotalFees, "total fees")
	s.equalDecimal("457.2500112", b.Payable, "payable")

	s.Equal("106.33", Money(b.TotalFees))
	s.Equal("457.25", Money(b.Payable))
}

func (s *EngineSuite) TestPlatformFeeFloor() {
	s.Run("order of 1000 hits the floor", func() {
		b, err := s.engine.ComputeFees(inputs("1000", "MH", DeliveryPhysicalDelivery, PaymentUPI))
		s.Require().NoError(err)
		s.equalDecimal("50", b.PlatformFee, "platform fee")
	})

	s.Run("order of 20000 pays the percentage", func() {
		b, err := s.engine.ComputeFees(inputs("20000", "MH", DeliveryPhysicalDelivery, PaymentUPI))
		s.Require().NoError(err)
		s.equalDecimal("100", b.PlatformFee, "platform fee")
	})

	s.Run("order of exactly 10000 sits on the boundary", func() {
		b, err := s.engine.ComputeFees(inputs("10000", "MH", DeliveryPhysicalDelivery, PaymentUPI))
		s.Require().NoError(err)
		s.equalDecimal("50", b.PlatformFee, "platform fee")
	})
}

func (s *EngineSuite) TestComponentDependencies() {
	base := inputs("12345.67", "MH", DeliveryDematTransfer, PaymentUPI)
	ref, err := s.engine.ComputeFees(base)
	s.Require().NoError(err)

	s.Run("jurisdiction moves only stamp duty", func() {
		in := base
		in.Jurisdiction = "WB"
		b, err := s.engine.ComputeFees(in)
		s.Require().NoError(err)
		s.True(ref.GST.Equal(b.GST), "gst must not depend on jurisdiction")
		s.True(ref.PlatformFee.Equal(b.PlatformFee))
		s.True(ref.DPCharges.Equal(b.DPCharges))
		s.False(ref.StampDuty.Equal(b.StampDuty))
	})

	s.Run("delivery method moves only dp charges", func() {
		in := base
		in.DeliveryMethod = DeliveryPhysicalDelivery
		b, err := s.engine.ComputeFees(in)
		s.Require().NoError(err)
		s.True(b.DPCharges.IsZero())
		s.True(ref.StampDuty.Equal(b.StampDuty))
		s.True(ref.GST.Equal(b.GST))
		s.True(ref.TotalFees.Sub(b.TotalFees).Equal(decimal.NewFromInt(25)))
	})

	s.Run("payment method moves only the surcharge", func() {
		for _, m := range []PaymentMethod{PaymentUPI, PaymentNetBanking, PaymentWallet} {
			in := base
			in.PaymentMethod = m
			b, err := s.engine.ComputeFees(in)
			s.Require().NoError(err)
			s.True(b.PaymentSurcharge.IsZero(), "%s should carry no surcharge", m)
			s.True(ref.TotalFees.Equal(b.TotalFees))
		}
		in := base
		in.PaymentMethod = PaymentCard
		b, err := s.engine.ComputeFees(in)
		s.Require().NoError(err)
		s.True(b.TotalFees.Sub(ref.TotalFees).Equal(DefaultCardSurcharge))
	})
}

// TestPayableEqualsSumOfComponents exercises the additive invariant over a
// spread of order values.
func (s *EngineSuite) TestPayableEqualsSumOfComponents() {
	rng := rand.New(rand.NewSource(7))
	jurisdictions := s.engine.Jurisdictions()
	methods := []PaymentMethod{PaymentUPI, PaymentNetBanking, PaymentWallet, PaymentCard}
	deliveries := []DeliveryMethod{DeliveryDematTransfer, DeliveryPhysicalDelivery}

	for range 500 {
		cents := rng.Int63n(1_000_000_000) + 1
		in := Inputs{
			OrderValue:     decimal.New(cents, -2),
			Jurisdiction:   jurisdictions[rng.Intn(len(jurisdictions))].Code,
			DeliveryMethod: deliveries[rng.Intn(len(deliveries))],
			PaymentMethod:  methods[rng.Intn(len(methods))],
		}
		b, err := s.engine.ComputeFees(in)
		s.Require().NoError(err)

		sum := in.OrderValue.
			Add(b.PlatformFee).Add(b.Brokerage).Add(b.GST).Add(b.StampDuty).
			Add(b.DPCharges).Add(b.ESignCharge).Add(b.PaymentSurcharge)
		s.True(sum.Equal(b.Payable), "payable %s != sum %s for %s", b.Payable, sum, in.OrderValue)
		s.True(b.Payable.Sub(in.OrderValue).Equal(b.TotalFees))
		s.True(b.PlatformFee.GreaterThanOrEqual(decimal.NewFromInt(50)))
	}
}

// =============================================================================
// Errors
// =============================================================================

func (s *EngineSuite) TestInvalidInputs() {
	s.Run("zero order value", func() {
		_, err := s.engine.ComputeFees(inputs("0", "MH", DeliveryDematTransfer, PaymentUPI))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrderValue))
		de, _ := dErrors.As(err)
		s.Equal("order_value", de.Field)
		s.Equal("0", de.Actual)
	})

	s.Run("negative order value", func() {
		_, err := s.engine.ComputeFees(inputs("-10", "MH", DeliveryDematTransfer, PaymentUPI))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrderValue))
	})

	s.Run("unknown jurisdiction is an error, not zero duty", func() {
		_, err := s.engine.ComputeFees(inputs("100", "ZZ", DeliveryDematTransfer, PaymentUPI))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownJurisdiction))
		de, _ := dErrors.As(err)
		s.Equal("ZZ", de.Actual)
	})

	s.Run("unknown payment method", func() {
		_, err := s.engine.ComputeFees(inputs("100", "MH", DeliveryDematTransfer, PaymentMethod("cheque")))
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownPaymentMethod))
	})

	s.Run("unknown delivery method", func() {
		_, err := s.engine.ComputeFees(inputs("100", "MH", DeliveryMethod("courier"), PaymentUPI))
		s.True(dErrors.HasCode(err, dErrors.CodeFieldValidationFailed))
	})
}

func (s *EngineSuite) TestConcurrentUse() {
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := Inputs{
				OrderValue:     decimal.NewFromInt(int64(1000 * (i + 1))),
				Jurisdiction:   "KA",
				DeliveryMethod: DeliveryDematTransfer,
				PaymentMethod:  PaymentWallet,
			}
			b, err := s.engine.ComputeFees(in)
			s.NoError(err)
			s.True(b.Inputs.OrderValue.Equal(in.OrderValue))
		}(i)
	}
	wg.Wait()
}

func (s *EngineSuite) TestDisplay() {
	b, err := s.engine.ComputeFees(inputs("350.92", "MH", DeliveryDematTransfer, PaymentCard))
	s.Require().NoError(err)

	lines := b.Display()
	s.Require().Len(lines, 10)
	byName := map[string]Line{}
	for _, l := range lines {
		byName[l.Name] = l
	}
	s.Equal("9.13", byName["gst"].Amount)
	s.Equal("9.1263312", byName["gst"].Exact)
	s.Equal("0.70", byName["brokerage"].Amount)
	s.Equal("457.25", byName["payable"].Amount)
}

func (s *EngineSuite) TestInputsMismatch() {
	a := inputs("100", "MH", DeliveryDematTransfer, PaymentUPI)

	field, _, _ := a.Mismatch(inputs("100.00", "MH", DeliveryDematTransfer, PaymentUPI))
	s.Empty(field, "numerically equal values match")

	field, expected, actual := a.Mismatch(inputs("101", "MH", DeliveryDematTransfer, PaymentUPI))
	s.Equal("order_value", field)
	s.Equal("100", expected)
	s.Equal("101", actual)

	field, _, _ = a.Mismatch(inputs("100", "MH", DeliveryDematTransfer, PaymentCard))
	s.Equal("payment_method", field)
}
