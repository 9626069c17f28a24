package fees

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Schedule holds every rate the engine applies. The percentage and flat
// components are fixed by the fee policy; the jurisdiction table and the card
// surcharge come from static configuration.
type Schedule struct {
	PlatformRate  decimal.Decimal
	PlatformFloor decimal.Decimal
	BrokerageRate decimal.Decimal
	GSTRate       decimal.Decimal
	DematDPCharge decimal.Decimal
	ESignCharge   decimal.Decimal
	Surcharges    map[PaymentMethod]decimal.Decimal
	Jurisdictions map[JurisdictionCode]Jurisdiction
}

// DefaultCardSurcharge is the flat fee added for card payments.
var DefaultCardSurcharge = decimal.RequireFromString("10.80")

// DefaultSchedule returns the fee policy with the built-in jurisdiction table.
func DefaultSchedule() Schedule {
	return Schedule{
		PlatformRate:  decimal.RequireFromString("0.005"),
		PlatformFloor: decimal.NewFromInt(50),
		BrokerageRate: decimal.RequireFromString("0.002"),
		GSTRate:       decimal.RequireFromString("0.18"),
		DematDPCharge: decimal.NewFromInt(25),
		ESignCharge:   decimal.NewFromInt(10),
		Surcharges:    surcharges(DefaultCardSurcharge),
		Jurisdictions: builtinJurisdictions(),
	}
}

func surcharges(card decimal.Decimal) map[PaymentMethod]decimal.Decimal {
	return map[PaymentMethod]decimal.Decimal{
		PaymentUPI:        decimal.Zero,
		PaymentNetBanking: decimal.Zero,
		PaymentWallet:     decimal.Zero,
		PaymentCard:       card,
	}
}

func builtinJurisdictions() map[JurisdictionCode]Jurisdiction {
	table := []Jurisdiction{
		{Code: "MH", Name: "Maharashtra", StampRate: decimal.RequireFromString("0.002")},
		{Code: "KA", Name: "Karnataka", StampRate: decimal.RequireFromString("0.001")},
		{Code: "DL", Name: "Delhi", StampRate: decimal.RequireFromString("0.0015")},
		{Code: "TN", Name: "Tamil Nadu", StampRate: decimal.RequireFromString("0.001")},
		{Code: "GJ", Name: "Gujarat", StampRate: decimal.RequireFromString("0.0015")},
		{Code: "WB", Name: "West Bengal", StampRate: decimal.RequireFromString("0.0025")},
	}
	out := make(map[JurisdictionCode]Jurisdiction, len(table))
	for _, j := range table {
		out[j.Code] = j
	}
	return out
}

// Validate rejects negative rates, a non-positive card surcharge, and
// malformed jurisdiction rows.
func (s Schedule) Validate() error {
	nonNegative := map[string]decimal.Decimal{
		"platform_rate":   s.PlatformRate,
		"platform_floor":  s.PlatformFloor,
		"brokerage_rate":  s.BrokerageRate,
		"gst_rate":        s.GSTRate,
		"demat_dp_charge": s.DematDPCharge,
		"esign_charge":    s.ESignCharge,
	}
	for name, v := range nonNegative {
		if v.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", name, v)
		}
	}
	for _, m := range []PaymentMethod{PaymentUPI, PaymentNetBanking, PaymentWallet} {
		if v, ok := s.Surcharges[m]; !ok || !v.IsZero() {
			return fmt.Errorf("surcharge for %s must be zero", m)
		}
	}
	if card, ok := s.Surcharges[PaymentCard]; !ok || !card.IsPositive() {
		return fmt.Errorf("card surcharge must be positive")
	}
	if len(s.Jurisdictions) == 0 {
		return fmt.Errorf("jurisdiction table is empty")
	}
	for code, j := range s.Jurisdictions {
		if code == "" || code != j.Code {
			return fmt.Errorf("jurisdiction %q has mismatched code %q", code, j.Code)
		}
		if j.StampRate.IsNegative() {
			return fmt.Errorf("jurisdiction %s stamp rate must not be negative", code)
		}
	}
	return nil
}

// scheduleFile is the on-disk layout of the static rate table.
type scheduleFile struct {
	CardSurcharge *decimal.Decimal `yaml:"card_surcharge"`
	Jurisdictions []struct {
		Code      string          `yaml:"code"`
		Name      string          `yaml:"name"`
		StampRate decimal.Decimal `yaml:"stamp_rate"`
	} `yaml:"jurisdictions"`
}

// LoadSchedule reads a YAML rate table and merges it over DefaultSchedule.
// A file that lists jurisdictions replaces the built-in table entirely.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("read fee schedule: %w", err)
	}
	return ParseSchedule(data)
}

// ParseSchedule is LoadSchedule for an in-memory document.
func ParseSchedule(data []byte) (Schedule, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Schedule{}, fmt.Errorf("parse fee schedule: %w", err)
	}

	s := DefaultSchedule()
	if f.CardSurcharge != nil {
		s.Surcharges = surcharges(*f.CardSurcharge)
	}
	if len(f.Jurisdictions) > 0 {
		s.Jurisdictions = make(map[JurisdictionCode]Jurisdiction, len(f.Jurisdictions))
		for _, row := range f.Jurisdictions {
			code := NormalizeJurisdiction(row.Code)
			if _, dup := s.Jurisdictions[code]; dup {
				return Schedule{}, fmt.Errorf("duplicate jurisdiction %q", code)
			}
			s.Jurisdictions[code] = Jurisdiction{Code: code, Name: row.Name, StampRate: row.StampRate}
		}
	}
	if err := s.Validate(); err != nil {
		return Schedule{}, fmt.Errorf("invalid fee schedule: %w", err)
	}
	return s, nil
}

func (s Schedule) clone() Schedule {
	cp := s
	cp.Surcharges = make(map[PaymentMethod]decimal.Decimal, len(s.Surcharges))
	for k, v := range s.Surcharges {
		cp.Surcharges[k] = v
	}
	cp.Jurisdictions = make(map[JurisdictionCode]Jurisdiction, len(s.Jurisdictions))
	for k, v := range s.Jurisdictions {
		cp.Jurisdictions[k] = v
	}
	return cp
}

func (s Schedule) sortedJurisdictions() []Jurisdiction {
	out := make([]Jurisdiction, 0, len(s.Jurisdictions))
	for _, j := range s.Jurisdictions {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Code < out[k].Code })
	return out
}
