package core

import (
	"slices"

	"github.com/shopspring/decimal"
)

// TaxKind names the two supported tax computations.
type TaxKind string

const (
	KindPercentage TaxKind = "percentage"
	KindFixed      TaxKind = "fixed"
)

// CalculationBase selects what a percentage tax is computed on.
type CalculationBase string

const (
	BaseTotalHT                  CalculationBase = "totalHT"
	BaseTotalHTWithPreviousTaxes CalculationBase = "totalHTWithPreviousTaxes"
)

// Valid reports whether b is a known calculation base.
func (b CalculationBase) Valid() bool {
	return b == BaseTotalHT || b == BaseTotalHTWithPreviousTaxes
}

// TaxRule is the closed set of tax computations. Only PercentageRule and
// FixedRule implement it, so a fixed tax carrying a calculation base cannot
// be built.
type TaxRule interface {
	Kind() TaxKind
	// apply returns the recorded base and the rounded amount.
	apply(netTotal, runningBase decimal.Decimal, decimals int32) (base, amount decimal.Decimal)
}

// PercentageRule computes Rate percent of the selected base.
type PercentageRule struct {
	Rate decimal.Decimal
	Base CalculationBase
}

func (PercentageRule) Kind() TaxKind { return KindPercentage }

func (r PercentageRule) apply(netTotal, runningBase decimal.Decimal, decimals int32) (decimal.Decimal, decimal.Decimal) {
	base := netTotal
	if r.Base == BaseTotalHTWithPreviousTaxes {
		base = runningBase
	}
	return base, round(base.Mul(r.Rate).Div(hundred), decimals)
}

// FixedRule adds a constant amount regardless of the document total.
type FixedRule struct {
	Amount decimal.Decimal
}

func (FixedRule) Kind() TaxKind { return KindFixed }

func (r FixedRule) apply(_, _ decimal.Decimal, decimals int32) (decimal.Decimal, decimal.Decimal) {
	return decimal.Zero, round(r.Amount, decimals)
}

// Tax is a configured tax, read-only at calculation time.
type Tax struct {
	ID              int64
	Name            string
	Rule            TaxRule
	ApplicableTypes []DocumentType
	Order           int
	Active          bool
	IsStandard      bool
	// Surcharge marks FODEC-style taxes that are only applied by default
	// when the FODEC auto-enable setting is on.
	Surcharge bool
}

// AppliesTo reports whether the tax is configured for documents of type t.
func (t Tax) AppliesTo(dt DocumentType) bool {
	return slices.Contains(t.ApplicableTypes, dt)
}

// Kind returns the rule kind.
func (t Tax) Kind() TaxKind {
	return t.Rule.Kind()
}

// Value returns the rate for percentage taxes and the amount for fixed ones.
func (t Tax) Value() decimal.Decimal {
	switch r := t.Rule.(type) {
	case PercentageRule:
		return r.Rate
	case FixedRule:
		return r.Amount
	}
	return decimal.Zero
}

// Base returns the calculation base of a percentage tax.
func (t Tax) Base() (CalculationBase, bool) {
	if r, ok := t.Rule.(PercentageRule); ok {
		return r.Base, true
	}
	return "", false
}

// withBase returns a copy whose percentage base is replaced. Fixed taxes are
// returned unchanged.
func (t Tax) withBase(b CalculationBase) Tax {
	if r, ok := t.Rule.(PercentageRule); ok {
		r.Base = b
		t.Rule = r
	}
	return t
}

// TaxGroupMember is one entry of a TaxGroup.
type TaxGroupMember struct {
	TaxID        int64
	OrderInGroup int
	BaseOverride *CalculationBase
}

// TaxGroup is a named bundle of taxes applied together in a fixed sequence.
type TaxGroup struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	Members     []TaxGroupMember
}

// TaxRecord is a tax row as stored by the configuration UI. Older rows
// (SchemaVersion 1) lack the applicable types, the standard flag and
// sometimes the calculation base; LoadCatalog migrates them.
type TaxRecord struct {
	ID              int64
	Name            string
	Kind            string
	Value           decimal.Decimal
	CalculationBase *string
	ApplicableTypes *string
	Order           int
	Active          bool
	IsStandard      *bool
	Surcharge       bool
	SchemaVersion   int
}

// TaxGroupRecord is a stored tax group with its members.
type TaxGroupRecord struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	Members     []TaxGroupMemberRecord
}

// TaxGroupMemberRecord is a stored group member.
type TaxGroupMemberRecord struct {
	TaxID        int64
	OrderInGroup int
	BaseOverride *string
}
