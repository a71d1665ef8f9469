package core

import (
	"github.com/shopspring/decimal"
)

// TaxBreakdownEntry is one applied tax in a document's breakdown.
// Base is zero for fixed taxes.
type TaxBreakdownEntry struct {
	TaxID  int64           `json:"tax_id"`
	Name   string          `json:"name"`
	Kind   TaxKind         `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Base   decimal.Decimal `json:"base"`
	Amount decimal.Decimal `json:"amount"`
}

// Totals is the output of ComputeTotals.
type Totals struct {
	Lines      []DocumentLine      `json:"lines"`
	Decimals   int32               `json:"decimals"`
	NetTotal   decimal.Decimal     `json:"net_total"`
	Breakdown  []TaxBreakdownEntry `json:"tax_breakdown"`
	TaxTotal   decimal.Decimal     `json:"tax_total"`
	GrandTotal decimal.Decimal     `json:"grand_total"`
}

// ComputeTotals computes line and document totals. It is a pure function:
// the same lines, taxes and precision always produce the same result. Inputs
// must have passed ValidateLines; the calculator itself never fails.
//
// Rounding happens at every step so each displayed figure equals the stored
// one:
//
//	net_i      = round(qty × price × (1 − discount/100))
//	netTotal   = Σ net_i
//	fixed      : base = 0, amount = round(value)
//	percentage : base = netTotal | netTotal + previous amounts,
//	             amount = round(base × rate / 100)
//	grandTotal = netTotal + Σ amount
func ComputeTotals(lines []DocumentLine, taxes []Tax, decimals int32) Totals {
	if decimals < 0 {
		decimals = DefaultDecimals
	}

	out := Totals{
		Lines:     make([]DocumentLine, len(lines)),
		Decimals:  decimals,
		NetTotal:  decimal.Zero,
		Breakdown: make([]TaxBreakdownEntry, 0, len(taxes)),
		TaxTotal:  decimal.Zero,
	}

	for i, l := range lines {
		factor := hundred.Sub(l.DiscountPercent).Div(hundred)
		l.NetAmount = round(l.Quantity.Mul(l.UnitPrice).Mul(factor), decimals)
		out.Lines[i] = l
		out.NetTotal = out.NetTotal.Add(l.NetAmount)
	}

	runningBase := out.NetTotal
	for _, t := range taxes {
		base, amount := t.Rule.apply(out.NetTotal, runningBase, decimals)
		out.Breakdown = append(out.Breakdown, TaxBreakdownEntry{
			TaxID:  t.ID,
			Name:   t.Name,
			Kind:   t.Kind(),
			Value:  t.Value(),
			Base:   base,
			Amount: amount,
		})
		runningBase = runningBase.Add(amount)
		out.TaxTotal = out.TaxTotal.Add(amount)
	}
	out.GrandTotal = out.NetTotal.Add(out.TaxTotal)

	allocateLineTaxes(out.Lines, out.NetTotal, out.TaxTotal, decimals)
	return out
}

// allocateLineTaxes spreads the document tax total across lines in proportion
// to their net amounts. The rounding remainder goes to the last line with a
// non-zero net (or the last line) so the line taxes always sum to taxTotal.
func allocateLineTaxes(lines []DocumentLine, netTotal, taxTotal decimal.Decimal, decimals int32) {
	if len(lines) == 0 {
		return
	}

	last := len(lines) - 1
	for i := len(lines) - 1; i >= 0; i-- {
		if !lines[i].NetAmount.IsZero() {
			last = i
			break
		}
	}

	allocated := decimal.Zero
	for i := range lines {
		share := decimal.Zero
		if i != last && !netTotal.IsZero() {
			share = round(taxTotal.Mul(lines[i].NetAmount).Div(netTotal), decimals)
		}
		lines[i].TaxAmount = share
		allocated = allocated.Add(share)
	}
	lines[last].TaxAmount = taxTotal.Sub(allocated)

	for i := range lines {
		lines[i].GrossAmount = lines[i].NetAmount.Add(lines[i].TaxAmount)
	}
}
