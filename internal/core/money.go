package core

import "github.com/shopspring/decimal"

// DefaultDecimals is the currency precision used when settings are missing.
const DefaultDecimals int32 = 3

var hundred = decimal.NewFromInt(100)

// round applies the currency rounding rule (half away from zero).
func round(d decimal.Decimal, decimals int32) decimal.Decimal {
	return d.Round(decimals)
}

// FormatAmount renders an amount with exactly `decimals` fraction digits.
func FormatAmount(d decimal.Decimal, decimals int32) string {
	return d.StringFixed(decimals)
}
