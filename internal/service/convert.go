package service

import (
	"github.com/shopspring/decimal"
)

// CreditsFromFloat converts a configured credit amount to a ledger value,
// rounded to the ledger's four decimal places.
func CreditsFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(4)
}

// FormatCredits renders a balance for display.
func FormatCredits(d decimal.Decimal) string {
	return d.StringFixed(2)
}
