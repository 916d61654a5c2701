package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
)

// CurrencySymbol prefixes every formatted amount. Amounts are always rendered
// with exactly two decimal places.
const CurrencySymbol = "$"

// ParseAmount parses a user-supplied decimal string ("12.50", "1,200.00")
// into a positive amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

// FormatAmount renders an amount as a symbol-prefixed, two-decimal string.
// Negative amounts keep the sign in front of the symbol: -$12.00.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}
