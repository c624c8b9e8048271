// Package core provides money parsing and handling utilities.
//
// Amounts and balances are decimal.Decimal values with exactly two places.
// Rounding happens once, where a user supplied amount enters the system;
// sums and deltas of already rounded values are exact.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places kept for every amount.
const AmountPlaces = 2

// RoundAmount rounds d to two decimal places.
//
// Examples:
//
//	RoundAmount(12.345)  -> 12.35
//	RoundAmount(-30.504) -> -30.50
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// ParseAmount converts a decimal string to a rounded amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and a
// leading sign is allowed since ledger amounts are signed.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Value: raw, Reason: "empty amount"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Value: raw, Reason: "invalid decimal"}
	}
	return RoundAmount(d), nil
}

// MustAmount parses s and panics on error. Intended for constants and tests.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatAmount renders d with exactly two places, e.g. "-42.00".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
