// Package core provides money parsing and handling utilities.
//
// Amounts are stored as signed counts of cents. Euro renders them for users
// and ParseAmount converts user input in major units to cents.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Euro is a signed amount in cents.
type Euro int64

// maxAmount keeps cents well inside int64 after shifting.
var maxAmount = decimal.New(1, 15)

// String renders the amount as value/100 followed by the currency symbol,
// using the shortest decimal form ("12.5 €", "-3 €").
func (e Euro) String() string {
	return decimal.New(int64(e), -2).String() + " €"
}

// Cents returns the raw amount in minor units.
func (e Euro) Cents() int64 {
	return int64(e)
}

// Abs returns the absolute amount.
func (e Euro) Abs() Euro {
	if e < 0 {
		return -e
	}
	return e
}

// ParseAmount converts a positive decimal string in major units to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and at most
// two decimal places. Zero, negative, exponent and malformed values are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.50") -> 1250, nil
//	ParseAmount("12,5")  -> 1250, nil
//	ParseAmount("12.345") -> 0, ErrInvalidAmount
func ParseAmount(s string) (Euro, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE+-") || strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Exponent() < -2 || !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return Euro(d.Shift(2).IntPart()), nil
}

// ParseSignedAmount is ParseAmount with an optional leading minus sign.
func ParseSignedAmount(s string) (Euro, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		e, err := ParseAmount(rest)
		return -e, err
	}
	return ParseAmount(s)
}
