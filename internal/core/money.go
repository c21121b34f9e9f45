// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used for every monetary value in the
// ledger. Amounts are exact decimals; floats are only accepted at the edge.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an exact decimal monetary value. A record amount is always
// positive; totals may be zero.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount is the additive identity used to start totals.
var ZeroAmount = Amount{d: decimal.Zero}

// ParseAmount converts a decimal string to a positive Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. A comma
// is only a decimal separator when it is the sole separator and is followed
// by one or two digits; thousands separators such as "1,000" are rejected.
// Signs, exponents, NaN and infinities are rejected, as are zero values.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("1,000") -> error
//	ParseAmount("-5")    -> error
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, NewValidationError("amount", "is required")
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		frac := s[i+1:]
		if i == 0 || strings.ContainsAny(s[:i], ".,") || strings.ContainsAny(frac, ".,") || len(frac) < 1 || len(frac) > 2 {
			return Amount{}, NewValidationError("amount", "must use a single decimal separator")
		}
		s = s[:i] + "." + frac
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Amount{}, NewValidationError("amount", "must be a positive number")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, NewValidationError("amount", "must be a positive number")
	}
	return NewAmount(d)
}

// AmountFromFloat converts a float (as decoded from loose JSON) to an Amount.
func AmountFromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, NewValidationError("amount", "must be a finite number")
	}
	return NewAmount(decimal.NewFromFloat(f))
}

// NewAmount validates that d is strictly positive.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if !d.IsPositive() {
		return Amount{}, NewValidationError("amount", "must be greater than zero")
	}
	return Amount{d: d}, nil
}

// MustAmount parses s and panics on failure. Intended for tests and constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b represent the same value regardless of scale.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String returns the canonical decimal representation without trailing zeros.
func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := ZeroAmount
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
