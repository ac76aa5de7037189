// Package core provides money parsing and handling utilities.
//
// Amounts are held as decimals so sums over many transactions never drift
// the way float accumulation does.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal currency amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// ParseMoney converts a decimal string to Money, rounded half-up to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// and zero amounts are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{d: d.Round(2)}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func NewMoney(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String formats with exactly two decimals.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.d.UnmarshalJSON(b)
}
