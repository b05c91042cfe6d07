/*
Package engine provides the core booking availability engine.

PURPOSE:
  This package contains the domain-neutral types and algorithms for managing
  finite, date-bound sellable capacity. Whether the unit is a room category,
  a restaurant table, or a service slot, the same engine answers "is it
  available?", reserves it atomically across a stay, and releases it on
  cancellation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount tagged with its currency
  - Quantity: Units of capacity (rooms, seats) being reserved
  - Unit/Property/Booking IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors on money
  2. Type Safety: Strong typing for IDs prevents mixing unit/booking IDs
  3. Invariant first: reserved + blocked never exceeds sellable capacity
  4. Business outcomes are values, not panics: "no availability" is data

USAGE:
  price := engine.NewMoney("120.00", "EUR")
  total := price.Mul(decimal.NewFromInt(3)) // three nights

SEE ALSO:
  - date.go: Date and StayRange (half-open [checkIn, checkOut))
  - ledger.go: The availability ledger and its invariant
  - store.go: Persistence interfaces
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount tagged with currency
// =============================================================================

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
)

// MinorUnits returns the number of decimal places for the currency's
// smallest denomination. Unknown currencies default to 2.
func (c Currency) MinorUnits() int32 {
	switch c {
	case CurrencyJPY:
		return 0
	default:
		return 2
	}
}

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewMoney(value string, currency Currency) Money {
	return Money{Value: MustParseDecimal(value), Currency: currency}
}

func NewMoneyFromFloat(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func ZeroMoney(currency Currency) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// MustParseDecimal is for trusted literals in code and seed data; it
// panics on a malformed value. Scan paths reading stored amounts use
// ParseMoney instead so corruption surfaces as an error.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid decimal literal %q: %v", s, err))
	}
	return d
}

// ParseMoney parses a stored decimal amount into Money, reporting
// malformed values instead of coercing them to zero.
func ParseMoney(value string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", value, err)
	}
	return Money{Value: d, Currency: currency}, nil
}

func (m Money) Add(b Money) Money               { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) Sub(b Money) Money               { return Money{Value: m.Value.Sub(b.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money     { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) Neg() Money                      { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) IsZero() bool                    { return m.Value.IsZero() }
func (m Money) IsNegative() bool                { return m.Value.IsNegative() }
func (m Money) IsPositive() bool                { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool              { return m.Currency == b.Currency && m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool        { return m.Value.GreaterThan(b.Value) }

// RoundMinor rounds to the currency's minor-unit precision using banker's
// rounding. This is the only rounding mode used on the money path so that
// repeated refund computations don't systematically drift.
func (m Money) RoundMinor() Money {
	return Money{Value: m.Value.RoundBank(m.Currency.MinorUnits()), Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Value.StringFixed(m.Currency.MinorUnits()), m.Currency)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UnitID string
type PropertyID string
type BookingID string
type PlanID string

// GuestRef identifies the guest in the surrounding application. The engine
// treats it as opaque.
type GuestRef string

// Quantity is a count of capacity units (rooms of a category, seats).
type Quantity int
