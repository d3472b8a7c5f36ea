package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// minorUnitExponent is the number of fractional digits carried by supported
// currencies. Amounts are stored as integer minor units (cents), so every
// arithmetic operation is exact.
const minorUnitExponent = 2

// Money is an exact fixed-point amount. The zero value is the additive
// identity: zero units of no particular currency, addable to anything.
type Money struct {
	Units    int64 // minor units, e.g. cents
	Currency string
}

func NewMoney(units int64, currency string) Money {
	return Money{Units: units, Currency: currency}
}

// ParseMoney converts a decimal string ("25.50") into minor units, rounding
// half-up to the currency's minor-unit exponent. This is the only place a
// decimal representation enters the domain; everything past this point is
// integer arithmetic.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}

	units := d.Shift(minorUnitExponent).Round(0)
	bi := units.BigInt()
	if !bi.IsInt64() {
		return Money{}, fmt.Errorf("%w: %s", ErrAmountOutOfRange, s)
	}

	return Money{Units: bi.Int64(), Currency: currency}, nil
}

// DecimalString renders the amount with the full minor-unit precision,
// e.g. 5550 -> "55.50". Round-trips exactly through ParseMoney.
func (m Money) DecimalString() string {
	return decimal.New(m.Units, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// Add sums two amounts of the same currency. Only the true zero value is the
// identity; a currencyless amount with non-zero units is malformed and must
// not be silently absorbed.
func (m Money) Add(o Money) (Money, error) {
	switch {
	case m == (Money{}):
		return o, nil
	case o == (Money{}):
		return m, nil
	case m.Currency != o.Currency:
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return Money{Units: m.Units + o.Units, Currency: m.Currency}, nil
}

// Mul scales the amount by a non-negative integer quantity.
func (m Money) Mul(qty int) (Money, error) {
	if qty < 0 {
		return Money{}, fmt.Errorf("%w: negative quantity %d", ErrAmountOutOfRange, qty)
	}
	return Money{Units: m.Units * int64(qty), Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or +1. Comparing amounts of different currencies is a
// programming error.
func (m Money) Cmp(o Money) (int, error) {
	if m.Currency != o.Currency && m.Currency != "" && o.Currency != "" {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	switch {
	case m.Units < o.Units:
		return -1, nil
	case m.Units > o.Units:
		return 1, nil
	}
	return 0, nil
}

func (m Money) Equal(o Money) bool {
	return m == o
}

func (m Money) IsZero() bool {
	return m.Units == 0
}
