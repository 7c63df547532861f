/*
money.go - Fixed-point money representation

PURPOSE:
  All monetary values in the system are integer counts of paise
  (1 rupee = 100 paise). No floating-point currency value is ever
  stored or persisted; floats and decimal strings only appear at the
  input/display boundary.

KEY INVARIANTS:
  1. Money is an int64 paise count. Arithmetic is plain integer math.
  2. Conversion major -> minor rounds to the nearest paisa once, at
     the boundary. Minor -> major is an exact division by 100.
  3. Round-trip law: MoneyFromMajor(m.Major()) == m for every Money m.

FORMATTING:
  Format renders the major-unit value with Indian digit grouping
  (1,00,000.00) and exactly two decimals. It never fails; callers can
  hand it anything without a guard.

SEE ALSO:
  - commission.go: tier arithmetic built on Money
  - monthkey.go: the calendar companion to this file
*/
package finance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount of currency in minor units (paise).
type Money int64

const minorPerMajor = 100

// MoneyFromMajor converts an exact decimal major-unit amount to Money,
// rounding to the nearest paisa.
func MoneyFromMajor(d decimal.Decimal) Money {
	return Money(d.Mul(decimal.NewFromInt(minorPerMajor)).Round(0).IntPart())
}

// MoneyFromMajorString parses a decimal string ("1234.50") into Money.
// Non-numeric input is rejected with ErrInvalidAmount.
func MoneyFromMajorString(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromMajor(d), nil
}

// MoneyFromMajorFloat converts a float major-unit amount to Money.
// NaN and infinities are rejected with ErrInvalidAmount.
func MoneyFromMajorFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite value", ErrInvalidAmount)
	}
	return MoneyFromMajor(decimal.NewFromFloat(f)), nil
}

// Major returns the exact major-unit value (paise / 100).
func (m Money) Major() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

// Min returns the smaller of two amounts.
func (m Money) Min(other Money) Money {
	if m < other {
		return m
	}
	return other
}

// Format renders the amount as a major-unit string with Indian digit
// grouping and two decimals. Never fails; negative amounts carry a
// leading minus sign.
func (m Money) Format() string {
	v := int64(m)
	neg := v < 0
	if neg {
		v = -v
	}
	rupees := v / minorPerMajor
	paise := v % minorPerMajor

	s := fmt.Sprintf("%s.%02d", groupIndian(strconv.FormatInt(rupees, 10)), paise)
	if neg {
		return "-" + s
	}
	return s
}

// groupIndian inserts commas in the Indian style: the last three digits
// form one group, everything above groups in pairs (12,34,56,789).
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
