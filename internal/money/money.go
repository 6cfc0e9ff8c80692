package money

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero.
var Zero = decimal.Zero

// FromInt creates a decimal from cents-free whole dollars.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromFloat creates a decimal from a float, rounded to 2 decimal places.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FromString parses a decimal from a string.
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses a decimal from a string, panics on error.
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Mul multiplies two decimals, rounds to 2 places.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// Div divides a by b, rounds to 2 places. Division by zero returns zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// CalculateHST computes tax amount: amount * (ratePercent/100), rounded
// to 2 places (CAD has cents, unlike the VND this helper was copied from).
func CalculateHST(amount decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	hundred := decimal.NewFromInt(100)
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// CalculateLineTotal computes: amount - discount + tax, rounded to 2 places.
func CalculateLineTotal(amount, discount, tax decimal.Decimal) decimal.Decimal {
	return amount.Sub(discount).Add(tax).Round(2)
}

// CalculatePercentage computes: amount * (percentage/100), rounded to 2 places.
func CalculatePercentage(amount, percentage decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return amount.Mul(percentage).Div(hundred).Round(2)
}

// Sum sums a slice of decimals.
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if d is greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if d is >= zero.
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// RoundCAD rounds to 2 decimal places (CAD has cents).
func RoundCAD(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}

// WithinTolerance reports whether |a - b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return AbsDiff(a, b).LessThanOrEqual(tolerance)
}
