package money_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/money"
)

func TestFromInt(t *testing.T) {
	d := money.FromInt(100)
	assert.True(t, d.Equal(dec.NewFromInt(100)))
}

func TestFromFloat(t *testing.T) {
	d := money.FromFloat(19.995)
	assert.True(t, d.Equal(dec.NewFromFloat(20.00)))
}

func TestFromString(t *testing.T) {
	d, err := money.FromString("113.47")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("113.47")))

	_, err = money.FromString("not-a-number")
	require.Error(t, err)
}

func TestMustFromString(t *testing.T) {
	d := money.MustFromString("99.99")
	assert.True(t, d.Equal(dec.RequireFromString("99.99")))

	assert.Panics(t, func() {
		money.MustFromString("invalid")
	})
}

func TestMul(t *testing.T) {
	a := dec.NewFromInt(10)
	b := dec.NewFromFloat(1.13)
	result := money.Mul(a, b)
	assert.True(t, result.Equal(dec.RequireFromString("11.30")))
}

func TestDiv(t *testing.T) {
	a := dec.NewFromInt(100)
	b := dec.NewFromInt(3)
	result := money.Div(a, b)
	assert.True(t, result.Equal(dec.RequireFromString("33.33")))

	result = money.Div(a, dec.Zero)
	assert.True(t, result.IsZero())
}

func TestCalculateHST(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		rate     string
		expected string
	}{
		{"13% of 100.00", "100.00", "13", "13.00"},
		{"0% of 100.00", "100.00", "0", "0.00"},
		{"13% of 19.99", "19.99", "13", "2.60"}, // 2.5987 rounds to 2.60
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := dec.RequireFromString(tt.amount)
			rate := dec.RequireFromString(tt.rate)
			result := money.CalculateHST(amount, rate)
			expected := dec.RequireFromString(tt.expected)
			assert.True(t, result.Equal(expected), "got %s, want %s", result.String(), tt.expected)
		})
	}
}

func TestCalculateLineTotal(t *testing.T) {
	amount := dec.RequireFromString("50.00")
	discount := dec.RequireFromString("5.00")
	tax := dec.RequireFromString("5.85")

	result := money.CalculateLineTotal(amount, discount, tax)
	assert.True(t, result.Equal(dec.RequireFromString("50.85")))
}

func TestCalculatePercentage(t *testing.T) {
	amount := dec.RequireFromString("200.00")
	percentage := dec.NewFromInt(15)

	result := money.CalculatePercentage(amount, percentage)
	assert.True(t, result.Equal(dec.RequireFromString("30.00")))
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.RequireFromString("1.50"),
		dec.RequireFromString("2.25"),
		dec.RequireFromString("3.00"),
	}
	result := money.Sum(values)
	assert.True(t, result.Equal(dec.RequireFromString("6.75")))
}

func TestSum_Empty(t *testing.T) {
	result := money.Sum([]dec.Decimal{})
	assert.True(t, result.IsZero())
}

func TestIsPositive(t *testing.T) {
	assert.True(t, money.IsPositive(dec.NewFromInt(1)))
	assert.False(t, money.IsPositive(dec.Zero))
	assert.False(t, money.IsPositive(dec.NewFromInt(-1)))
}

func TestIsNonNegative(t *testing.T) {
	assert.True(t, money.IsNonNegative(dec.NewFromInt(1)))
	assert.True(t, money.IsNonNegative(dec.Zero))
	assert.False(t, money.IsNonNegative(dec.NewFromInt(-1)))
}

func TestRoundCAD(t *testing.T) {
	d := dec.RequireFromString("113.456")
	result := money.RoundCAD(d)
	assert.True(t, result.Equal(dec.RequireFromString("113.46")))
}

func TestWithinTolerance(t *testing.T) {
	a := dec.RequireFromString("113.00")
	b := dec.RequireFromString("113.02")
	tolerance := dec.RequireFromString("0.02")

	assert.True(t, money.WithinTolerance(a, b, tolerance))

	b = dec.RequireFromString("113.05")
	assert.False(t, money.WithinTolerance(a, b, tolerance))
}
