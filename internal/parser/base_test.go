package parser_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/parser"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain", "19.99", "19.99"},
		{"currency symbol", "$19.99", "19.99"},
		{"thousands separator", "$1,234.56", "1234.56"},
		{"O misread as zero", "1O.99", "10.99"},
		{"trailing E misread as 9", "9.9E", "9.99"},
		{"negative", "-5.00", "-5.00"},
		{"negative after currency symbol", "$-24.99", "-24.99"},
		{"parenthesized negative", "(5.00)", "-5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parser.NormalizePrice(tt.raw)
			require.NoError(t, err)
			assert.True(t, d.Equal(dec.RequireFromString(tt.expected)),
				"got %s, want %s", d.String(), tt.expected)
		})
	}
}

func TestNormalizePrice_Unparseable(t *testing.T) {
	_, err := parser.NormalizePrice("not a price at all")
	require.Error(t, err)
}

func TestExtractAmounts(t *testing.T) {
	amounts := parser.ExtractAmounts("2 CASE TOMATO SAUCE $24.99 each")
	assert.Contains(t, amounts, "$24.99")
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "MILK 2I WHOLE", parser.CleanDescription("MILK   2|  WHOLE"))
}

func TestReconcileSubtotal_WithinTolerance_NoWarning(t *testing.T) {
	r := &vendor.NormalizedReceipt{
		Subtotal: dec.RequireFromString("100.00"),
		Lines: []vendor.NormalizedLine{
			{LineType: model.LineTypeItem, LineTotal: dec.RequireFromString("100.05")},
		},
	}
	parser.ReconcileSubtotal(r)
	assert.Empty(t, r.Warnings)
}

func TestReconcileSubtotal_BeyondTolerance_AddsWarning(t *testing.T) {
	r := &vendor.NormalizedReceipt{
		Subtotal: dec.RequireFromString("100.00"),
		Lines: []vendor.NormalizedLine{
			{LineType: model.LineTypeItem, LineTotal: dec.RequireFromString("95.00")},
		},
	}
	parser.ReconcileSubtotal(r)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "subtotal_mismatch", r.Warnings[0].Type)
}

func TestReconcileSubtotal_ExactlyAtTolerance_NoWarning(t *testing.T) {
	r := &vendor.NormalizedReceipt{
		Subtotal: dec.RequireFromString("100.00"),
		Lines: []vendor.NormalizedLine{
			{LineType: model.LineTypeItem, LineTotal: dec.RequireFromString("99.90")},
		},
	}
	parser.ReconcileSubtotal(r)
	assert.Empty(t, r.Warnings)
}

func TestReconcileSubtotal_OneCentPastTolerance_Warns(t *testing.T) {
	r := &vendor.NormalizedReceipt{
		Subtotal: dec.RequireFromString("100.00"),
		Lines: []vendor.NormalizedLine{
			{LineType: model.LineTypeItem, LineTotal: dec.RequireFromString("99.89")},
		},
	}
	parser.ReconcileSubtotal(r)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "subtotal_mismatch", r.Warnings[0].Type)
}

func TestMatchBoundingBox_RequiresTwoSharedTokens(t *testing.T) {
	boxes := []model.BoundingBox{
		{Text: "TOMATO SAUCE 28OZ", Left: 0.1, Top: 0.2},
		{Text: "BREAD WHITE LOAF", Left: 0.1, Top: 0.3},
	}

	match := parser.MatchBoundingBox("TOMATO SAUCE CASE", boxes)
	require.NotNil(t, match)
	assert.Equal(t, "TOMATO SAUCE 28OZ", match.Text)
}

func TestMatchBoundingBox_NoMatchBelowThreshold(t *testing.T) {
	boxes := []model.BoundingBox{
		{Text: "COMPLETELY UNRELATED ROW", Left: 0.1, Top: 0.2},
	}
	match := parser.MatchBoundingBox("TOMATO SAUCE CASE", boxes)
	assert.Nil(t, match)
}
