package categorize_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/categorize"
)

func TestMap_KnownCategoryUsesTable(t *testing.T) {
	m := categorize.Map("beverage_soda", decimal.RequireFromString("5.99"), 0.95)
	assert.Equal(t, "5011", m.AccountCode)
	assert.False(t, m.RequiresReview)
}

func TestMap_UnmappedCategoryFallsBackAndForcesReview(t *testing.T) {
	m := categorize.Map("unknown", decimal.RequireFromString("10.00"), 0.95)
	assert.Equal(t, "9100", m.AccountCode)
	assert.True(t, m.RequiresReview)
}

func TestMap_EquipmentAtThresholdCapitalizes(t *testing.T) {
	m := categorize.Map("equipment", decimal.RequireFromString("2500.00"), 0.95)
	assert.Equal(t, "1500", m.AccountCode)
	assert.True(t, m.RequiresReview)
	assert.Equal(t, "capitalization_threshold", m.Rule)
}

func TestMap_EquipmentBelowThresholdExpensesNoReview(t *testing.T) {
	m := categorize.Map("equipment", decimal.RequireFromString("2499.99"), 0.95)
	assert.Equal(t, "6300", m.AccountCode)
	assert.False(t, m.RequiresReview)
}

func TestMap_LowStage1ConfidenceForcesReviewEvenWhenMapped(t *testing.T) {
	m := categorize.Map("beverage_soda", decimal.RequireFromString("5.99"), 0.5)
	assert.Equal(t, "5011", m.AccountCode)
	assert.True(t, m.RequiresReview)
}

func TestMapWithThreshold_CustomThreshold(t *testing.T) {
	threshold := decimal.RequireFromString("1000.00")

	asset := categorize.MapWithThreshold("equipment", decimal.RequireFromString("1000.00"), 0.95, threshold)
	assert.Equal(t, "1500", asset.AccountCode)
	assert.True(t, asset.RequiresReview)

	expense := categorize.MapWithThreshold("equipment", decimal.RequireFromString("999.99"), 0.95, threshold)
	assert.Equal(t, "6300", expense.AccountCode)
	assert.False(t, expense.RequiresReview)
}

func TestMap_IsPure(t *testing.T) {
	amount := decimal.RequireFromString("42.00")
	first := categorize.Map("packaging_container", amount, 0.9)
	second := categorize.Map("packaging_container", amount, 0.9)
	assert.Equal(t, first, second)
}
