package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/model"
)

func TestReceipt_Creation(t *testing.T) {
	r := model.Receipt{
		ID:           uuid.New(),
		Entity:       model.EntityCorp,
		Source:       model.SourcePWA,
		VendorRaw:    "COSTCO WHOLESALE #123",
		Currency:     "CAD",
		Subtotal:     decimal.NewFromFloat(100.00),
		TaxTotal:     decimal.NewFromFloat(13.00),
		Total:        decimal.NewFromFloat(113.00),
		Status:       model.StatusPending,
		PurchaseDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, model.EntityCorp, r.Entity)
	assert.Equal(t, model.SourcePWA, r.Source)
	assert.Equal(t, "CAD", r.Currency)
	assert.Equal(t, model.StatusPending, r.Status)
}

func TestReceipt_CheckArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		tax      string
		total    string
		want     bool
	}{
		{"exact", "100.00", "13.00", "113.00", true},
		{"within tolerance", "100.00", "13.00", "113.01", true},
		{"at tolerance boundary", "100.00", "13.00", "113.02", true},
		{"beyond tolerance", "100.00", "13.00", "113.05", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := model.Receipt{
				Subtotal: decimal.RequireFromString(tt.subtotal),
				TaxTotal: decimal.RequireFromString(tt.tax),
				Total:    decimal.RequireFromString(tt.total),
			}
			assert.Equal(t, tt.want, r.CheckArithmetic())
		})
	}
}

func TestReceipt_AddWarning(t *testing.T) {
	r := &model.Receipt{}
	w := model.NewSubtotalMismatchWarning(98.50, 100.00)
	r.AddWarning(w)

	assert.Len(t, r.ValidationWarnings, 1)
	assert.Equal(t, "subtotal_mismatch", r.ValidationWarnings[0].Type)
}

func TestNewReceiptLine_Defaults(t *testing.T) {
	receiptID := uuid.New()
	line := model.NewReceiptLine(receiptID, model.EntitySoleProp, 2)

	assert.Equal(t, receiptID, line.ReceiptID)
	assert.Equal(t, model.EntitySoleProp, line.Entity)
	assert.Equal(t, 2, line.LineIndex)
	assert.Equal(t, model.LineTypeItem, line.LineType)
	assert.Equal(t, model.TaxUnknown, line.TaxFlag)
	assert.Equal(t, model.ReviewPending, line.ReviewStatus)
}

func TestReceiptLine_IsDiscount(t *testing.T) {
	line := &model.ReceiptLine{LineType: model.LineTypeDiscount}
	assert.True(t, line.IsDiscount())

	line.LineType = model.LineTypeItem
	assert.False(t, line.IsDiscount())
}

func TestProductMapping_Touch(t *testing.T) {
	p := &model.ProductMapping{TimesSeen: 3}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	p.Touch(now)

	assert.Equal(t, int64(4), p.TimesSeen)
	assert.Equal(t, now, p.LastSeen)
}

func TestVendorRegistryEntry_HasAlias(t *testing.T) {
	v := &model.VendorRegistryEntry{Aliases: []string{"Costco Wholesale", "COSTCO #123"}}

	assert.True(t, v.HasAlias("costco wholesale"))
	assert.False(t, v.HasAlias("walmart"))
}

func TestReviewableID(t *testing.T) {
	id := model.ReviewableID(model.ReviewableTypeReceiptLineItem, model.EntityCorp, "abc-123")
	assert.Equal(t, "receipt_line_item:corp:abc-123", id)
}
