package receipts_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/pkg/receipts"
)

func TestNewParser(t *testing.T) {
	p := receipts.NewParser()
	require.NotNil(t, p)
}

func TestParserParse_KnownVendor(t *testing.T) {
	p := receipts.NewParser()

	text := "GORDON FOOD SERVICE\n" +
		"Invoice 9002081541\n" +
		"Invoice Date 01/15/2025\n" +
		"1229832 5 APPETIZER ONION RING BTD FR 22.52 112.60 H CS 5 1X3 KG Kitche\n" +
		"Product Total 112.60\n" +
		"Misc 0.00\n" +
		"GST/HST 16.89\n" +
		"Invoice Total 129.49\n"

	result, err := p.Parse(context.Background(), text, receipts.EntityCorp)
	require.NoError(t, err)
	assert.Equal(t, receipts.ParserName("GFSParser"), result.ParserName)
	require.Len(t, result.Receipt.Lines, 1)
	assert.Equal(t, receipts.TaxTaxable, result.Receipt.Lines[0].TaxFlag)
}

func TestParserParse_UnmatchedTextFallsToGeneric(t *testing.T) {
	p := receipts.NewParser()

	result, err := p.Parse(context.Background(), "corner store\nMILK 3.99\nTotal $3.99\n", receipts.EntitySoleProp)
	require.NoError(t, err)
	assert.Equal(t, receipts.ParserName("GenericParser"), result.ParserName)
}

func TestMapAccount(t *testing.T) {
	m := receipts.MapAccount("beverage_soda", decimal.RequireFromString("5.99"), 0.95)
	assert.Equal(t, "5011", m.AccountCode)
	assert.False(t, m.RequiresReview)
}

func TestMatchBoundingBox(t *testing.T) {
	boxes := []receipts.BoundingBox{
		{Text: "TOMATO SAUCE 28OZ", Left: 0.1, Top: 0.2},
	}
	match := receipts.MatchBoundingBox("TOMATO SAUCE CASE", boxes)
	require.NotNil(t, match)
	assert.Equal(t, "TOMATO SAUCE 28OZ", match.Text)
}

// Test re-exported types
func TestReExportedTypes(t *testing.T) {
	var r receipts.Receipt
	r.InvoiceNumber = "9002081541"
	assert.Equal(t, "9002081541", r.InvoiceNumber)

	var line receipts.ReceiptLine
	line.VendorSKU = "1229832"
	assert.Equal(t, "1229832", line.VendorSKU)

	assert.Equal(t, receipts.Entity("corp"), receipts.EntityCorp)
	assert.Equal(t, receipts.Entity("soleprop"), receipts.EntitySoleProp)
	assert.Equal(t, receipts.TaxFlag("taxable"), receipts.TaxTaxable)
	assert.Equal(t, receipts.LineType("discount"), receipts.LineTypeDiscount)
	assert.Equal(t, receipts.Source("pwa"), receipts.SourcePWA)
}
