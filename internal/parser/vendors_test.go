package parser_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/parser"
)

func TestGFSParser_TextNativeInvoice(t *testing.T) {
	text := "GORDON FOOD SERVICE\n" +
		"Invoice 9002081541\n" +
		"Invoice Date 01/15/2025\n" +
		"1229832 5 APPETIZER ONION RING BTD FR 22.52 112.60 H CS 5 1X3 KG Kitche\n" +
		"Product Total 112.60\n" +
		"Misc 0.00\n" +
		"GST/HST 16.89\n" +
		"Invoice Total 129.49\n"

	p := parser.NewGFSParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	assert.Equal(t, "9002081541", result.InvoiceNumber)
	assert.Equal(t, 2025, result.PurchaseDate.Year())
	assert.True(t, result.IsBill)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, "1229832", line.VendorSKU)
	assert.Equal(t, model.TaxTaxable, line.TaxFlag)
	assert.True(t, line.LineTotal.Equal(dec.RequireFromString("112.60")))
	assert.True(t, line.Quantity.Equal(dec.RequireFromString("5")))

	assert.True(t, result.Subtotal.Equal(dec.RequireFromString("112.60")))
	assert.True(t, result.TaxTotal.Equal(dec.RequireFromString("16.89")))
	assert.True(t, result.Total.Equal(dec.RequireFromString("129.49")))
	assert.Empty(t, result.Warnings)
}

func TestGFSParser_MiscFuelChargeBecomesFeeLine(t *testing.T) {
	text := "GFS CANADA\n" +
		"Invoice 9002081600\n" +
		"Invoice Date 02/01/2025\n" +
		"1229832 5 APPETIZER ONION RING BTD FR 22.52 112.60 H CS 5 1X3 KG Kitche\n" +
		"0456789 2 CUTLERY KIT WRAPPED DS 18.00 36.00 CS 2 1X500 CT Dixie\n" +
		"Product Total 148.60\n" +
		"Misc 15.00\n" +
		"GST/HST 19.14\n" +
		"Invoice Total 182.74\n"

	p := parser.NewGFSParser()
	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)

	require.Len(t, result.Lines, 3)
	assert.Equal(t, model.TaxExempt, result.Lines[1].TaxFlag)
	fee := result.Lines[2]
	assert.Equal(t, model.LineTypeFee, fee.LineType)
	assert.Equal(t, "Fuel Surcharge", fee.Description)
	assert.True(t, fee.LineTotal.Equal(dec.RequireFromString("15.00")))

	// Receipt subtotal folds the fuel charge in on top of Product Total.
	assert.True(t, result.Subtotal.Equal(dec.RequireFromString("163.60")))
	assert.Empty(t, result.Warnings)
}

func TestCostcoParser_InfersHSTWhenMissing(t *testing.T) {
	text := "COSTCO WHOLESALE\n" +
		"Member #123456\n" +
		"Trans# 9988776\n" +
		"03/15/2026\n" +
		"1234567 KIRKLAND PAPER TOWEL 19.99 A\n" +
		"Subtotal $19.99\n" +
		"Total $22.99\n"

	p := parser.NewCostcoParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	assert.Equal(t, "9988776", result.InvoiceNumber)
	require.Len(t, result.Lines, 1)
	assert.False(t, result.TaxTotal.IsZero())
	assert.Contains(t, result.ParsingNotes[0], "15% HST")
}

func TestCostcoParser_DepositAndTPDLines(t *testing.T) {
	text := "COSTCO WHOLESALE\n" +
		"Member 123456789012\n" +
		"306657 GATORADE 65.97 Y\n" +
		"9490 DEPOSIT/306 8.40\n" +
		"1770709 TPD/PEPSI 2.90-\n" +
		"SUBTOTAL 63.07\n" +
		"TAX 9.46\n" +
		"**** TOTAL 72.53\n" +
		"09/08/2023 12:57 13451117081\n"

	p := parser.NewCostcoParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)

	assert.Equal(t, model.LineTypeItem, result.Lines[0].LineType)
	assert.Equal(t, model.TaxTaxable, result.Lines[0].TaxFlag)
	assert.Equal(t, model.LineTypeDeposit, result.Lines[1].LineType)
	assert.Equal(t, model.LineTypeDiscount, result.Lines[2].LineType)
	assert.True(t, result.Lines[2].LineTotal.IsNegative())

	assert.True(t, result.Subtotal.Equal(dec.RequireFromString("63.07")))
	assert.True(t, result.TaxTotal.Equal(dec.RequireFromString("9.46")))
	assert.True(t, result.Total.Equal(dec.RequireFromString("72.53")))
	assert.Equal(t, 2023, result.PurchaseDate.Year())
	assert.Empty(t, result.Warnings)
}

func TestGrosnorParser_ConfigurationTriple(t *testing.T) {
	text := "GROSNOR DISTRIBUTION\n" +
		"Invoice No.: GN-88213\n" +
		"2026-02-10\n" +
		"2022 MAPLE LEAF SILVER COIN UPC:012345678905 SRP:59.99 3/1/19.99 59.97\n" +
		"Subtotal $59.97\n" +
		"HST $7.80\n" +
		"Total Due $67.77\n"

	p := parser.NewGrosnorParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	assert.Equal(t, "GN-88213", result.InvoiceNumber)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "012345678905", result.Lines[0].UPC)
}

func TestSuperstoreParser_RepairsOCRPriceError(t *testing.T) {
	text := "REAL CANADIAN SUPERSTORE\n" +
		"2026/04/02\n" +
		"0060383030016 BANANAS 9.9E M\n" +
		"Subtotal $9.99\n" +
		"Total $9.99\n"

	p := parser.NewSuperstoreParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].LineTotal.Equal(dec.RequireFromString("9.99")))
	assert.Equal(t, model.TaxZeroRated, result.Lines[0].TaxFlag)
}

func TestPepsiParser_DeliveryVariant(t *testing.T) {
	text := "PEPSI-COLA CANADA\n" +
		"Invoice #: 7766554\n" +
		"3/5/2026\n" +
		"998877 PEPSI 12PK CANS 10 CS $5.99 $59.90\n" +
		"Subtotal $59.90\n" +
		"HST $7.79\n" +
		"Total Due $67.69\n"

	p := parser.NewPepsiParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "998877", result.Lines[0].VendorSKU)
}

func TestPepsiParser_EmailSummaryVariant(t *testing.T) {
	text := "PEPSICO\n" +
		"Delivery Summary\n" +
		"Statement Period: 2026-03-01 to 2026-03-31\n" +
		"PEPSI 12PK CANS x10 @ $5.99 = $59.90\n" +
		"Subtotal $59.90\n" +
		"Total $59.90\n"

	p := parser.NewPepsiParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "PEPSI 12PK CANS", result.Lines[0].Description)
}

func TestWalmartParser_TaxCodeDrivesFlag(t *testing.T) {
	text := "WALMART SUPERCENTER\n" +
		"03/10/2026\n" +
		"0060234567891 AA BATTERIES 8PK 12.97 N\n" +
		"Subtotal $12.97\n" +
		"Tax $1.69\n" +
		"Total $14.66\n"

	p := parser.NewWalmartParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, model.TaxTaxable, result.Lines[0].TaxFlag)
}

func TestPharmasaveParser_PrescriptionIsExempt(t *testing.T) {
	text := "PHARMASAVE\n" +
		"2026-05-20\n" +
		"RX# 445521 AMOXICILLIN 500MG $24.50\n" +
		"GREETING CARD $4.99 T\n" +
		"Subtotal $29.49\n" +
		"HST $0.65\n" +
		"Total $30.14\n"

	p := parser.NewPharmasaveParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, model.TaxExempt, result.Lines[0].TaxFlag)
	assert.Equal(t, model.TaxTaxable, result.Lines[1].TaxFlag)
}

func TestPharmasaveParser_FadedItemsKeepPrintedSubtotal(t *testing.T) {
	// Extracted items sum to 85.00 but the register printed 89.42: the
	// printed subtotal is stored as-is and the gap becomes a
	// subtotal_mismatch warning, never a fabricated line.
	text := "PHARMASAVE\n" +
		"2026-06-11\n" +
		"VITAMIN D 1000IU $42.50\n" +
		"BANDAGES ASSORTED $42.50\n" +
		"SUB TOTAL 89.42\n" +
		"HST $3.19\n" +
		"TOTAL $92.61\n"

	p := parser.NewPharmasaveParser()
	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.True(t, result.Subtotal.Equal(dec.RequireFromString("89.42")))
	assert.True(t, result.Total.Equal(dec.RequireFromString("92.61")))

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "subtotal_mismatch", result.Warnings[0].Type)
	assert.InDelta(t, 4.42, result.Warnings[0].Data["difference"].(float64), 0.001)
}

func TestCanadianTireParser_RefundStoredAsAbsoluteValue(t *testing.T) {
	text := "CANADIAN TIRE\n" +
		"CTC #123\n" +
		"04/01/2026\n" +
		"778899 WIPER BLADES -24.99\n" +
		"Subtotal $-24.99\n" +
		"Total $-24.99\n"

	p := parser.NewCanadianTireParser()
	require.True(t, p.Detect(text))

	result, err := p.Parse(text, model.EntityCorp)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].LineTotal.IsPositive())
	assert.True(t, result.Subtotal.IsPositive())
	assert.True(t, result.Total.IsPositive())
	require.NotEmpty(t, result.ParsingNotes)
	assert.Contains(t, result.ParsingNotes[0], "refund")
}

func TestGenericParser_NeverErrors(t *testing.T) {
	p := parser.NewGenericParser()
	assert.True(t, p.Detect("anything at all"))

	result, err := p.Parse("completely garbled unparseable nonsense", model.EntityCorp)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", result.InvoiceNumber)
}

func TestNewDefaultDispatcher_GenericCatchesUnmatchedText(t *testing.T) {
	d := parser.NewDefaultDispatcher()
	result, name, err := d.Parse("some unaffiliated corner-store receipt\nMILK 3.99\nTotal $3.99\n", model.EntityCorp)

	require.NoError(t, err)
	assert.Equal(t, model.ParserGeneric, name)
	assert.NotNil(t, result)
}
