package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// GFSParser handles Gordon Food Service multi-page grocery-distributor
// invoices. Item rows are SKU-led with a category code (GR/FR/DY/DS)
// between the description and the prices, an optional H tax marker, and
// unit/pack/brand columns trailing the extended price:
//
//	1229832 5 APPETIZER ONION RING BTD FR 22.52 112.60 H CS 5 1X3 KG Kitche
//
// The totals footer uses GFS's own vocabulary: "Product Total", "Misc"
// (the fuel surcharge), "GST/HST", and "Invoice Total".
type GFSParser struct{}

func NewGFSParser() *GFSParser { return &GFSParser{} }

func (p *GFSParser) Name() model.ParserName { return model.ParserGFS }

var gfsMarker = regexp.MustCompile(`(?i)gordon food service|GFS CANADA|gfscanada\.com|www\.gfs\.ca`)

func (p *GFSParser) Detect(text string) bool {
	return gfsMarker.MatchString(text)
}

// gfsHSTRate is the flat 15% HST GFS charges on items carrying the H marker.
var gfsHSTRate = decimal.RequireFromString("0.15")

var (
	gfsInvoiceNumber = regexp.MustCompile(`(?i)invoice\s*#?\s*:?\s*(\d{6,})`)
	gfsDate          = regexp.MustCompile(`(?i)invoice date\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`)
	gfsTerms         = regexp.MustCompile(`(?i)terms\s*:?\s*(net\s*\d+(?:\s*days)?)`)
	gfsDueDate       = regexp.MustCompile(`(?i)due date\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`)
	// SKU, qty ordered, description, category, unit price, extended price,
	// optional H tax marker, unit, qty shipped, pack size, brand.
	gfsItemLine = regexp.MustCompile(`^(\d{7})\s+(\d+)\s+(.+?)\s+(GR|FR|DY|DS|CP)\s+\$?([\d,]+\.\d{2})\s+\$?([\d,]+\.\d{2})\s+(?:(H)\s+)?(CS|EA)\s+(\d+)\s+([\dXx.]+\s*[A-Z]+)\s+(\S+)\s*$`)

	gfsProductTotal = regexp.MustCompile(`(?i)product total\s+\$?([\d,]+\.\d{2})`)
	gfsMisc         = regexp.MustCompile(`(?i)misc\s+\$?([\d,]+\.\d{2})`)
	gfsTax          = regexp.MustCompile(`(?i)GST/HST\s+\$?([\d,]+\.\d{2})`)
	gfsInvoiceTotal = regexp.MustCompile(`(?i)invoice total\s+\$?([\d,]+\.\d{2})`)
)

func (p *GFSParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
		IsBill:        true,
		PaymentTerms:  "Net 14",
	}

	if m := gfsInvoiceNumber.FindStringSubmatch(text); m != nil {
		r.InvoiceNumber = m[1]
	}
	if m := gfsDate.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("1/2/2006", m[1]); err == nil {
			r.PurchaseDate = d
		}
	}
	if m := gfsTerms.FindStringSubmatch(text); m != nil {
		r.PaymentTerms = strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
	}
	if m := gfsDueDate.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("1/2/2006", m[1]); err == nil {
			r.DueDate = &d
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := gfsItemLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		unitPrice, uerr := NormalizePrice(m[5])
		extended, eerr := NormalizePrice(m[6])
		qtyShipped, qerr := NormalizePrice(m[9])
		if uerr != nil || eerr != nil || qerr != nil {
			continue
		}

		taxFlag := model.TaxExempt
		taxAmount := decimal.Zero
		if m[7] == "H" {
			taxFlag = model.TaxTaxable
			taxAmount = extended.Mul(gfsHSTRate).Round(2)
		}

		r.Lines = append(r.Lines, vendor.NormalizedLine{
			LineIndex:   index,
			LineType:    model.LineTypeItem,
			RawText:     line,
			VendorSKU:   m[1],
			Description: CleanDescription(m[3]) + " (" + strings.Join(strings.Fields(m[10]), " ") + ")",
			Quantity:    qtyShipped,
			UnitPrice:   unitPrice,
			LineTotal:   extended,
			TaxFlag:     taxFlag,
			TaxAmount:   taxAmount,
		})
		index++
	}

	productTotal := decimal.Zero
	if m := gfsProductTotal.FindStringSubmatch(text); m != nil {
		if d, err := NormalizePrice(m[1]); err == nil {
			productTotal = d
		}
	}

	fuelCharge := decimal.Zero
	if m := gfsMisc.FindStringSubmatch(text); m != nil {
		if d, err := NormalizePrice(m[1]); err == nil {
			fuelCharge = d
		}
	}
	if fuelCharge.IsPositive() {
		r.Lines = append(r.Lines, vendor.NormalizedLine{
			LineIndex:   index,
			LineType:    model.LineTypeFee,
			RawText:     "Misc " + fuelCharge.StringFixed(2),
			Description: "Fuel Surcharge",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   fuelCharge,
			LineTotal:   fuelCharge,
			TaxFlag:     model.TaxTaxable,
			TaxAmount:   fuelCharge.Mul(gfsHSTRate).Round(2),
		})
	}

	// The printed Product Total excludes the Misc fuel charge; the
	// receipt-level subtotal includes it so subtotal + tax = total holds.
	r.Subtotal = productTotal.Add(fuelCharge)

	if m := gfsTax.FindStringSubmatch(text); m != nil {
		if d, err := NormalizePrice(m[1]); err == nil {
			r.TaxTotal = d
		}
	}
	if m := gfsInvoiceTotal.FindStringSubmatch(text); m != nil {
		if d, err := NormalizePrice(m[1]); err == nil {
			r.Total = d
		}
	}

	ReconcileSubtotal(r)
	return r, nil
}
