package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// CanadianTireParser handles Canadian Tire receipts. This vendor prints
// refunded items with a natively negative amount; this parser
// stores the absolute value and records a parsing note rather than
// propagating the vendor's sign convention into line_total (which this
// system reserves exclusively for discount lines).
type CanadianTireParser struct{}

func NewCanadianTireParser() *CanadianTireParser { return &CanadianTireParser{} }

func (p *CanadianTireParser) Name() model.ParserName { return model.ParserCanadianTire }

var canadianTireMarker = regexp.MustCompile(`(?i)canadian tire|CTC #\d+`)

func (p *CanadianTireParser) Detect(text string) bool {
	return canadianTireMarker.MatchString(text)
}

var (
	canadianTireDate     = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	canadianTireItemLine = regexp.MustCompile(`^(\d{6,9})\s+(.+?)\s+\$?(-?[\d,]+\.\d{2})\s*$`)
	canadianTireSubtotal = regexp.MustCompile(`(?i)^subtotal\s*\$?(-?[\d,]+\.\d{2})`)
	canadianTireTax      = regexp.MustCompile(`(?i)^(hst|gst)\s*\$?(-?[\d,]+\.\d{2})`)
	canadianTireTotal    = regexp.MustCompile(`(?i)^total\s*\$?(-?[\d,]+\.\d{2})`)
)

func (p *CanadianTireParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
	}

	if m := canadianTireDate.FindString(text); m != "" {
		if d, err := time.Parse("01/02/2006", m); err == nil {
			r.PurchaseDate = d
		}
	}

	index := 0
	refundTotals := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := canadianTireItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[3])
			if err != nil {
				continue
			}
			newLine := vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				VendorSKU:   m[1],
				Description: CleanDescription(m[2]),
				Quantity:    decimal.NewFromInt(1),
				TaxFlag:     model.TaxTaxable,
			}
			if amount.IsNegative() {
				newLine.UnitPrice = amount.Abs()
				newLine.LineTotal = amount.Abs()
				r.ParsingNotes = append(r.ParsingNotes,
					"refund on SKU "+m[1]+" stored as absolute value per Canadian Tire sign convention")
			} else {
				newLine.UnitPrice = amount
				newLine.LineTotal = amount
			}
			r.Lines = append(r.Lines, newLine)
			index++
			continue
		}
		if m := canadianTireSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d.Abs()
				if d.IsNegative() {
					refundTotals = true
				}
			}
			continue
		}
		if m := canadianTireTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d.Abs())
				if d.IsNegative() {
					refundTotals = true
				}
			}
			continue
		}
		if m := canadianTireTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d.Abs()
				if d.IsNegative() {
					refundTotals = true
				}
			}
			continue
		}
	}

	if refundTotals {
		r.ParsingNotes = append(r.ParsingNotes,
			"refund receipt: subtotal, tax, and total stored as absolute values per Canadian Tire sign convention")
	}

	ReconcileSubtotal(r)
	return r, nil
}
