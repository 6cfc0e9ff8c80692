package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// PharmasaveParser handles Pharmasave pharmacy/retail receipts: most
// lines are exempt (prescriptions) or zero-rated (over-the-counter
// health items), with only front-store merchandise taxable; the vendor
// marks taxable lines with a trailing "T".
type PharmasaveParser struct{}

func NewPharmasaveParser() *PharmasaveParser { return &PharmasaveParser{} }

func (p *PharmasaveParser) Name() model.ParserName { return model.ParserPharmasave }

var pharmasaveMarker = regexp.MustCompile(`(?i)pharmasave`)

func (p *PharmasaveParser) Detect(text string) bool {
	return pharmasaveMarker.MatchString(text)
}

var (
	pharmasaveDate   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	pharmasaveRxLine = regexp.MustCompile(`(?i)^RX#\s*(\d+)\s+(.+?)\s+\$?([\d,]+\.\d{2})\s*$`)
	pharmasaveItemLine = regexp.MustCompile(`^(.+?)\s+\$?(-?[\d,]+\.\d{2})\s*(T)?\s*$`)
	// The register prints the subtotal as two words: "SUB TOTAL 89.42".
	pharmasaveSubtotal = regexp.MustCompile(`(?i)^SUB\s*TOTAL\s+\$?([\d,]+\.\d{2})`)
	pharmasaveTax      = regexp.MustCompile(`(?i)^(hst|gst)\s*\$?([\d,]+\.\d{2})`)
	pharmasaveTotal    = regexp.MustCompile(`(?i)^total\s+\$?([\d,]+\.\d{2})`)
)

func (p *PharmasaveParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
	}

	if m := pharmasaveDate.FindString(text); m != "" {
		if d, err := time.Parse("2006-01-02", m); err == nil {
			r.PurchaseDate = d
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := pharmasaveRxLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[3])
			if err != nil {
				continue
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				VendorSKU:   "RX" + m[1],
				Description: CleanDescription(m[2]),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amount,
				LineTotal:   amount,
				TaxFlag:     model.TaxExempt,
			})
			index++
			continue
		}
		// Footer lines first: the generic description+price item pattern
		// would otherwise swallow "SUB TOTAL 89.42" as merchandise.
		if m := pharmasaveSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := pharmasaveTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d)
			}
			continue
		}
		if m := pharmasaveTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
		if m := pharmasaveItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[2])
			if err != nil {
				continue
			}
			taxFlag := model.TaxZeroRated
			if m[3] == "T" {
				taxFlag = model.TaxTaxable
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				Description: CleanDescription(m[1]),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amount,
				LineTotal:   amount,
				TaxFlag:     taxFlag,
			})
			index++
			continue
		}
	}

	ReconcileSubtotal(r)
	return r, nil
}
