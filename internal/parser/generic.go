package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// genericDateLayouts are tried in order against any date-shaped token
// found in unstructured receipt text.
var genericDateLayouts = []string{
	"2006-01-02", "01/02/2006", "01-02-2006", "Jan 2, 2006", "2 Jan 2006",
}

var (
	genericTotalLine = regexp.MustCompile(`(?i)^\s*total\s*[:$]?\s*\$?([\d,]+\.\d{2})\s*$`)
	genericTaxLine   = regexp.MustCompile(`(?i)^\s*(hst|gst|tax)\s*[:$]?\s*\$?([\d,]+\.\d{2})\s*$`)
	genericItemLine  = regexp.MustCompile(`^(.+?)\s+\$?(-?[\d,]+\.\d{2})\s*$`)
	genericDateToken = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`)
)

// GenericParser is the last-resort, best-effort parser. It always
// Detects and never returns an error. Its lines carry no SKU and an
// unknown tax flag, and the pipeline gives every receipt it parses the
// review-required status.
type GenericParser struct{}

func NewGenericParser() *GenericParser { return &GenericParser{} }

func (p *GenericParser) Name() model.ParserName { return model.ParserGeneric }

// Detect always returns true: GenericParser is the dispatcher's catch-all.
func (p *GenericParser) Detect(text string) bool { return true }

// Parse makes a best effort to find a total, a tax line, a date, and any
// line that ends in a price, but never fails: a completely unparseable
// document still yields a NormalizedReceipt with zero lines, zero
// totals and no warning (an empty line sum matches the zero subtotal).
func (p *GenericParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
		Subtotal:      decimal.Zero,
		TaxTotal:      decimal.Zero,
		Total:         decimal.Zero,
	}

	if tok := genericDateToken.FindString(text); tok != "" {
		for _, layout := range genericDateLayouts {
			if d, err := time.Parse(layout, tok); err == nil {
				r.PurchaseDate = d
				break
			}
		}
	}

	lines := strings.Split(text, "\n")
	index := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := genericTotalLine.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
		if m := genericTaxLine.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = d
			}
			continue
		}
		if m := genericItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[2])
			if err != nil {
				continue
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				Description: CleanDescription(m[1]),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amount,
				LineTotal:   amount,
				TaxFlag:     model.TaxUnknown,
			})
			index++
		}
	}

	if r.Subtotal.IsZero() && !r.Total.IsZero() {
		r.Subtotal = r.Total.Sub(r.TaxTotal)
	}

	ReconcileSubtotal(r)
	return r, nil
}
