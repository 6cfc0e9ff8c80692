package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// WalmartParser handles Walmart Canada in-store receipts: UPC-prefixed
// item rows with a trailing single-letter tax code, and a "ST#/OP#/TE#"
// header block this parser ignores beyond locating the date.
type WalmartParser struct{}

func NewWalmartParser() *WalmartParser { return &WalmartParser{} }

func (p *WalmartParser) Name() model.ParserName { return model.ParserWalmart }

var walmartMarker = regexp.MustCompile(`(?i)walmart|wal-mart`)

func (p *WalmartParser) Detect(text string) bool {
	return walmartMarker.MatchString(text)
}

var (
	walmartDate     = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)
	walmartItemLine = regexp.MustCompile(`^(\d{10,13})\s+(.+?)\s+\$?(-?[\d,]+\.\d{2})\s*([A-Z])?\s*$`)
	walmartSubtotal = regexp.MustCompile(`(?i)^subtotal\s*\$?([\d,]+\.\d{2})`)
	walmartTax      = regexp.MustCompile(`(?i)^tax\s*\d*\s*\$?([\d,]+\.\d{2})`)
	walmartTotal    = regexp.MustCompile(`(?i)^total\s*\$?([\d,]+\.\d{2})`)
)

func (p *WalmartParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
	}

	if m := walmartDate.FindString(text); m != "" {
		for _, layout := range []string{"01/02/2006", "01/02/06"} {
			if d, err := time.Parse(layout, m); err == nil {
				r.PurchaseDate = d
				break
			}
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := walmartItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[3])
			if err != nil {
				continue
			}
			taxFlag := model.TaxZeroRated
			if m[4] == "N" || m[4] == "X" {
				taxFlag = model.TaxTaxable
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				UPC:         m[1],
				Description: CleanDescription(m[2]),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amount,
				LineTotal:   amount,
				TaxFlag:     taxFlag,
			})
			index++
			continue
		}
		if m := walmartSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := walmartTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d)
			}
			continue
		}
		if m := walmartTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
	}

	ReconcileSubtotal(r)
	return r, nil
}
