package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// SuperstoreParser handles Real Canadian Superstore / Loblaws receipts:
// UPC-led item rows and a tax-code letter cluster ("HMRJ" and similar)
// trailing each price, plus a well-known OCR price error on this
// vendor's thermal paper where a final "9" prints faint enough to be
// misread as "E" (handled by NormalizePrice's shared repair).
type SuperstoreParser struct{}

func NewSuperstoreParser() *SuperstoreParser { return &SuperstoreParser{} }

func (p *SuperstoreParser) Name() model.ParserName { return model.ParserSuperstore }

var superstoreMarker = regexp.MustCompile(`(?i)real canadian superstore|loblaws`)

func (p *SuperstoreParser) Detect(text string) bool {
	return superstoreMarker.MatchString(text)
}

var (
	superstoreDate = regexp.MustCompile(`\d{4}/\d{2}/\d{2}`)
	// "0060383030016  BANANAS            1.29 H"
	superstoreItemLine = regexp.MustCompile(`^(\d{12,13})\s+(.+?)\s+\$?(-?[\d,]+\.\d(?:\d|E))\s*([HMRJ]{1,4})?\s*$`)
	superstoreSubtotal = regexp.MustCompile(`(?i)^subtotal\s*\$?([\d,]+\.\d{2})`)
	superstoreTax      = regexp.MustCompile(`(?i)^(hst|gst|pst)\s*\$?([\d,]+\.\d{2})`)
	superstoreTotal    = regexp.MustCompile(`(?i)^total\s*\$?([\d,]+\.\d{2})`)
)

func (p *SuperstoreParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
	}

	if m := superstoreDate.FindString(text); m != "" {
		if d, err := time.Parse("2006/01/02", m); err == nil {
			r.PurchaseDate = d
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := superstoreItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[3])
			if err != nil {
				continue
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
				TaxFlag:     superstoreTaxFlag(m[4]),
			})
			index++
			continue
		}
		if m := superstoreSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := superstoreTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d)
			}
			continue
		}
		if m := superstoreTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
	}

	ReconcileSubtotal(r)
	return r, nil
}

// superstoreTaxFlag reads the trailing tax-code letter cluster: H (HST)
// and R (retail sales tax) mean taxable; M and J (grocery staples) mean
// zero-rated; no code means unknown.
func superstoreTaxFlag(codes string) model.TaxFlag {
	upper := strings.ToUpper(codes)
	if strings.ContainsAny(upper, "HR") {
		return model.TaxTaxable
	}
	if strings.ContainsAny(upper, "MJ") {
		return model.TaxZeroRated
	}
	return model.TaxUnknown
}
