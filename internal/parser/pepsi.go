package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// PepsiParser handles both Pepsi document variants this vendor emits:
// a route-delivery invoice (printed at drop-off, case/unit pricing) and
// an email PDF summary (one line per product per period). Both share
// the same dispatch name; Parse distinguishes the variant internally
// only to pick the right line regex, since both still populate the same
// NormalizedReceipt contract.
type PepsiParser struct{}

func NewPepsiParser() *PepsiParser { return &PepsiParser{} }

func (p *PepsiParser) Name() model.ParserName { return model.ParserPepsi }

var (
	pepsiMarker       = regexp.MustCompile(`(?i)pepsico|pepsi beverages|pepsi-cola canada`)
	pepsiEmailMarker  = regexp.MustCompile(`(?i)delivery summary|statement period`)
	pepsiDeliveryLine = regexp.MustCompile(`^(\d{6,8})\s+(.+?)\s+(\d+)\s+CS\s+\$?([\d,]+\.\d{2})\s+\$?(-?[\d,]+\.\d{2})\s*$`)
	pepsiEmailLine    = regexp.MustCompile(`^(.+?)\s+x(\d+)\s+@\s*\$?([\d,]+\.\d{2})\s*=\s*\$?([\d,]+\.\d{2})\s*$`)
	pepsiInvoice      = regexp.MustCompile(`(?i)invoice\s*#?\s*:?\s*(\d{6,})`)
	pepsiDate         = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	pepsiSubtotal     = regexp.MustCompile(`(?i)^subtotal\s*\$?([\d,]+\.\d{2})`)
	pepsiTax          = regexp.MustCompile(`(?i)^(hst|gst)\s*\$?([\d,]+\.\d{2})`)
	pepsiTotal        = regexp.MustCompile(`(?i)^total\s*(due)?\s*\$?([\d,]+\.\d{2})`)
)

func (p *PepsiParser) Detect(text string) bool {
	return pepsiMarker.MatchString(text)
}

func (p *PepsiParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
		IsBill:        true,
	}

	emailVariant := pepsiEmailMarker.MatchString(text)

	if m := pepsiInvoice.FindStringSubmatch(text); m != nil {
		r.InvoiceNumber = m[1]
	}
	if m := pepsiDate.FindString(text); m != "" {
		if d, err := time.Parse("1/2/2006", m); err == nil {
			r.PurchaseDate = d
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if !emailVariant {
			if m := pepsiDeliveryLine.FindStringSubmatch(line); m != nil {
				qty, qerr := NormalizePrice(m[3])
				unitPrice, uerr := NormalizePrice(m[4])
				lineTotal, terr := NormalizePrice(m[5])
				if qerr == nil && uerr == nil && terr == nil {
					r.Lines = append(r.Lines, vendor.NormalizedLine{
						LineIndex:   index,
						LineType:    model.LineTypeItem,
						RawText:     line,
						VendorSKU:   m[1],
						Description: CleanDescription(m[2]),
						Quantity:    qty,
						UnitPrice:   unitPrice,
						LineTotal:   lineTotal,
						TaxFlag:     model.TaxTaxable,
					})
					index++
					continue
				}
			}
		} else {
			if m := pepsiEmailLine.FindStringSubmatch(line); m != nil {
				qty, qerr := NormalizePrice(m[2])
				unitPrice, uerr := NormalizePrice(m[3])
				lineTotal, terr := NormalizePrice(m[4])
				if qerr == nil && uerr == nil && terr == nil {
					r.Lines = append(r.Lines, vendor.NormalizedLine{
						LineIndex:   index,
						LineType:    model.LineTypeItem,
						RawText:     line,
						Description: CleanDescription(m[1]),
						Quantity:    qty,
						UnitPrice:   unitPrice,
						LineTotal:   lineTotal,
						TaxFlag:     model.TaxTaxable,
					})
					index++
					continue
				}
			}
		}

		if m := pepsiSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := pepsiTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d)
			}
			continue
		}
		if m := pepsiTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.Total = d
			}
			continue
		}
	}

	if r.Subtotal.IsZero() && !r.Total.IsZero() {
		r.Subtotal = r.Total.Sub(r.TaxTotal)
	}

	ReconcileSubtotal(r)
	return r, nil
}
