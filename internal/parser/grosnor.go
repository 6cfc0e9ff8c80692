package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// GrosnorParser handles Grosnor Distribution invoices for collectibles
// (coins, stamps): descriptions carry both a UPC and an SRP ("suggested
// retail price") inline, plus "configuration triples" — qty/case-pack/
// unit-price groupings packed into one token.
type GrosnorParser struct{}

func NewGrosnorParser() *GrosnorParser { return &GrosnorParser{} }

func (p *GrosnorParser) Name() model.ParserName { return model.ParserGrosnor }

var grosnorMarker = regexp.MustCompile(`(?i)grosnor distribution|grosnor\.com`)

func (p *GrosnorParser) Detect(text string) bool {
	return grosnorMarker.MatchString(text)
}

var (
	grosnorInvoiceNumber = regexp.MustCompile(`(?i)invoice\s*no\.?\s*:?\s*(GN-?\d+)`)
	grosnorDate          = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	// "012345678905  2022 MAPLE LEAF COIN  UPC:012345678905 SRP:59.99  3/1/19.99  59.97"
	grosnorItemLine = regexp.MustCompile(`(?i)^(.+?)\s+UPC:(\d{8,14})\s+SRP:([\d.]+)\s+(\d+)/(\d+)/([\d.]+)\s+\$?([\d,]+\.\d{2})\s*$`)
	grosnorSubtotal = regexp.MustCompile(`(?i)^subtotal\s*\$?([\d,]+\.\d{2})`)
	grosnorTax      = regexp.MustCompile(`(?i)^(hst|gst)\s*\$?([\d,]+\.\d{2})`)
	grosnorTotal    = regexp.MustCompile(`(?i)^total due\s*\$?([\d,]+\.\d{2})`)
)

func (p *GrosnorParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
		IsBill:        true,
	}

	if m := grosnorInvoiceNumber.FindStringSubmatch(text); m != nil {
		r.InvoiceNumber = strings.ToUpper(m[1])
	}
	if m := grosnorDate.FindString(text); m != "" {
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
		if m := grosnorItemLine.FindStringSubmatch(line); m != nil {
			// configuration triple: qty / case-pack / unit-price
			qty, qerr := NormalizePrice(m[4])
			unitPrice, uerr := NormalizePrice(m[6])
			lineTotal, terr := NormalizePrice(m[7])
			if qerr != nil || uerr != nil || terr != nil {
				continue
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				UPC:         m[2],
				Description: CleanDescription(m[1]),
				Quantity:    qty,
				UnitPrice:   unitPrice,
				LineTotal:   lineTotal,
				TaxFlag:     model.TaxTaxable,
			})
			index++
			continue
		}
		if m := grosnorSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := grosnorTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = r.TaxTotal.Add(d)
			}
			continue
		}
		if m := grosnorTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
	}

	ReconcileSubtotal(r)
	return r, nil
}
