package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// CostcoParser handles Costco Wholesale receipts: member and transaction
// IDs in the header, deposit SKUs (bottle/can deposits priced with the
// item above them), TPD ("total price discount") lines that apply to
// the preceding item, and receipts with no explicit tax line — Costco
// receipts infer a flat 15% HST on taxable items when no tax total is
// printed.
type CostcoParser struct{}

func NewCostcoParser() *CostcoParser { return &CostcoParser{} }

func (p *CostcoParser) Name() model.ParserName { return model.ParserCostco }

var costcoMarker = regexp.MustCompile(`(?i)costco wholesale|member\s*#?\s*\d{6,}`)

func (p *CostcoParser) Detect(text string) bool {
	return costcoMarker.MatchString(text)
}

var (
	costcoTransactionID = regexp.MustCompile(`(?i)trans(action)?\s*#?\s*:?\s*(\d{6,})`)
	costcoDate          = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	costcoItemLine      = regexp.MustCompile(`^(\d{4,7})\s+(.+?)\s+\$?(-?[\d,]+\.\d{2})\s*([A-Z])?\s*$`)
	// TPD ("total price discount") rows print an optional SKU prefix and a
	// trailing-minus amount: "1770709 TPD/PEPSI 2.90-".
	costcoTPDLine    = regexp.MustCompile(`(?i)^(?:\d{4,7}\s+)?TPD/\S+\s+\$?([\d,]+\.\d{2})-?\s*$`)
	costcoDepositSKU = "DEPOSIT"
	costcoSubtotal   = regexp.MustCompile(`(?i)^subtotal\s*\$?([\d,]+\.\d{2})`)
	costcoTax        = regexp.MustCompile(`(?i)^(hst|tax)\s*\$?([\d,]+\.\d{2})`)
	costcoTotal      = regexp.MustCompile(`(?i)^\**\s*total\s*\$?([\d,]+\.\d{2})`)
)

func (p *CostcoParser) Parse(text string, entity model.Entity) (*vendor.NormalizedReceipt, error) {
	r := &vendor.NormalizedReceipt{
		InvoiceNumber: "UNKNOWN",
		Currency:      "CAD",
	}

	if m := costcoTransactionID.FindStringSubmatch(text); m != nil {
		r.InvoiceNumber = m[2]
	}
	if m := costcoDate.FindString(text); m != "" {
		if d, err := time.Parse("01/02/2006", m); err == nil {
			r.PurchaseDate = d
		}
	}

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := costcoTPDLine.FindStringSubmatch(line); m != nil {
			discount, err := NormalizePrice(m[1])
			if err != nil {
				continue
			}
			r.Lines = append(r.Lines, vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeDiscount,
				RawText:     line,
				Description: "TPD instant savings",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   discount.Abs(),
				LineTotal:   discount.Abs().Neg(),
				TaxFlag:     model.TaxUnknown,
			})
			index++
			continue
		}

		if m := costcoItemLine.FindStringSubmatch(line); m != nil {
			amount, err := NormalizePrice(m[3])
			if err != nil {
				continue
			}
			taxFlag := model.TaxZeroRated
			if m[4] == "A" || m[4] == "H" || m[4] == "Y" {
				taxFlag = model.TaxTaxable
			}
			desc := CleanDescription(m[2])
			newLine := vendor.NormalizedLine{
				LineIndex:   index,
				LineType:    model.LineTypeItem,
				RawText:     line,
				VendorSKU:   m[1],
				Description: desc,
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amount,
				LineTotal:   amount,
				TaxFlag:     taxFlag,
			}
			if strings.Contains(strings.ToUpper(desc), costcoDepositSKU) {
				newLine.LineType = model.LineTypeDeposit
			}
			r.Lines = append(r.Lines, newLine)
			index++
			continue
		}

		if m := costcoSubtotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Subtotal = d
			}
			continue
		}
		if m := costcoTax.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[2]); err == nil {
				r.TaxTotal = d
			}
			continue
		}
		if m := costcoTotal.FindStringSubmatch(line); m != nil {
			if d, err := NormalizePrice(m[1]); err == nil {
				r.Total = d
			}
			continue
		}
	}

	if r.TaxTotal.IsZero() && !r.Total.IsZero() {
		taxable := decimal.Zero
		for _, l := range r.Lines {
			if l.TaxFlag == model.TaxTaxable && l.LineType == model.LineTypeItem {
				taxable = taxable.Add(l.LineTotal)
			}
		}
		if taxable.GreaterThan(decimal.Zero) {
			r.TaxTotal = taxable.Mul(decimal.RequireFromString("0.15")).Round(2)
			r.ParsingNotes = append(r.ParsingNotes, "tax total inferred at 15% HST: no printed tax line")
		}
	}
	if r.Subtotal.IsZero() && !r.Total.IsZero() {
		r.Subtotal = r.Total.Sub(r.TaxTotal)
	}

	ReconcileSubtotal(r)
	return r, nil
}
