package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/money"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// reconciliationTolerance is the $0.10 allowance between the sum of
// parsed lines and the vendor-stated subtotal.
var reconciliationTolerance = decimal.RequireFromString("0.10")

var (
	thousandsSeparator = regexp.MustCompile(`[,\s](\d{3})\b`)
	currencySymbols    = regexp.MustCompile(`[$]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	amountToken        = regexp.MustCompile(`-?\$?\d{1,3}(?:[,.\s]\d{3})*(?:\.\d{2})?`)
)

// NormalizePrice strips currency symbols and thousands separators and
// repairs common OCR confusions (O/o misread as 0, a trailing E
// misread for a 9, as in Superstore's "9.9E" → "9.99"), preserving
// sign. Returns an error if nothing resembling a number remains.
func NormalizePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	parenNegative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = currencySymbols.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	negative := parenNegative || strings.HasPrefix(s, "-")
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "o", "0")
	if strings.HasSuffix(s, "E") || strings.HasSuffix(s, "e") {
		s = s[:len(s)-1] + "9"
	}
	s = thousandsSeparator.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSpace(s)

	d, err := money.FromString(s)
	if err != nil {
		return decimal.Zero, model.NewParseError("", "price", "could not parse price token: "+raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ExtractAmounts returns every amount-shaped token found in text, in
// order of appearance, as raw strings for the caller to NormalizePrice.
func ExtractAmounts(text string) []string {
	return amountToken.FindAllString(text, -1)
}

// CleanDescription collapses whitespace runs and repairs the common
// OCR confusion of a pipe character for a capital I.
func CleanDescription(raw string) string {
	s := strings.ReplaceAll(raw, "|", "I")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ReconcileSubtotal computes Σ(item+fee) − |Σ(discount)| and compares it
// to the parser-populated subtotal with a $0.10 tolerance. On mismatch it
// attaches a structured subtotal_mismatch warning; it never fabricates
// placeholder lines.
func ReconcileSubtotal(r *vendor.NormalizedReceipt) {
	found := r.LineTotalSum()
	if money.WithinTolerance(found, r.Subtotal, reconciliationTolerance) {
		return
	}
	foundF, _ := found.Float64()
	expectedF, _ := r.Subtotal.Float64()
	r.AddWarning(model.NewSubtotalMismatchWarning(foundF, expectedF))
}

// sharedTokenCount counts whitespace-delimited tokens two strings have
// in common, case-insensitively, for line-to-geometry matching.
func sharedTokenCount(a, b string) int {
	tokens := func(s string) map[string]struct{} {
		set := make(map[string]struct{})
		for _, t := range strings.Fields(strings.ToLower(s)) {
			set[t] = struct{}{}
		}
		return set
	}
	ta, tb := tokens(a), tokens(b)
	count := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			count++
		}
	}
	return count
}

// MatchBoundingBox finds the bounding box whose text shares the most
// whitespace-delimited tokens with description, requiring at least 2
// shared tokens. Returns nil if no box
// clears the threshold.
func MatchBoundingBox(description string, boxes []model.BoundingBox) *model.BoundingBox {
	var best *model.BoundingBox
	bestCount := 1 // must exceed 1, i.e. require >= 2
	for i := range boxes {
		if c := sharedTokenCount(description, boxes[i].Text); c > bestCount {
			bestCount = c
			best = &boxes[i]
		}
	}
	return best
}
