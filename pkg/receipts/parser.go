package receipts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/categorize"
	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/parser"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// ParseResult is a parsed receipt with the name of the vendor parser
// that produced it.
type ParseResult struct {
	Receipt    *vendor.NormalizedReceipt
	ParserName ParserName
}

// Parser turns OCR'd receipt text into a NormalizedReceipt using the
// full fixed-priority vendor parser set, GenericParser last. It needs
// no database, object store, or AI credentials, so it is usable as a
// plain library from callers that only want structured extraction.
type Parser struct {
	dispatcher *vendor.Dispatcher
}

// NewParser builds a Parser over every registered vendor parser.
func NewParser() *Parser {
	return &Parser{dispatcher: parser.NewDefaultDispatcher()}
}

// Parse extracts a NormalizedReceipt from text for the given entity.
// Some vendor parser always matches (GenericParser is the catch-all),
// so an error here means every matching parser failed.
func (p *Parser) Parse(ctx context.Context, text string, entity Entity) (*ParseResult, error) {
	normalized, name, err := p.dispatcher.Parse(text, entity)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Receipt: normalized, ParserName: name}, nil
}

// AccountMapping is the deterministic account assignment for one
// categorized line.
type AccountMapping = categorize.Mapping

// MapAccount resolves a product-taxonomy category and line total to a
// general-ledger account. Pure: same inputs always produce the same
// mapping.
func MapAccount(category string, lineTotal decimal.Decimal, confidence float64) AccountMapping {
	return categorize.Map(category, lineTotal, confidence)
}

// MatchBoundingBox links a line description to the OCR bounding box
// sharing the most whitespace-delimited tokens with it, requiring at
// least two shared tokens. Returns nil when no box qualifies.
func MatchBoundingBox(description string, boxes []BoundingBox) *model.BoundingBox {
	return parser.MatchBoundingBox(description, boxes)
}
