// Package receipts provides a public API for parsing and categorizing
// retail receipts and invoices.
//
// This package exposes the core types for turning OCR'd receipt text
// into a normalized, double-entry-ready structure: per-line items with
// vendor SKU, quantity, price, tax treatment, and a chart-of-accounts
// code.
//
// Example usage:
//
//	parser := receipts.NewParser()
//	result, err := parser.Parse(ctx, ocrText, receipts.EntityCorp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Receipt.Total)
package receipts

import "github.com/rezonia/invoice-processor/internal/model"

// Re-export core types for public API
type (
	Receipt           = model.Receipt
	ReceiptLine       = model.ReceiptLine
	BoundingBox       = model.BoundingBox
	ValidationWarning = model.ValidationWarning
	ProductMapping    = model.ProductMapping
	Entity            = model.Entity
	Source            = model.Source
	LineType          = model.LineType
	TaxFlag           = model.TaxFlag
	ParserName        = model.ParserName
)

// Re-export entity constants
const (
	EntityCorp     = model.EntityCorp
	EntitySoleProp = model.EntitySoleProp
)

// Re-export receipt sources
const (
	SourcePWA    = model.SourcePWA
	SourceEmail  = model.SourceEmail
	SourceDrive  = model.SourceDrive
	SourceManual = model.SourceManual
)

// Re-export line types
const (
	LineTypeItem     = model.LineTypeItem
	LineTypeDiscount = model.LineTypeDiscount
	LineTypeDeposit  = model.LineTypeDeposit
	LineTypeFee      = model.LineTypeFee
)

// Re-export tax treatments
const (
	TaxTaxable   = model.TaxTaxable
	TaxZeroRated = model.TaxZeroRated
	TaxExempt    = model.TaxExempt
	TaxUnknown   = model.TaxUnknown
)

// Re-export error types
type (
	ParseError      = model.ParseError
	ValidationError = model.ValidationError
	ExtractionError = model.ExtractionError
)
