package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BoundingBox locates a span of OCR'd text within normalized [0,1] image
// coordinates, and optionally which rendered PDF page it came from.
type BoundingBox struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Page       int     `json:"page,omitempty"`
}

// Receipt is a single ingested document, permanently scoped to one Entity.
type Receipt struct {
	ID             uuid.UUID
	Entity         Entity
	Source         Source
	ContentHash    string // SHA-256 of the original bytes, used for dedup
	PerceptualHash string
	OriginalPath   string

	PurchaseDate    time.Time
	VendorRaw       string
	VendorCanonical string
	Currency        string

	Subtotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal

	InvoiceNumber string
	DueDate       *time.Time
	IsBill        bool
	PaymentTerms  string

	OCRMethod     OCRMethod
	OCRConfidence float64

	ValidationWarnings []ValidationWarning

	Status ReceiptStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// arithmeticTolerance is the maximum allowed drift between subtotal+tax
// and total before the receipt invariant is considered violated.
const arithmeticTolerance = "0.02"

// CheckArithmetic reports whether |subtotal + tax_total - total| <= 0.02.
func (r *Receipt) CheckArithmetic() bool {
	tolerance := decimal.RequireFromString(arithmeticTolerance)
	sum := r.Subtotal.Add(r.TaxTotal)
	diff := sum.Sub(r.Total).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// AddWarning appends a structured validation warning to the receipt.
func (r *Receipt) AddWarning(w ValidationWarning) {
	r.ValidationWarnings = append(r.ValidationWarnings, w)
}

// ReceiptLine is a single item line on a Receipt.
type ReceiptLine struct {
	ID        uuid.UUID
	ReceiptID uuid.UUID
	Entity    Entity

	LineIndex int
	LineType  LineType
	RawText   string

	VendorSKU   string
	UPC         string
	Description string

	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal // signed: discounts negative

	TaxFlag   TaxFlag
	TaxAmount decimal.Decimal

	AccountCode     string
	ProductCategory string

	Confidence           float64
	CategorizationSource CategorizationSource
	AICostUSD            float64

	BoundingBox *BoundingBox

	ReviewStatus    LineReviewStatus
	RequiresReview  bool
	ReviewerID      string
	ReviewedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDiscount reports whether the line carries a negative line_total by
// convention (discount lines).
func (l *ReceiptLine) IsDiscount() bool {
	return l.LineType == LineTypeDiscount
}

// NewReceiptLine constructs a line with the defaults every parser should
// start from before filling in vendor-specific fields.
func NewReceiptLine(receiptID uuid.UUID, entity Entity, index int) *ReceiptLine {
	return &ReceiptLine{
		ID:        uuid.New(),
		ReceiptID: receiptID,
		Entity:    entity,
		LineIndex: index,
		LineType:  LineTypeItem,
		TaxFlag:   TaxUnknown,
		ReviewStatus: ReviewPending,
	}
}
