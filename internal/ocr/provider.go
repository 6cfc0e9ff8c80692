package ocr

import (
	"context"

	"github.com/rezonia/invoice-processor/internal/model"
)

// Result is the OCR Strategy Engine's contract output: extracted text,
// an overall confidence in [0,1], page count, the method used, and
// per-span bounding boxes in normalized image coordinates.
type Result struct {
	Text        string
	Confidence  float64
	PageCount   int
	Method      model.OCRMethod
	BoundingBoxes []model.BoundingBox
}

// Provider is one of the three OCR backends the engine composes:
// CloudOCR, LocalOCR, EmbeddedText.
type Provider interface {
	ExtractText(ctx context.Context, data []byte) (*Result, error)
}
