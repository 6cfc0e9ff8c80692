package ocr

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/textract"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
)

// CloudOCR calls AWS Textract's synchronous DetectDocumentText API. It
// is the only provider used for images and the final fallback
// for low-confidence PDF pages.
type CloudOCR struct {
	client *textract.Textract
}

// NewCloudOCR builds a CloudOCR provider from the ambient AWS session
// (region/credentials resolved the standard SDK way: env vars, shared
// config, or an IAM role).
func NewCloudOCR() (*CloudOCR, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, model.NewExtractionError("cloud_ocr", "unable to create AWS session", err)
	}
	return &CloudOCR{client: textract.New(sess)}, nil
}

// ExtractText runs DetectDocumentText and reassembles LINE blocks, in
// reading order, into a single text blob alongside normalized bounding
// boxes (Textract already reports geometry as a fraction of page
// width/height, so no further normalization is required).
func (p *CloudOCR) ExtractText(ctx context.Context, data []byte) (*Result, error) {
	out, err := p.client.DetectDocumentTextWithContext(ctx, &textract.DetectDocumentTextInput{
		Document: &textract.Document{Bytes: data},
	})
	if err != nil {
		return nil, model.NewExtractionError("cloud_ocr", "textract request failed", err)
	}

	var sb strings.Builder
	boxes := make([]model.BoundingBox, 0, len(out.Blocks))
	sumConfidence := 0.0
	lineCount := 0

	for _, block := range out.Blocks {
		if block.BlockType == nil || *block.BlockType != textract.BlockTypeLine {
			continue
		}
		text := aws.StringValue(block.Text)
		if text == "" {
			continue
		}
		confidence := aws.Float64Value(block.Confidence) / 100.0
		sb.WriteString(text)
		sb.WriteString("\n")
		lineCount++
		sumConfidence += confidence

		if geom := block.Geometry; geom != nil && geom.BoundingBox != nil {
			bb := geom.BoundingBox
			boxes = append(boxes, model.BoundingBox{
				Text:       text,
				Confidence: confidence,
				Left:       aws.Float64Value(bb.Left),
				Top:        aws.Float64Value(bb.Top),
				Width:      aws.Float64Value(bb.Width),
				Height:     aws.Float64Value(bb.Height),
			})
		}
	}

	confidence := 0.0
	if lineCount > 0 {
		confidence = sumConfidence / float64(lineCount)
	}

	log.Debug().
		Str("stage", "ocr").
		Str("method", "cloud_ocr").
		Float64("confidence", confidence).
		Int("line_count", lineCount).
		Msg("cloud OCR completed")

	return &Result{
		Text:          sb.String(),
		Confidence:    confidence,
		PageCount:     1,
		Method:        model.MethodCloudOCR,
		BoundingBoxes: boxes,
	}, nil
}
