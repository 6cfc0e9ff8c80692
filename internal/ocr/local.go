package ocr

import (
	"bytes"
	"context"
	"image"
	"os"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rezonia/invoice-processor/internal/model"
)

// LocalOCR runs Tesseract on-host via gosseract. It is used only as a
// quality-gated PDF-rendered-page fallback (accepted only at
// confidence >= TESSERACT_CONFIDENCE_THRESHOLD, default 0.96) and as a
// last resort for unrecognized file types.
type LocalOCR struct {
	language string
}

// NewLocalOCR constructs a LocalOCR provider. language is a Tesseract
// language code ("eng" for English receipts).
func NewLocalOCR(language string) *LocalOCR {
	if language == "" {
		language = "eng"
	}
	return &LocalOCR{language: language}
}

// ExtractText writes data to a temp file (gosseract's C bindings take a
// path, not a byte slice) and runs Tesseract against it with
// preserve-interword-spaces and single-block segmentation, which keeps
// receipt columns readable for the line regexes downstream.
func (p *LocalOCR) ExtractText(ctx context.Context, data []byte) (*Result, error) {
	tmp, err := os.CreateTemp("", "receipt-ocr-*.png")
	if err != nil {
		return nil, model.NewExtractionError("local_ocr", "could not create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, model.NewExtractionError("local_ocr", "could not write temp file", err)
	}
	tmp.Close()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.language); err != nil {
		return nil, model.NewExtractionError("local_ocr", "unable to set language", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return nil, model.NewExtractionError("local_ocr", "unable to set preserve_interword_spaces", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, model.NewExtractionError("local_ocr", "unable to set page segmentation mode", err)
	}
	if err := client.SetImage(tmp.Name()); err != nil {
		return nil, model.NewExtractionError("local_ocr", "unable to set image", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, model.NewExtractionError("local_ocr", "tesseract run failed", err)
	}

	boxes, confidence := p.boundingBoxes(client, data)

	log.Debug().
		Str("stage", "ocr").
		Str("method", "local_ocr").
		Float64("confidence", confidence).
		Int("text_length", len(text)).
		Msg("local OCR completed")

	return &Result{
		Text:          text,
		Confidence:    confidence,
		PageCount:     1,
		Method:        model.MethodLocalOCR,
		BoundingBoxes: boxes,
	}, nil
}

// boundingBoxes reads Tesseract's per-line boxes and normalizes them
// against the source image's pixel dimensions. Confidence returned is
// the mean of all line confidences, scaled to [0,1] (gosseract reports
// 0-100).
func (p *LocalOCR) boundingBoxes(client *gosseract.Client, data []byte) ([]model.BoundingBox, float64) {
	cfg, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(cfg) == 0 {
		return nil, 0
	}

	width, height := imageDimensions(data)
	if width == 0 || height == 0 {
		return nil, 0
	}

	boxes := make([]model.BoundingBox, 0, len(cfg))
	sumConfidence := 0.0
	for _, b := range cfg {
		boxes = append(boxes, model.BoundingBox{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Left:       float64(b.Box.Min.X) / float64(width),
			Top:        float64(b.Box.Min.Y) / float64(height),
			Width:      float64(b.Box.Dx()) / float64(width),
			Height:     float64(b.Box.Dy()) / float64(height),
		})
		sumConfidence += b.Confidence / 100.0
	}
	return boxes, sumConfidence / float64(len(cfg))
}

func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
