package ocr

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true,
	".heif": true, ".tif": true, ".tiff": true, ".bmp": true,
}

const (
	embeddedTextMinChars  = 50
	embeddedTextMinTokens = 10
	localOCRAcceptFloor   = 0.96
	renderDPI             = 300
	defaultMaxPDFPages    = 10
)

// Engine implements the file-type selection policy over the three OCR
// providers: it decides which provider(s) to try, in which order, and
// when to accept a result versus fall through to the next candidate.
type Engine struct {
	cloud           Provider
	local           Provider
	embedded        Provider
	maxPDFPages     int
	localAcceptFloor float64
}

// EngineOption adjusts a non-provider engine knob.
type EngineOption func(*Engine)

// WithLocalAcceptFloor overrides the confidence a LocalOCR result must
// reach before the engine accepts it for a PDF instead of escalating
// to CloudOCR.
func WithLocalAcceptFloor(floor float64) EngineOption {
	return func(e *Engine) { e.localAcceptFloor = floor }
}

// NewEngine wires the three providers behind the selection policy.
// local may be nil when LocalOCR is disabled by configuration; cloud
// may be nil when CloudOCR is disabled. embedded is always available
// (it has no external dependency beyond pdfcpu).
func NewEngine(cloud, local, embedded Provider, maxPDFPages int, opts ...EngineOption) *Engine {
	if maxPDFPages <= 0 {
		maxPDFPages = defaultMaxPDFPages
	}
	e := &Engine{cloud: cloud, local: local, embedded: embedded, maxPDFPages: maxPDFPages, localAcceptFloor: localOCRAcceptFloor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText runs the file-type-driven selection policy against the
// original filename's extension and the raw bytes.
func (e *Engine) ExtractText(ctx context.Context, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case imageExtensions[ext]:
		return e.extractImage(ctx, ext, data)
	case ext == ".pdf":
		return e.extractPDF(ctx, data)
	default:
		return e.extractUnknown(ctx, data)
	}
}

// extractImage is CloudOCR-only: thermal receipts OCR poorly on local
// engines, and a hard CloudOCR failure here is terminal — the pipeline
// never silently falls back to a lower-quality provider for images.
// HEIC/HEIF originals are transcoded to JPEG in memory first; the file
// on disk stays untouched.
func (e *Engine) extractImage(ctx context.Context, ext string, data []byte) (*Result, error) {
	if e.cloud == nil {
		return nil, model.NewExtractionError("cloud_ocr", "CloudOCR is required for image input but disabled", nil)
	}
	if ext == ".heic" || ext == ".heif" {
		jpeg, err := Transcode(data)
		if err != nil {
			return nil, err
		}
		data = jpeg
	}
	result, err := e.cloud.ExtractText(ctx, data)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	if e.embedded != nil {
		result, err := e.embedded.ExtractText(ctx, data)
		if err == nil && acceptEmbeddedText(result.Text) {
			return result, nil
		}
		if err != nil {
			log.Warn().Str("stage", "ocr").Str("subcode", "embedded_text_failed").Err(err).Msg("embedded text extraction failed, falling back")
		}
	}

	if e.local != nil {
		result, err := e.local.ExtractText(ctx, data)
		if err == nil && result.Confidence >= e.localAcceptFloor {
			return result, nil
		}
		if err != nil {
			log.Warn().Str("stage", "ocr").Str("subcode", "local_ocr_failed").Err(err).Msg("local OCR failed, falling back to cloud render")
		}
	}

	if e.cloud == nil {
		return nil, model.NewExtractionError("cloud_ocr", "PDF exhausted EmbeddedText/LocalOCR and CloudOCR is disabled", nil)
	}
	return e.renderAndCloudOCR(ctx, data)
}

// renderAndCloudOCR rasterizes every page (capped at maxPDFPages) and
// runs CloudOCR on each, concatenating text and tagging each bounding
// box with its source page, so multi-page bills keep their later pages.
func (e *Engine) renderAndCloudOCR(ctx context.Context, data []byte) (*Result, error) {
	pageCount, err := pdfPageCount(data)
	if err != nil {
		pageCount = 1
	}
	pagesToRender := pageCount
	if pagesToRender > e.maxPDFPages {
		log.Warn().Str("stage", "ocr").Str("subcode", "pdf_page_cap").
			Int("page_count", pageCount).Int("cap", e.maxPDFPages).
			Msg("multi-page PDF exceeds render cap, truncating")
		pagesToRender = e.maxPDFPages
	}

	var sb strings.Builder
	var boxes []model.BoundingBox
	sumConfidence := 0.0
	rendered := 0

	for page := 1; page <= pagesToRender; page++ {
		image, err := RenderPage(data, page, renderDPI)
		if err != nil {
			log.Warn().Str("stage", "ocr").Str("subcode", "page_render_failed").Int("page", page).Err(err).Msg("skipping unrenderable page")
			continue
		}
		result, err := e.cloud.ExtractText(ctx, image)
		if err != nil {
			return nil, err
		}
		sb.WriteString(result.Text)
		sb.WriteString("\n")
		for _, b := range result.BoundingBoxes {
			b.Page = page
			boxes = append(boxes, b)
		}
		sumConfidence += result.Confidence
		rendered++
	}

	confidence := 0.0
	if rendered > 0 {
		confidence = sumConfidence / float64(rendered)
	}

	return &Result{
		Text:          sb.String(),
		Confidence:    confidence,
		PageCount:     pageCount,
		Method:        model.MethodCloudOCR,
		BoundingBoxes: boxes,
	}, nil
}

func (e *Engine) extractUnknown(ctx context.Context, data []byte) (*Result, error) {
	if e.local == nil {
		return nil, model.NewExtractionError("local_ocr", "unrecognized file type and LocalOCR is disabled", nil)
	}
	return e.local.ExtractText(ctx, data)
}

// acceptEmbeddedText applies the EmbeddedText acceptance test:
// at least 50 non-whitespace characters and 10 whitespace-separated
// tokens, indicating a text-native (not scanned) PDF.
func acceptEmbeddedText(text string) bool {
	nonWhitespace := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			nonWhitespace++
		}
	}
	tokens := len(strings.Fields(text))
	return nonWhitespace >= embeddedTextMinChars && tokens >= embeddedTextMinTokens
}

func pdfPageCount(data []byte) (int, error) {
	result, err := NewEmbeddedText().ExtractText(context.Background(), data)
	if err != nil {
		return 0, err
	}
	return result.PageCount, nil
}

// IsImageExtension reports whether the engine routes this extension
// down the image (CloudOCR-only) path. The pipeline uses it to decide
// whether derived previews and a perceptual hash make sense for a file.
func IsImageExtension(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}
