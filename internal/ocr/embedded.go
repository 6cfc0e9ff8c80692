package ocr

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
)

// EmbeddedText pulls text directly out of a PDF's content streams,
// skipping OCR entirely for born-digital receipts (emailed invoices,
// exported statements). It is tried first for any PDF and
// accepted outright (confidence 1.0) when it recovers enough text.
type EmbeddedText struct{}

// NewEmbeddedText constructs an EmbeddedText provider.
func NewEmbeddedText() *EmbeddedText {
	return &EmbeddedText{}
}

// textShowOperator matches a PDF content-stream literal string operand
// immediately followed by a Tj or TJ text-show operator: "(...) Tj".
// Strings inside a TJ array operand ("[(...) -20 (...)] TJ") are not
// matched. This is a best-effort scan, not a full PDF content-stream parser: no
// cmap/encoding resolution, byte-string escapes are unescaped literally.
var textShowOperator = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*T[jJ]`)

func (p *EmbeddedText) ExtractText(ctx context.Context, data []byte) (*Result, error) {
	tmp, err := os.CreateTemp("", "receipt-embedded-*.pdf")
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, model.NewExtractionError("embedded_text", "could not write temp file", err)
	}
	tmp.Close()

	pageCount, err := api.PageCountFile(tmp.Name())
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not read page count", err)
	}

	contentDir, err := os.MkdirTemp("", "receipt-embedded-content-*")
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not create content dir", err)
	}
	defer os.RemoveAll(contentDir)

	if err := api.ExtractContentFile(tmp.Name(), contentDir, nil, nil); err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not extract content streams", err)
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not read content dir", err)
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(contentDir, entry.Name()))
		if err != nil {
			log.Warn().Str("stage", "ocr").Str("subcode", "content_stream_unreadable").
				Str("file", entry.Name()).Err(err).Msg("skipping unreadable content stream")
			continue
		}
		for _, match := range textShowOperator.FindAllSubmatch(raw, -1) {
			sb.Write(unescapePDFString(match[1]))
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}

	text := sb.String()

	log.Debug().
		Str("stage", "ocr").
		Str("method", "embedded_text").
		Int("page_count", pageCount).
		Int("text_length", len(text)).
		Msg("embedded text extraction completed")

	return &Result{
		Text:       text,
		Confidence: 1.0,
		PageCount:  pageCount,
		Method:     model.MethodPDFTextExtraction,
	}, nil
}

// unescapePDFString resolves the handful of backslash escapes PDF string
// literals use (\(, \), \\, \n, \r, \t); anything else passes through.
func unescapePDFString(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			switch b[i+1] {
			case '(', ')', '\\':
				out = append(out, b[i+1])
				i++
				continue
			case 'n':
				out = append(out, '\n')
				i++
				continue
			case 'r':
				out = append(out, '\r')
				i++
				continue
			case 't':
				out = append(out, '\t')
				i++
				continue
			}
		}
		out = append(out, b[i])
	}
	return out
}

// RenderPage rasterizes a single PDF page to PNG bytes at the given DPI,
// for the cloud fallback path (render the page at 300 DPI, then CloudOCR).
func RenderPage(data []byte, page int, dpi int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "receipt-render-*.pdf")
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, model.NewExtractionError("embedded_text", "could not write temp file", err)
	}
	tmp.Close()

	outDir, err := os.MkdirTemp("", "receipt-render-out-*")
	if err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not create render dir", err)
	}
	defer os.RemoveAll(outDir)

	pages := []string{strconv.Itoa(page)}
	if err := api.RenderImagesFile(tmp.Name(), outDir, pages, dpi, nil); err != nil {
		return nil, model.NewExtractionError("embedded_text", "could not render page", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) == 0 {
		return nil, model.NewExtractionError("embedded_text", "render produced no output", err)
	}
	return os.ReadFile(filepath.Join(outDir, entries[0].Name()))
}
