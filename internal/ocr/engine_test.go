package ocr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/ocr"
)

type stubProvider struct {
	result *ocr.Result
	err    error
	calls  int
}

func (s *stubProvider) ExtractText(ctx context.Context, data []byte) (*ocr.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestEngine_ImageUsesCloudOnly(t *testing.T) {
	cloud := &stubProvider{result: &ocr.Result{Text: "receipt text", Confidence: 0.9, Method: model.MethodCloudOCR}}
	local := &stubProvider{result: &ocr.Result{Text: "should not be used", Confidence: 1.0}}

	e := ocr.NewEngine(cloud, local, nil, 10)
	result, err := e.ExtractText(context.Background(), "receipt.jpg", []byte("fake-image-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "receipt text", result.Text)
	assert.Equal(t, 1, cloud.calls)
	assert.Equal(t, 0, local.calls)
}

func TestEngine_ImageTerminalErrorWhenCloudDisabled(t *testing.T) {
	local := &stubProvider{result: &ocr.Result{Text: "fallback", Confidence: 1.0}}

	e := ocr.NewEngine(nil, local, nil, 10)
	_, err := e.ExtractText(context.Background(), "receipt.png", []byte("fake"))

	require.Error(t, err)
	assert.Equal(t, 0, local.calls)
}

func TestEngine_PDFAcceptsEmbeddedTextWhenSubstantial(t *testing.T) {
	embedded := &stubProvider{result: &ocr.Result{
		Text:       "GORDON FOOD SERVICE invoice number 1234567 total 355.81 subtotal 314.88 tax 40.93",
		Confidence: 1.0,
		Method:     model.MethodPDFTextExtraction,
	}}
	local := &stubProvider{}
	cloud := &stubProvider{}

	e := ocr.NewEngine(cloud, local, embedded, 10)
	result, err := e.ExtractText(context.Background(), "invoice.pdf", []byte("fake-pdf-bytes"))

	require.NoError(t, err)
	assert.Equal(t, model.MethodPDFTextExtraction, result.Method)
	assert.Equal(t, 0, local.calls)
	assert.Equal(t, 0, cloud.calls)
}

func TestEngine_PDFFallsBackToLocalThenCloud(t *testing.T) {
	embedded := &stubProvider{result: &ocr.Result{Text: "x", Confidence: 1.0}}
	local := &stubProvider{result: &ocr.Result{Text: "weak scan", Confidence: 0.5}}
	cloud := &stubProvider{result: &ocr.Result{Text: "cloud rescue", Confidence: 0.97, Method: model.MethodCloudOCR}}

	e := ocr.NewEngine(cloud, local, embedded, 10)
	_, err := e.ExtractText(context.Background(), "scan.pdf", []byte("fake"))

	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
}

func TestEngine_PDFAcceptsLocalOCRAboveFloor(t *testing.T) {
	embedded := &stubProvider{result: &ocr.Result{Text: "x", Confidence: 1.0}}
	local := &stubProvider{result: &ocr.Result{Text: "good scan", Confidence: 0.98, Method: model.MethodLocalOCR}}
	cloud := &stubProvider{}

	e := ocr.NewEngine(cloud, local, embedded, 10)
	result, err := e.ExtractText(context.Background(), "scan.pdf", []byte("fake"))

	require.NoError(t, err)
	assert.Equal(t, "good scan", result.Text)
	assert.Equal(t, 0, cloud.calls)
}

func TestEngine_UnknownTypeUsesLocalOCRLastResort(t *testing.T) {
	local := &stubProvider{result: &ocr.Result{Text: "scanned", Confidence: 0.4}}

	e := ocr.NewEngine(nil, local, nil, 10)
	result, err := e.ExtractText(context.Background(), "receipt.dat", []byte("fake"))

	require.NoError(t, err)
	assert.Equal(t, "scanned", result.Text)
	assert.Equal(t, 1, local.calls)
}

func TestEngine_EmbeddedTextErrorFallsThroughToLocal(t *testing.T) {
	embedded := &stubProvider{err: errors.New("content stream corrupt")}
	local := &stubProvider{result: &ocr.Result{Text: "recovered", Confidence: 0.99}}

	e := ocr.NewEngine(nil, local, embedded, 10)
	result, err := e.ExtractText(context.Background(), "invoice.pdf", []byte("fake"))

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
}

func TestEngine_HEICWithUndecodableBytesIsTerminal(t *testing.T) {
	cloud := &stubProvider{result: &ocr.Result{Text: "unreachable", Confidence: 0.9}}

	e := ocr.NewEngine(cloud, nil, nil, 10)
	_, err := e.ExtractText(context.Background(), "photo.heic", []byte("not-a-real-heic"))

	require.Error(t, err)
	assert.Equal(t, 0, cloud.calls)
}

func TestEngine_LocalAcceptFloorIsConfigurable(t *testing.T) {
	embedded := &stubProvider{result: &ocr.Result{Text: "x", Confidence: 1.0}}
	local := &stubProvider{result: &ocr.Result{Text: "decent scan", Confidence: 0.90, Method: model.MethodLocalOCR}}
	cloud := &stubProvider{}

	e := ocr.NewEngine(cloud, local, embedded, 10, ocr.WithLocalAcceptFloor(0.85))
	result, err := e.ExtractText(context.Background(), "scan.pdf", []byte("fake"))

	require.NoError(t, err)
	assert.Equal(t, "decent scan", result.Text)
	assert.Equal(t, 0, cloud.calls)
}
