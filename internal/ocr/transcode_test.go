package ocr_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/ocr"
)

func TestCroppedRegion_EmptyBoxesReturnsFullImage(t *testing.T) {
	left, top, width, height := ocr.CroppedRegion(nil)
	assert.Equal(t, 0.0, left)
	assert.Equal(t, 0.0, top)
	assert.Equal(t, 1.0, width)
	assert.Equal(t, 1.0, height)
}

func TestCroppedRegion_UnionWithPadding(t *testing.T) {
	boxes := []model.BoundingBox{
		{Left: 0.10, Top: 0.10, Width: 0.10, Height: 0.05},
		{Left: 0.30, Top: 0.20, Width: 0.10, Height: 0.05},
	}

	left, top, width, height := ocr.CroppedRegion(boxes)

	// Union is [0.10, 0.40] x [0.10, 0.25], padded 5% of each span.
	assert.InDelta(t, 0.085, left, 0.001)
	assert.InDelta(t, 0.0925, top, 0.001)
	assert.InDelta(t, 0.33, width, 0.01)
	assert.InDelta(t, 0.165, height, 0.01)
}

func TestCroppedRegion_ClampsToUnitSquare(t *testing.T) {
	boxes := []model.BoundingBox{
		{Left: 0.0, Top: 0.0, Width: 1.0, Height: 1.0},
	}

	left, top, width, height := ocr.CroppedRegion(boxes)
	assert.Equal(t, 0.0, left)
	assert.Equal(t, 0.0, top)
	assert.Equal(t, 1.0, width)
	assert.Equal(t, 1.0, height)
}

func encodeTestJPEG(t *testing.T, fill uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for x := 0; x < 64; x++ {
		for y := 0; y < 32; y++ {
			shade := fill
			if x > 32 {
				shade = 255 - fill
			}
			img.Set(x, y, color.RGBA{shade, shade, shade, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPerceptualHash_Deterministic(t *testing.T) {
	data := encodeTestJPEG(t, 40)
	a, err := ocr.PerceptualHash(data)
	require.NoError(t, err)
	b, err := ocr.PerceptualHash(data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestPerceptualHash_DistinguishesDifferentImages(t *testing.T) {
	a, err := ocr.PerceptualHash(encodeTestJPEG(t, 40))
	require.NoError(t, err)
	b, err := ocr.PerceptualHash(encodeTestJPEG(t, 220))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPerceptualHash_UndecodableBytesError(t *testing.T) {
	_, err := ocr.PerceptualHash([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestNormalizedPreview_ShrinksWideImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 400))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	preview, err := ocr.NormalizedPreview(buf.Bytes())
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(preview))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), 800)
}
