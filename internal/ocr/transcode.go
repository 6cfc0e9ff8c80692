package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/rezonia/invoice-processor/internal/model"
)

const (
	previewMaxWidth  = 800
	previewQuality   = 90
	thumbnailWidth   = 200
	thumbnailHeight  = 200
	boundingBoxPad   = 0.05
)

// Transcode converts an arbitrary supported image (including HEIC) into
// a JPEG byte slice, the canonical format the rest of the pipeline and
// the object store deal in.
func Transcode(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewExtractionError("transcode", "could not decode source image", err)
	}
	return encodeJPEG(img, 95)
}

// NormalizedPreview resizes an image down to a max width of 800px at
// JPEG quality 90, the review UI's on-screen preview size.
func NormalizedPreview(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewExtractionError("transcode", "could not decode source image", err)
	}
	if img.Bounds().Dx() > previewMaxWidth {
		img = imaging.Resize(img, previewMaxWidth, 0, imaging.Lanczos)
	}
	return encodeJPEG(img, previewQuality)
}

// Thumbnail produces a fixed-size square crop-to-fill thumbnail.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewExtractionError("transcode", "could not decode source image", err)
	}
	thumb := imaging.Thumbnail(img, thumbnailWidth, thumbnailHeight, imaging.Lanczos)
	return encodeJPEG(thumb, previewQuality)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, model.NewExtractionError("transcode", "could not encode jpeg", err)
	}
	return buf.Bytes(), nil
}

// CroppedRegion is a normalized ([0,1]^2) rectangle suitable for an
// on-demand cropped-image HTTP endpoint: the union of a set of
// bounding boxes, padded 5% on each side and clamped to the unit
// square. It is a pure function so it is usable without any image
// decoding, by both the HTTP layer and tests.
func CroppedRegion(boxes []model.BoundingBox) (left, top, width, height float64) {
	if len(boxes) == 0 {
		return 0, 0, 1, 1
	}

	minLeft, minTop := boxes[0].Left, boxes[0].Top
	maxRight, maxBottom := boxes[0].Left+boxes[0].Width, boxes[0].Top+boxes[0].Height

	for _, b := range boxes[1:] {
		if b.Left < minLeft {
			minLeft = b.Left
		}
		if b.Top < minTop {
			minTop = b.Top
		}
		if right := b.Left + b.Width; right > maxRight {
			maxRight = right
		}
		if bottom := b.Top + b.Height; bottom > maxBottom {
			maxBottom = bottom
		}
	}

	padX := (maxRight - minLeft) * boundingBoxPad
	padY := (maxBottom - minTop) * boundingBoxPad

	left = clamp01(minLeft - padX)
	top = clamp01(minTop - padY)
	right := clamp01(maxRight + padX)
	bottom := clamp01(maxBottom + padY)

	return left, top, right - left, bottom - top
}

// Crop cuts the normalized ([0,1]^2) rectangle produced by CroppedRegion
// out of the source image and returns it as a JPEG, for the on-demand
// cropped-file endpoint. The crop is computed against the image's
// actual pixel dimensions, so it stays correct regardless of the
// resolution the original was captured at.
func Crop(data []byte, left, top, width, height float64) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewExtractionError("transcode", "could not decode source image", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rect := image.Rect(
		int(left*float64(w)),
		int(top*float64(h)),
		int((left+width)*float64(w)),
		int((top+height)*float64(h)),
	)

	cropped := imaging.Crop(img, rect)
	return encodeJPEG(cropped, previewQuality)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PerceptualHash computes a 64-bit difference hash of the image,
// rendered as 16 hex characters. Two visually similar receipts (same
// photo re-uploaded at a different resolution, slight recompression)
// hash within a few bits of each other, so the hash supports
// similarity lookups that the exact content hash cannot.
func PerceptualHash(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", model.NewExtractionError("transcode", "could not decode source image", err)
	}

	gray := imaging.Grayscale(imaging.Resize(img, 9, 8, imaging.Lanczos))

	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			left, _, _, _ := gray.At(x, y).RGBA()
			right, _, _, _ := gray.At(x+1, y).RGBA()
			if left > right {
				hash |= 1 << uint(63-bit)
			}
			bit++
		}
	}
	return fmt.Sprintf("%016x", hash), nil
}
