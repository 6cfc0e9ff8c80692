package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMimeType_PNG(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	assert.Equal(t, "image/png", detectMimeType(png))
}

func TestDetectMimeType_JPEG(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	assert.Equal(t, "image/jpeg", detectMimeType(jpeg))
}

func TestDetectMimeType_PDF(t *testing.T) {
	pdf := []byte("%PDF-1.7 rest of file")
	assert.Equal(t, "application/pdf", detectMimeType([]byte(pdf)))
}

func TestDetectMimeType_TooShortFallsBackToOctetStream(t *testing.T) {
	assert.Equal(t, "application/octet-stream", detectMimeType([]byte{0x01}))
}

func TestDetectMimeType_UnknownFallsBackToOctetStream(t *testing.T) {
	assert.Equal(t, "application/octet-stream", detectMimeType([]byte("not a known magic header")))
}

func TestSupportedUploadType_AcceptsDeclaredImageContentType(t *testing.T) {
	assert.True(t, supportedUploadType("image/jpeg", nil))
}

func TestSupportedUploadType_AcceptsDeclaredPDFContentType(t *testing.T) {
	assert.True(t, supportedUploadType("application/pdf", nil))
}

func TestSupportedUploadType_RejectsUnrelatedDeclaredType(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	assert.False(t, supportedUploadType("text/plain", jpeg))
}

func TestSupportedUploadType_SniffsWhenContentTypeIsGeneric(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	assert.True(t, supportedUploadType("application/octet-stream", png))
}

func TestSupportedUploadType_RejectsWhenNeitherDeclaredNorSniffedMatch(t *testing.T) {
	assert.False(t, supportedUploadType("application/octet-stream", []byte("plain text receipt notes")))
}

func TestExtensionForContentType_KnownTypes(t *testing.T) {
	assert.Equal(t, "png", extensionForContentType("image/png"))
	assert.Equal(t, "jpg", extensionForContentType("image/jpeg"))
	assert.Equal(t, "pdf", extensionForContentType("application/pdf"))
	assert.Equal(t, "heic", extensionForContentType("image/heic"))
}

func TestExtensionForContentType_UnknownFallsBackToBin(t *testing.T) {
	assert.Equal(t, "bin", extensionForContentType("application/x-mystery"))
}
