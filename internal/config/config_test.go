package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoEnvOrFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, OCRBackendAuto, cfg.OCRBackend)
	assert.Equal(t, 0.96, cfg.TesseractConfidenceThreshold)
	assert.Equal(t, 10, cfg.MaxPDFPages)
	assert.False(t, cfg.CategorizationWebLookupEnabled)
	assert.Equal(t, 5*time.Second, cfg.CategorizationWebLookupTimeout)
	assert.Equal(t, 2500.00, cfg.CapitalizationThreshold)
	assert.Equal(t, 0.15, cfg.HSTRate)
	assert.Equal(t, 2010, cfg.HSTChangeoverDate.Year())
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.True(t, cfg.TextractFallbackEnabled)
}

func TestOCRBackend_Valid(t *testing.T) {
	assert.True(t, OCRBackendAuto.valid())
	assert.True(t, OCRBackendCloud.valid())
	assert.True(t, OCRBackendLocal.valid())
	assert.False(t, OCRBackend("bogus").valid())
}

func TestLoad_EnvVarOverridesDefault(t *testing.T) {
	t.Setenv("OCR_BACKEND", "local")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, OCRBackendLocal, cfg.OCRBackend)
}

func TestLoad_RejectsUnknownOCRBackend(t *testing.T) {
	t.Setenv("OCR_BACKEND", "quantum")
	_, err := Load()
	assert.Error(t, err)
}
