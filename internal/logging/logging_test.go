package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInit_SetsRecognizedLevel(t *testing.T) {
	Init("warn", false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInit_UnrecognizedLevelFallsBackToInfo(t *testing.T) {
	Init("not-a-level", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
