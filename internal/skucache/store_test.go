package skucache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/skucache"
)

func TestLookupHash_IsDeterministic(t *testing.T) {
	a := skucache.LookupHash("GFS CANADA", "1234567")
	b := skucache.LookupHash("GFS CANADA", "1234567")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestLookupHash_DistinguishesVendorFromSKU(t *testing.T) {
	a := skucache.LookupHash("GFS CANADA", "1234567")
	b := skucache.LookupHash("GFS", "CANADA1234567")
	assert.NotEqual(t, a, b)
}

func TestLookupHash_DifferentSKUDifferentHash(t *testing.T) {
	a := skucache.LookupHash("GFS CANADA", "1234567")
	b := skucache.LookupHash("GFS CANADA", "7654321")
	assert.NotEqual(t, a, b)
}
