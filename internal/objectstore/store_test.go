package objectstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/model"
)

func TestVendorSlug(t *testing.T) {
	assert.Equal(t, "costco-wholesale", VendorSlug("Costco Wholesale"))
	assert.Equal(t, "gfs-canada", VendorSlug("GFS Canada!!"))
	assert.Equal(t, "a-b-c", VendorSlug("  A & B / C  "))
}

func TestInitialKey(t *testing.T) {
	key := initialKey(model.EntityCorp, "abc-123", "jpg", FileOriginal)
	assert.Equal(t, "corp/abc-123/original.jpg", key)
}

func TestFinalDir(t *testing.T) {
	date := time.Date(2023, 9, 8, 0, 0, 0, 0, time.UTC)
	dir := finalDir(model.EntitySoleProp, "Costco Wholesale", date, decimal.RequireFromString("72.53"))
	assert.Equal(t, "soleprop/costco-wholesale/2023-09-08_72.53", dir)
}

func TestSiblingKey(t *testing.T) {
	key := siblingKey("corp/abc-123/original.jpg", FileThumbnail)
	assert.Equal(t, "corp/abc-123/thumbnail.jpg", key)
}
