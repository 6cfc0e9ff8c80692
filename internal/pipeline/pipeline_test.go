package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

func TestFirstNonBlankLine_SkipsLeadingBlanks(t *testing.T) {
	text := "\n\n   \nCOSTCO WHOLESALE\n123 Main St\n"
	assert.Equal(t, "COSTCO WHOLESALE", firstNonBlankLine(text))
}

func TestFirstNonBlankLine_AllBlankFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", firstNonBlankLine("\n  \n\t\n"))
}

func TestContentHash_Deterministic(t *testing.T) {
	a := contentHash([]byte("same bytes"))
	b := contentHash([]byte("same bytes"))
	c := contentHash([]byte("different bytes"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewLineFrom_CopiesNormalizedFields(t *testing.T) {
	receiptID := uuid.New()
	nl := vendor.NormalizedLine{
		LineIndex:   2,
		LineType:    model.LineTypeItem,
		RawText:     "2 BANANAS 3.98",
		VendorSKU:   "4011",
		Description: "BANANAS",
		Quantity:    decimal.RequireFromString("2"),
		UnitPrice:   decimal.RequireFromString("1.99"),
		LineTotal:   decimal.RequireFromString("3.98"),
		TaxFlag:     model.TaxZeroRated,
	}

	line := newLineFrom(receiptID, model.EntityCorp, 2, nl)

	assert.Equal(t, receiptID, line.ReceiptID)
	assert.Equal(t, model.EntityCorp, line.Entity)
	assert.Equal(t, "4011", line.VendorSKU)
	assert.True(t, line.LineTotal.Equal(decimal.RequireFromString("3.98")))
	assert.Equal(t, model.TaxZeroRated, line.TaxFlag)
	assert.Equal(t, model.ReviewPending, line.ReviewStatus)
}

func TestDefaultConfig_MatchesStageDeadlines(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.OCRStageTimeout)
	assert.Equal(t, 30*time.Second, cfg.LLMCallTimeout)
	assert.Equal(t, 5*time.Second, cfg.WebLookupTimeout)
	assert.Equal(t, 10*time.Minute, cfg.TaskHardLimit)
	assert.False(t, cfg.WebLookupEnabled)
}

func TestAccountCodeForCache_MatchesAccountMapper(t *testing.T) {
	p := &Pipeline{cfg: DefaultConfig()}
	code := p.accountCodeForCache("food_produce", decimal.RequireFromString("3.98"))
	assert.Equal(t, "5001", code)
}

func TestAccountCodeForCache_UnknownCategoryFallsBack(t *testing.T) {
	p := &Pipeline{cfg: DefaultConfig()}
	code := p.accountCodeForCache("not_a_real_category", decimal.RequireFromString("10.00"))
	assert.Equal(t, "9100", code)
}

func TestNoopWebLookup_AlwaysEmpty(t *testing.T) {
	result, err := NoopWebLookup{}.Lookup(context.Background(), "COSTCO", "4011", "bananas")
	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestPipeline_LookupWebContext_DisabledByDefault(t *testing.T) {
	p := &Pipeline{webLookup: NoopWebLookup{}, cfg: DefaultConfig()}
	got := p.lookupWebContext(context.Background(), "COSTCO", "4011", "bananas")
	assert.Empty(t, got)
}
