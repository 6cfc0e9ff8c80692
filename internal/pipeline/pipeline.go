// Package pipeline orchestrates one receipt through the full ingestion
// chain: Storage → OCR → Vendor Dispatch → Parser → Categorization →
// Repository → Review projection. A Pipeline is built once per worker
// process and reused across every task it dequeues; nothing in it is
// per-receipt state, so it's safe for concurrent use across receipts
// (stages within one receipt are strictly sequential).
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/categorize"
	"github.com/rezonia/invoice-processor/internal/llm"
	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/objectstore"
	"github.com/rezonia/invoice-processor/internal/ocr"
	"github.com/rezonia/invoice-processor/internal/parser"
	"github.com/rezonia/invoice-processor/internal/skucache"
	"github.com/rezonia/invoice-processor/internal/storage"
	"github.com/rezonia/invoice-processor/internal/vendor"
)

// subtotalMismatchTolerance mirrors the receipt-level arithmetic
// tolerance for the line-sum-vs-subtotal comparison.
var subtotalMismatchTolerance = decimal.RequireFromString("0.02")

// WebLookup fetches supplementary context about a SKU/description from
// the open web, consumed by the Item Recognizer's prompt. Left disabled
// by default (CATEGORIZATION_WEB_LOOKUP_ENABLED); a failure here
// degrades to an empty context string rather than failing the line.
type WebLookup interface {
	Lookup(ctx context.Context, vendorCanonical, sku, description string) (string, error)
}

// NoopWebLookup never performs a lookup; it's the default when the web
// lookup feature is disabled.
type NoopWebLookup struct{}

func (NoopWebLookup) Lookup(ctx context.Context, vendorCanonical, sku, description string) (string, error) {
	return "", nil
}

// Config carries the per-stage deadlines and task-level limits.
type Config struct {
	OCRStageTimeout    time.Duration
	LLMCallTimeout     time.Duration
	WebLookupTimeout   time.Duration
	WebLookupEnabled   bool
	TaskSoftLimit      time.Duration
	TaskHardLimit      time.Duration
	MaxPDFPages        int
	LLMInputRatePer1K  float64
	LLMOutputRatePer1K float64

	// CapitalizationThreshold is the line total at or above which an
	// equipment line books to the fixed-asset account.
	CapitalizationThreshold decimal.Decimal
}

// DefaultConfig returns the stated production defaults.
func DefaultConfig() Config {
	return Config{
		OCRStageTimeout:  60 * time.Second,
		LLMCallTimeout:   30 * time.Second,
		WebLookupTimeout: 5 * time.Second,
		WebLookupEnabled: false,
		TaskSoftLimit:    9 * time.Minute,
		TaskHardLimit:    10 * time.Minute,
		MaxPDFPages:      10,
		LLMInputRatePer1K:  0.003,
		LLMOutputRatePer1K: 0.015,
		CapitalizationThreshold: decimal.RequireFromString("2500.00"),
	}
}

// Pipeline wires every stage's collaborating component.
type Pipeline struct {
	ocrEngine   *ocr.Engine
	dispatcher  *vendor.Dispatcher
	registry    *vendor.Registry
	extractor   *llm.Extractor
	cache       *skucache.Store
	receipts    *storage.ReceiptRepository
	vendors     *storage.VendorRegistryStore
	objects     *objectstore.Store
	projections *storage.ProjectionRefresher
	webLookup   WebLookup
	cfg         Config
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithLLMExtractor sets the Item Recognizer. A nil extractor is valid —
// every line then categorizes as unknown/failed, same as an extractor
// call that errors.
func WithLLMExtractor(e *llm.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithWebLookup overrides the default no-op web lookup.
func WithWebLookup(w WebLookup) Option {
	return func(p *Pipeline) { p.webLookup = w }
}

// WithConfig overrides the default stage deadlines.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithProjectionRefresher makes the pipeline refresh the entity's
// materialized review projection after each receipt commits. Nil (the
// default) skips the refresh, which unit tests rely on.
func WithProjectionRefresher(r *storage.ProjectionRefresher) Option {
	return func(p *Pipeline) { p.projections = r }
}

// NewPipeline builds a Pipeline from its required storage and domain
// collaborators plus any options.
func NewPipeline(
	receipts *storage.ReceiptRepository,
	cache *skucache.Store,
	vendors *storage.VendorRegistryStore,
	objects *objectstore.Store,
	registry *vendor.Registry,
	dispatcher *vendor.Dispatcher,
	ocrEngine *ocr.Engine,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		ocrEngine:  ocrEngine,
		dispatcher: dispatcher,
		registry:   registry,
		cache:      cache,
		receipts:   receipts,
		vendors:    vendors,
		objects:    objects,
		webLookup:  NoopWebLookup{},
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Outcome is everything Process produces for one receipt: the stored
// domain objects. Success is signalled by Process's error return alone
// (a stage that degraded gracefully — e.g. failed categorization on one
// line — still returns an Outcome; only an error return means the task
// should retry).
type Outcome struct {
	Receipt *model.Receipt
	Lines   []*model.ReceiptLine
}

// Process runs one uploaded file through the entire pipeline and
// persists the result. objectKey is the already-uploaded original's
// initial key; filename is used only to pick an OCR strategy and
// preserve the file extension through relocation.
func (p *Pipeline) Process(ctx context.Context, entity model.Entity, source model.Source, objectKey, filename string, data []byte) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TaskHardLimit)
	defer cancel()

	receiptID := uuid.New()
	contentHash := contentHash(data)

	if existingID, found, err := p.receipts.FindByContentHash(ctx, entity, contentHash); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "dedup_check_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("content-hash dedup check failed, processing anyway")
	} else if found {
		return p.storeDuplicate(ctx, entity, source, receiptID, existingID, contentHash, objectKey)
	}

	ocrResult, err := p.runOCR(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("ocr stage: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "bin"
	}

	perceptualHash := ""
	if ocr.IsImageExtension("." + ext) {
		perceptualHash = p.deriveImages(ctx, receiptID, objectKey, ext, data)
	}

	vendorRaw := firstNonBlankLine(ocrResult.Text)
	vendorCanonical := p.registry.Normalize(vendorRaw)

	normalized, parserName, err := p.dispatcher.Parse(ocrResult.Text, entity)
	if err != nil {
		return nil, fmt.Errorf("parser stage: %w", err)
	}

	receipt := &model.Receipt{
		ID:              receiptID,
		Entity:          entity,
		Source:          source,
		ContentHash:     contentHash,
		PerceptualHash:  perceptualHash,
		PurchaseDate:    normalized.PurchaseDate,
		VendorRaw:       vendorRaw,
		VendorCanonical: vendorCanonical,
		Currency:        normalized.Currency,
		Subtotal:        normalized.Subtotal,
		TaxTotal:        normalized.TaxTotal,
		Total:           normalized.Total,
		InvoiceNumber:   normalized.InvoiceNumber,
		DueDate:         normalized.DueDate,
		IsBill:          normalized.IsBill,
		PaymentTerms:    normalized.PaymentTerms,
		OCRMethod:       ocrResult.Method,
		OCRConfidence:   ocrResult.Confidence,
		ValidationWarnings: normalized.Warnings,
		Status:          model.StatusProcessing,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	for _, note := range normalized.ParsingNotes {
		receipt.AddWarning(model.ValidationWarning{Type: "parsing_note", Message: note})
	}

	if typical := p.registry.TypicalEntity(vendorCanonical); typical != model.TypicalEntityUnknown &&
		typical != model.TypicalEntityBoth && string(typical) != string(entity) {
		receipt.AddWarning(model.ValidationWarning{
			Type:    "entity_mismatch",
			Message: fmt.Sprintf("vendor %s is typically purchased under entity %s", vendorCanonical, typical),
			Data:    map[string]interface{}{"typical_entity": string(typical), "entity": string(entity)},
		})
	}

	lineSum := normalized.LineTotalSum()
	if diff := lineSum.Sub(receipt.Subtotal).Abs(); diff.GreaterThan(subtotalMismatchTolerance) {
		found, _ := lineSum.Float64()
		expected, _ := receipt.Subtotal.Float64()
		receipt.AddWarning(model.NewSubtotalMismatchWarning(found, expected))
	}

	log.Info().Str("stage", "pipeline").Str("receipt_id", receiptID.String()).
		Str("parser", string(parserName)).Str("vendor_canonical", vendorCanonical).
		Msg("parsed receipt")

	lines := p.categorizeLines(ctx, entity, receiptID, vendorCanonical, normalized.Lines)
	for _, l := range lines {
		l.BoundingBox = parser.MatchBoundingBox(l.Description, ocrResult.BoundingBoxes)
		l.CreatedAt = time.Now()
		l.UpdatedAt = time.Now()
	}
	anyRequiresReview := len(receipt.ValidationWarnings) > 0 || parserName == model.ParserGeneric
	for _, l := range lines {
		if l.RequiresReview {
			anyRequiresReview = true
		}
	}
	if anyRequiresReview {
		receipt.Status = model.StatusReviewRequired
	} else {
		receipt.Status = model.StatusApproved
	}

	finalPath, err := p.objects.Relocate(ctx, entity, receiptID.String(), ext, vendorCanonical, receipt.PurchaseDate, receipt.Total)
	if err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "relocate_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("keeping original object key, relocation failed")
		finalPath = objectKey
	}
	receipt.OriginalPath = finalPath

	if err := p.receipts.CreateReceipt(ctx, receipt, lines); err != nil {
		return nil, fmt.Errorf("persist receipt: %w", err)
	}
	p.refreshProjection(ctx, entity, receiptID)

	if err := p.vendors.RecordTransaction(ctx, vendorCanonical, receipt.Total, receipt.PurchaseDate); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "vendor_record_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("vendor registry stats not updated")
	}
	p.registry.RecordTransaction(vendorCanonical, receipt.PurchaseDate)

	return &Outcome{Receipt: receipt, Lines: lines}, nil
}

// storeDuplicate records a re-upload of already-ingested bytes as a
// thin duplicate-status receipt pointing at the original, skipping
// OCR, parsing, and categorization entirely.
func (p *Pipeline) storeDuplicate(ctx context.Context, entity model.Entity, source model.Source, receiptID, existingID uuid.UUID, contentHash, objectKey string) (*Outcome, error) {
	now := time.Now()
	receipt := &model.Receipt{
		ID:           receiptID,
		Entity:       entity,
		Source:       source,
		ContentHash:  contentHash,
		OriginalPath: objectKey,
		Currency:     "CAD",
		Status:       model.StatusDuplicate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	receipt.AddWarning(model.ValidationWarning{
		Type:    "duplicate_upload",
		Message: fmt.Sprintf("identical bytes already ingested as receipt %s", existingID),
		Data:    map[string]interface{}{"duplicate_of": existingID.String()},
	})

	if err := p.receipts.CreateReceipt(ctx, receipt, nil); err != nil {
		return nil, fmt.Errorf("persist duplicate receipt: %w", err)
	}

	log.Info().Str("stage", "pipeline").Str("subcode", "duplicate_upload").
		Str("receipt_id", receiptID.String()).Str("duplicate_of", existingID.String()).
		Msg("duplicate upload short-circuited")

	return &Outcome{Receipt: receipt}, nil
}

// deriveImages computes the perceptual hash and writes the normalized
// preview and thumbnail next to the original. Every step is
// best-effort: a receipt photo that fails to decode still flows
// through OCR and parsing, it just has no preview.
func (p *Pipeline) deriveImages(ctx context.Context, receiptID uuid.UUID, objectKey, ext string, data []byte) string {
	perceptualHash, err := ocr.PerceptualHash(data)
	if err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "phash_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("perceptual hash skipped")
	}

	if preview, err := ocr.NormalizedPreview(data); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "preview_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("normalized preview skipped")
	} else if _, err := p.objects.PutSibling(ctx, objectKey, objectstore.FileNormalized, preview, "image/jpeg"); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "preview_store_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("normalized preview not stored")
	}

	if thumb, err := ocr.Thumbnail(data); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "thumbnail_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("thumbnail skipped")
	} else if _, err := p.objects.PutSibling(ctx, objectKey, objectstore.FileThumbnail, thumb, "image/jpeg"); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "thumbnail_store_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("thumbnail not stored")
	}

	return perceptualHash
}

// refreshProjection is best-effort: the projection catches up on the
// next write if one refresh fails, and the receipt itself is already
// durably committed.
func (p *Pipeline) refreshProjection(ctx context.Context, entity model.Entity, receiptID uuid.UUID) {
	if p.projections == nil {
		return
	}
	if err := p.projections.Refresh(ctx, entity); err != nil {
		log.Warn().Str("stage", "pipeline").Str("subcode", "projection_refresh_failed").
			Str("receipt_id", receiptID.String()).Err(err).Msg("review projection refresh failed")
	}
}

func (p *Pipeline) runOCR(ctx context.Context, filename string, data []byte) (*ocr.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OCRStageTimeout)
	defer cancel()
	return p.ocrEngine.ExtractText(ctx, filename, data)
}

// categorizeLines runs Stage 1 (cache lookup or LLM recognition) and
// Stage 2 (account mapping) for every parsed line. A line that fails to
// categorize is stored with source=failed and requires_review=true
// rather than aborting the receipt.
func (p *Pipeline) categorizeLines(ctx context.Context, entity model.Entity, receiptID uuid.UUID, vendorCanonical string, normalizedLines []vendor.NormalizedLine) []*model.ReceiptLine {
	lines := make([]*model.ReceiptLine, 0, len(normalizedLines))
	for i, nl := range normalizedLines {
		line := newLineFrom(receiptID, entity, i, nl)

		stage1 := p.categorizeOne(ctx, vendorCanonical, line)
		mapping := categorize.MapWithThreshold(stage1.category, line.LineTotal, stage1.confidence, p.cfg.CapitalizationThreshold)

		line.ProductCategory = stage1.category
		line.AccountCode = mapping.AccountCode
		line.Confidence = stage1.confidence
		line.CategorizationSource = stage1.source
		line.AICostUSD = stage1.costUSD
		line.RequiresReview = mapping.RequiresReview || stage1.source == model.SourceFailed

		lines = append(lines, line)
	}
	return lines
}

// stage1Result is what the Item Recognizer stage hands to the account
// mapper: a taxonomy category, its confidence, which path produced it,
// and what the LLM call cost (zero for cache hits and failures).
type stage1Result struct {
	category   string
	confidence float64
	source     model.CategorizationSource
	costUSD    float64
}

func (p *Pipeline) categorizeOne(ctx context.Context, vendorCanonical string, line *model.ReceiptLine) stage1Result {
	if line.VendorSKU != "" {
		if cached, err := p.cache.Get(ctx, vendorCanonical, line.VendorSKU); err != nil {
			log.Warn().Str("stage", "categorize").Str("subcode", "cache_lookup_failed").
				Err(err).Msg("sku cache lookup failed, falling through to LLM")
		} else if cached != nil {
			return stage1Result{category: cached.ProductCategory, confidence: 1.0, source: model.SourceCache}
		}
	}

	if p.extractor == nil {
		return stage1Result{category: "unknown", source: model.SourceFailed}
	}

	webContext := p.lookupWebContext(ctx, vendorCanonical, line.VendorSKU, line.Description)

	llmCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMCallTimeout)
	defer cancel()

	result, usage, err := p.extractor.Recognize(llmCtx, vendorCanonical, line.Description, webContext)
	if err != nil {
		log.Warn().Str("stage", "categorize").Str("subcode", "llm_call_failed").
			Str("vendor_sku", line.VendorSKU).Err(err).Msg("item recognizer call failed")
		return stage1Result{category: "unknown", source: model.SourceFailed}
	}

	cost := float64(usage.InputTokens)/1000*p.cfg.LLMInputRatePer1K +
		float64(usage.OutputTokens)/1000*p.cfg.LLMOutputRatePer1K

	if line.VendorSKU != "" && result.Category != "unknown" {
		userConfidence := result.Confidence
		if _, err := p.cache.Upsert(ctx, vendorCanonical, line.VendorSKU, result.NormalizedDescription,
			result.Category, p.accountCodeForCache(result.Category, line.LineTotal), &userConfidence, time.Now()); err != nil {
			log.Warn().Str("stage", "categorize").Str("subcode", "cache_upsert_failed").
				Err(err).Msg("sku cache write failed")
		}
	}

	return stage1Result{category: result.Category, confidence: result.Confidence, source: model.SourceAI, costUSD: cost}
}

// accountCodeForCache mirrors the account mapper's decision so the
// cache stores the same account a fresh Map(category, lineTotal, ...)
// call would produce, without re-deriving confidence gating here (the
// pipeline calls categorize.Map again on every line to get the final
// account + review flag).
func (p *Pipeline) accountCodeForCache(category string, lineTotal decimal.Decimal) string {
	mapping := categorize.MapWithThreshold(category, lineTotal, 1.0, p.cfg.CapitalizationThreshold)
	return mapping.AccountCode
}

func (p *Pipeline) lookupWebContext(ctx context.Context, vendorCanonical, sku, description string) string {
	if !p.cfg.WebLookupEnabled {
		return ""
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.cfg.WebLookupTimeout)
	defer cancel()

	webContext, err := p.webLookup.Lookup(lookupCtx, vendorCanonical, sku, description)
	if err != nil {
		log.Warn().Str("stage", "categorize").Str("subcode", "web_lookup_failed").
			Err(err).Msg("vendor website lookup failed, continuing without context")
		return ""
	}
	return webContext
}

func newLineFrom(receiptID uuid.UUID, entity model.Entity, index int, nl vendor.NormalizedLine) *model.ReceiptLine {
	line := model.NewReceiptLine(receiptID, entity, index)
	line.LineIndex = nl.LineIndex
	line.LineType = nl.LineType
	line.RawText = nl.RawText
	line.VendorSKU = nl.VendorSKU
	line.UPC = nl.UPC
	line.Description = nl.Description
	line.Quantity = nl.Quantity
	line.UnitPrice = nl.UnitPrice
	line.LineTotal = nl.LineTotal
	line.TaxFlag = nl.TaxFlag
	line.TaxAmount = nl.TaxAmount
	return line
}

func firstNonBlankLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return "UNKNOWN"
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
