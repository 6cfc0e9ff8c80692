package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx. Stores
// hold a DB so the review queue can re-scope them onto an open
// transaction with WithTx and have every statement join it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// marshalBoundingBox and unmarshalBoundingBox round-trip a line's
// optional bounding box through the JSON column receipt_lines stores
// it in, keyed left/top/width/height/confidence/text.
func marshalBoundingBox(b *model.BoundingBox) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func unmarshalBoundingBox(raw []byte) (*model.BoundingBox, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var b model.BoundingBox
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bounding box: %w", err)
	}
	return &b, nil
}

// ReceiptRepository is the entity-scoped persistence layer for receipts
// and their lines. The entity on each receipt determines which
// Postgres schema ("corp" or "soleprop") the query targets.
type ReceiptRepository struct {
	db   DB
	pool *pgxpool.Pool
}

// NewReceiptRepository wraps an existing pool. The pool is owned by
// the caller.
func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: pool, pool: pool}
}

// WithTx returns a repository whose statements all run on tx. The
// returned repository cannot begin its own transactions; CreateReceipt
// must be called on the pool-backed original.
func (r *ReceiptRepository) WithTx(tx pgx.Tx) *ReceiptRepository {
	return &ReceiptRepository{db: tx}
}

// CreateReceipt persists a parsed receipt and appends its lines in one
// transaction. A single line-insert failure is logged and skipped —
// losing one line's categorization is preferable to losing the whole
// receipt — but a transport-level error (the connection itself failing)
// rolls back everything.
func (r *ReceiptRepository) CreateReceipt(ctx context.Context, receipt *model.Receipt, lines []*model.ReceiptLine) error {
	schema, err := schemaFor(receipt.Entity)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, source, content_hash, perceptual_hash, original_path,
			purchase_date, vendor_raw, vendor_canonical, currency,
			subtotal, tax_total, total, invoice_number, due_date, is_bill,
			payment_terms, ocr_method, ocr_confidence, validation_warnings,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22
		)
	`, qualify(schema, "receipts")),
		receipt.ID, receipt.Source, receipt.ContentHash, receipt.PerceptualHash,
		receipt.OriginalPath, receipt.PurchaseDate, receipt.VendorRaw,
		receipt.VendorCanonical, receipt.Currency, receipt.Subtotal,
		receipt.TaxTotal, receipt.Total, receipt.InvoiceNumber, receipt.DueDate,
		receipt.IsBill, receipt.PaymentTerms, receipt.OCRMethod, receipt.OCRConfidence,
		receipt.ValidationWarnings, receipt.Status, receipt.CreatedAt, receipt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	for _, line := range lines {
		// Each line runs under its own savepoint: a failed statement
		// would otherwise abort the whole Postgres transaction.
		sp, err := tx.Begin(ctx)
		if err == nil {
			if err = r.insertLine(ctx, sp, schema, line); err != nil {
				_ = sp.Rollback(ctx)
			} else {
				err = sp.Commit(ctx)
			}
		}
		if err != nil {
			log.Warn().Str("stage", "storage").Str("subcode", "line_insert_failed").
				Str("receipt_id", receipt.ID.String()).Int("line_index", line.LineIndex).
				Err(err).Msg("skipping unstorable line, continuing batch")
			continue
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit receipt transaction: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) insertLine(ctx context.Context, tx pgx.Tx, schema string, line *model.ReceiptLine) error {
	boundingBox, err := marshalBoundingBox(line.BoundingBox)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, receipt_id, line_index, line_type, raw_text, vendor_sku, upc,
			description, quantity, unit_price, line_total, tax_flag, tax_amount,
			account_code, product_category, confidence, categorization_source,
			ai_cost_usd, bounding_box, review_status, requires_review,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23
		)
	`, qualify(schema, "receipt_lines")),
		line.ID, line.ReceiptID, line.LineIndex, line.LineType, line.RawText,
		line.VendorSKU, line.UPC, line.Description, line.Quantity, line.UnitPrice,
		line.LineTotal, line.TaxFlag, line.TaxAmount, line.AccountCode,
		line.ProductCategory, line.Confidence, line.CategorizationSource, line.AICostUSD,
		boundingBox, line.ReviewStatus, line.RequiresReview, line.CreatedAt, line.UpdatedAt,
	)
	return err
}

// LinesForReceipt retrieves every line belonging to a receipt, ordered
// by line_index.
func (r *ReceiptRepository) LinesForReceipt(ctx context.Context, entity model.Entity, receiptID uuid.UUID) ([]*model.ReceiptLine, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, receipt_id, line_index, line_type, raw_text, vendor_sku, upc,
		       description, quantity, unit_price, line_total, tax_flag, tax_amount,
		       account_code, product_category, confidence, categorization_source,
		       ai_cost_usd, bounding_box, review_status, requires_review,
		       created_at, updated_at
		FROM %s WHERE receipt_id = $1 ORDER BY line_index
	`, qualify(schema, "receipt_lines")), receiptID)
	if err != nil {
		return nil, fmt.Errorf("query receipt lines: %w", err)
	}
	defer rows.Close()

	var lines []*model.ReceiptLine
	for rows.Next() {
		var l model.ReceiptLine
		var boundingBox []byte
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.LineIndex, &l.LineType, &l.RawText,
			&l.VendorSKU, &l.UPC, &l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal,
			&l.TaxFlag, &l.TaxAmount, &l.AccountCode, &l.ProductCategory, &l.Confidence,
			&l.CategorizationSource, &l.AICostUSD, &boundingBox, &l.ReviewStatus,
			&l.RequiresReview, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt line: %w", err)
		}
		if l.BoundingBox, err = unmarshalBoundingBox(boundingBox); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// GetReceipt fetches a single receipt by id, without its lines.
func (r *ReceiptRepository) GetReceipt(ctx context.Context, entity model.Entity, id uuid.UUID) (*model.Receipt, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, source, content_hash, perceptual_hash, original_path,
		       purchase_date, vendor_raw, vendor_canonical, currency,
		       subtotal, tax_total, total, invoice_number, due_date, is_bill,
		       payment_terms, ocr_method, ocr_confidence, validation_warnings,
		       status, created_at, updated_at
		FROM %s WHERE id = $1
	`, qualify(schema, "receipts")), id)

	var rcpt model.Receipt
	rcpt.Entity = entity
	if err := row.Scan(&rcpt.ID, &rcpt.Source, &rcpt.ContentHash, &rcpt.PerceptualHash,
		&rcpt.OriginalPath, &rcpt.PurchaseDate, &rcpt.VendorRaw, &rcpt.VendorCanonical,
		&rcpt.Currency, &rcpt.Subtotal, &rcpt.TaxTotal, &rcpt.Total, &rcpt.InvoiceNumber,
		&rcpt.DueDate, &rcpt.IsBill, &rcpt.PaymentTerms, &rcpt.OCRMethod, &rcpt.OCRConfidence,
		&rcpt.ValidationWarnings, &rcpt.Status, &rcpt.CreatedAt, &rcpt.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("receipt %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	return &rcpt, nil
}

// UpdateLineCategorization updates a line's categorization fields
// (product_category, account_code, confidence, categorization_source,
// requires_review) without touching anything else on the line.
func (r *ReceiptRepository) UpdateLineCategorization(ctx context.Context, entity model.Entity, lineID uuid.UUID, category, accountCode string, confidence float64, source model.CategorizationSource, requiresReview bool) error {
	schema, err := schemaFor(entity)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET product_category = $2, account_code = $3, confidence = $4,
		              categorization_source = $5, requires_review = $6
		WHERE id = $1
	`, qualify(schema, "receipt_lines")), lineID, category, accountCode, confidence, source, requiresReview)
	if err != nil {
		return fmt.Errorf("update line categorization: %w", err)
	}
	return nil
}

// MarkLineReviewed stamps review_status, reviewer_id, and reviewed_at.
func (r *ReceiptRepository) MarkLineReviewed(ctx context.Context, entity model.Entity, lineID uuid.UUID, status model.LineReviewStatus, reviewerID string, reviewedAt time.Time) error {
	schema, err := schemaFor(entity)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET review_status = $2, requires_review = false,
		              reviewer_id = $3, reviewed_at = $4
		WHERE id = $1
	`, qualify(schema, "receipt_lines")), lineID, status, reviewerID, reviewedAt)
	if err != nil {
		return fmt.Errorf("mark line reviewed: %w", err)
	}
	return nil
}

// LinesRequiringReview lists lines flagged for review, paginated.
func (r *ReceiptRepository) LinesRequiringReview(ctx context.Context, entity model.Entity, limit, offset int) ([]*model.ReceiptLine, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, receipt_id, line_index, line_type, raw_text, vendor_sku, upc,
		       description, quantity, unit_price, line_total, tax_flag, tax_amount,
		       account_code, product_category, confidence, categorization_source,
		       review_status, requires_review, created_at, updated_at
		FROM %s WHERE requires_review = true
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, qualify(schema, "receipt_lines")), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query lines requiring review: %w", err)
	}
	defer rows.Close()

	var lines []*model.ReceiptLine
	for rows.Next() {
		var l model.ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.LineIndex, &l.LineType, &l.RawText,
			&l.VendorSKU, &l.UPC, &l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal,
			&l.TaxFlag, &l.TaxAmount, &l.AccountCode, &l.ProductCategory, &l.Confidence,
			&l.CategorizationSource, &l.ReviewStatus, &l.RequiresReview, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// LineWithVendor fetches a single line together with its parent
// receipt's canonical vendor name, used by the review queue when a
// `correct` action needs to write back to the SKU cache.
func (r *ReceiptRepository) LineWithVendor(ctx context.Context, entity model.Entity, lineID uuid.UUID) (*model.ReceiptLine, string, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return nil, "", err
	}

	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT rl.id, rl.receipt_id, rl.line_index, rl.line_type, rl.raw_text,
		       rl.vendor_sku, rl.upc, rl.description, rl.quantity, rl.unit_price,
		       rl.line_total, rl.tax_flag, rl.tax_amount, rl.account_code,
		       rl.product_category, rl.confidence, rl.categorization_source,
		       rl.review_status, rl.requires_review, rl.created_at, rl.updated_at,
		       r.vendor_canonical
		FROM %s rl
		JOIN %s r ON r.id = rl.receipt_id
		WHERE rl.id = $1
	`, qualify(schema, "receipt_lines"), qualify(schema, "receipts")), lineID)

	var l model.ReceiptLine
	var vendorCanonical string
	if err := row.Scan(&l.ID, &l.ReceiptID, &l.LineIndex, &l.LineType, &l.RawText,
		&l.VendorSKU, &l.UPC, &l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal,
		&l.TaxFlag, &l.TaxAmount, &l.AccountCode, &l.ProductCategory, &l.Confidence,
		&l.CategorizationSource, &l.ReviewStatus, &l.RequiresReview, &l.CreatedAt, &l.UpdatedAt,
		&vendorCanonical); err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", fmt.Errorf("line %s not found: %w", lineID, err)
		}
		return nil, "", fmt.Errorf("fetch line with vendor: %w", err)
	}
	return &l, vendorCanonical, nil
}

// LinesBySKU queries historical lines for a vendor SKU, used by the
// categorization stage for consistency checks against past extractions.
func (r *ReceiptRepository) LinesBySKU(ctx context.Context, entity model.Entity, vendorCanonical, sku string, limit int) ([]*model.ReceiptLine, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT rl.id, rl.receipt_id, rl.line_index, rl.line_type, rl.raw_text,
		       rl.vendor_sku, rl.upc, rl.description, rl.quantity, rl.unit_price,
		       rl.line_total, rl.tax_flag, rl.tax_amount, rl.account_code,
		       rl.product_category, rl.confidence, rl.categorization_source,
		       rl.review_status, rl.requires_review, rl.created_at, rl.updated_at
		FROM %s rl
		JOIN %s r ON r.id = rl.receipt_id
		WHERE rl.vendor_sku = $1 AND r.vendor_canonical = $2
		ORDER BY rl.created_at DESC
		LIMIT $3
	`, qualify(schema, "receipt_lines"), qualify(schema, "receipts")), sku, vendorCanonical, limit)
	if err != nil {
		return nil, fmt.Errorf("query lines by sku: %w", err)
	}
	defer rows.Close()

	var lines []*model.ReceiptLine
	for rows.Next() {
		var l model.ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.LineIndex, &l.LineType, &l.RawText,
			&l.VendorSKU, &l.UPC, &l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal,
			&l.TaxFlag, &l.TaxAmount, &l.AccountCode, &l.ProductCategory, &l.Confidence,
			&l.CategorizationSource, &l.ReviewStatus, &l.RequiresReview, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// FindByContentHash returns the id of an already-stored receipt with
// the same SHA-256 content hash, or (uuid.Nil, false) when the bytes
// have never been seen in this entity's partition. Duplicate-status
// receipts are excluded so a re-upload of a duplicate still points at
// the one real record.
func (r *ReceiptRepository) FindByContentHash(ctx context.Context, entity model.Entity, contentHash string) (uuid.UUID, bool, error) {
	schema, err := schemaFor(entity)
	if err != nil {
		return uuid.Nil, false, err
	}

	var id uuid.UUID
	err = r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id FROM %s
		WHERE content_hash = $1 AND status <> 'duplicate'
		ORDER BY created_at
		LIMIT 1
	`, qualify(schema, "receipts")), contentHash).Scan(&id)
	if err == pgx.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find receipt by content hash: %w", err)
	}
	return id, true, nil
}
