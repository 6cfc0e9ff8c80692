// Package review implements the generic review queue: a single
// uniform surface over heterogeneous domain records awaiting human
// attention. Today the only reviewable kind is the receipt line item;
// the id format (`type:entity:pk`) leaves room for others later without
// changing this package's API.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/skucache"
	"github.com/rezonia/invoice-processor/internal/storage"
)

// Filters narrows a List call. Zero values mean "no filter" for that
// dimension.
type Filters struct {
	Entity         model.Entity
	Type           model.ReviewableType
	Status         model.LineReviewStatus
	Vendor         string
	Assignee       string
	MinConfidence  *float64
	MaxConfidence  *float64
	From, To       *time.Time
}

// Pagination is a standard limit/offset page request.
type Pagination struct {
	Limit  int
	Offset int
}

// Page is the paginated List response.
type Page struct {
	Items []*model.Reviewable
	Total int
}

// BatchResult is the per-id outcome of a BatchAct call.
type BatchResult struct {
	Success []string
	Failed  map[string]string // id -> error message
}

// Metrics is a point-in-time snapshot of queue health.
type Metrics struct {
	PendingCount    int
	ApprovedToday   int
	RejectedToday   int
	ConfidenceBands map[string]int // "0.0-0.6", "0.6-0.8", "0.8-0.95", "0.95-1.0"
	CacheHitRate    float64
}

// Queue is the pgx-backed review queue, built on top of the entity-scoped
// receipt repository and the shared SKU cache.
type Queue struct {
	pool        *pgxpool.Pool
	receipts    *storage.ReceiptRepository
	cache       *skucache.Store
	activity    *storage.ReviewActivityStore
	projections *storage.ProjectionRefresher
}

// NewQueue wires the queue's collaborating stores. All of them share
// the same pool; the queue itself issues no migrations. projections may
// be nil, in which case Act skips the post-commit refresh.
func NewQueue(pool *pgxpool.Pool, receipts *storage.ReceiptRepository, cache *skucache.Store, activity *storage.ReviewActivityStore, projections *storage.ProjectionRefresher) *Queue {
	return &Queue{pool: pool, receipts: receipts, cache: cache, activity: activity, projections: projections}
}

// List returns a page of reviewables matching the given filters, read
// from the per-entity materialized projection view. Results are always
// scoped to the filter's Entity when one is given; a Queue used across
// both entities is expected to issue one call per entity and merge, since
// each entity's data lives in its own schema.
func (q *Queue) List(ctx context.Context, f Filters, p Pagination) (*Page, error) {
	if f.Entity == "" {
		return nil, fmt.Errorf("review queue List requires an entity filter")
	}
	schema, err := entitySchema(f.Entity)
	if err != nil {
		return nil, err
	}

	where := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "review_status = "+arg(f.Status))
	}
	if f.Vendor != "" {
		where = append(where, "vendor_canonical = "+arg(f.Vendor))
	}
	if f.Assignee != "" {
		where = append(where, "assignee = "+arg(f.Assignee))
	}
	if f.MinConfidence != nil {
		where = append(where, "confidence >= "+arg(*f.MinConfidence))
	}
	if f.MaxConfidence != nil {
		where = append(where, "confidence <= "+arg(*f.MaxConfidence))
	}
	if f.From != nil {
		where = append(where, "created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "created_at <= "+arg(*f.To))
	}

	limit, offset := p.Limit, p.Offset
	if limit <= 0 {
		limit = 50
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s.view_review_receipt_line_items WHERE %s`,
		schema, strings.Join(where, " AND "))
	var total int
	if err := q.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count reviewables: %w", err)
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`
		SELECT id, entity, created_at, source_pk, summary, confidence,
		       requires_review, review_status, assignee, vendor_canonical,
		       purchase_date, line_total
		FROM %s.view_review_receipt_line_items
		WHERE %s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d
	`, schema, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := q.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviewables: %w", err)
	}
	defer rows.Close()

	var items []*model.Reviewable
	for rows.Next() {
		r := &model.Reviewable{Entity: f.Entity, Type: model.ReviewableTypeReceiptLineItem}
		var amount float64
		if err := rows.Scan(&r.ID, &r.Entity, &r.CreatedAt, &r.SourcePK, &r.Summary,
			&r.Confidence, &r.RequiresReview, &r.Status, &r.Assignee, &r.Vendor,
			&r.Date, &amount); err != nil {
			return nil, fmt.Errorf("scan reviewable: %w", err)
		}
		r.Amount = fmt.Sprintf("%.2f", amount)
		items = append(items, r)
	}
	return &Page{Items: items, Total: total}, rows.Err()
}

// Get fetches a single reviewable by its `type:entity:pk` id.
func (q *Queue) Get(ctx context.Context, reviewableID string) (*model.Reviewable, error) {
	typ, entity, pk, err := parseReviewableID(reviewableID)
	if err != nil {
		return nil, err
	}
	if typ != model.ReviewableTypeReceiptLineItem {
		return nil, fmt.Errorf("unsupported reviewable type %q", typ)
	}

	lineID, err := uuid.Parse(pk)
	if err != nil {
		return nil, fmt.Errorf("invalid reviewable pk %q: %w", pk, err)
	}

	line, vendorCanonical, err := q.receipts.LineWithVendor(ctx, entity, lineID)
	if err != nil {
		return nil, err
	}

	return lineToReviewable(line, entity, vendorCanonical), nil
}

// Act performs one of the fixed review actions against a reviewable.
// The state change and its audit row commit in one transaction; the
// entity's materialized projection refreshes after the commit. Payload
// keys are action-specific (see each action's handling below).
func (q *Queue) Act(ctx context.Context, reviewableID string, action model.ReviewAction, payload map[string]interface{}, reason, performedBy string) (*model.Reviewable, error) {
	typ, entity, pk, err := parseReviewableID(reviewableID)
	if err != nil {
		return nil, err
	}
	if typ != model.ReviewableTypeReceiptLineItem {
		return nil, fmt.Errorf("unsupported reviewable type %q", typ)
	}
	lineID, err := uuid.Parse(pk)
	if err != nil {
		return nil, fmt.Errorf("invalid reviewable pk %q: %w", pk, err)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin review action: %w", err)
	}
	defer tx.Rollback(ctx)

	receipts := q.receipts.WithTx(tx)
	cache := q.cache.WithTx(tx)
	activity := q.activity.WithTx(tx)

	before, vendorCanonical, err := receipts.LineWithVendor(ctx, entity, lineID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	oldValues := map[string]interface{}{
		"review_status":    string(before.ReviewStatus),
		"product_category": before.ProductCategory,
		"account_code":     before.AccountCode,
	}
	newValues := map[string]interface{}{}

	switch action {
	case model.ActionApprove:
		if err := receipts.MarkLineReviewed(ctx, entity, lineID, model.ReviewApproved, performedBy, now); err != nil {
			return nil, err
		}
		newValues["review_status"] = string(model.ReviewApproved)

	case model.ActionReject:
		if err := receipts.MarkLineReviewed(ctx, entity, lineID, model.ReviewRejected, performedBy, now); err != nil {
			return nil, err
		}
		newValues["review_status"] = string(model.ReviewRejected)

	case model.ActionCorrect:
		category, _ := payload["product_category"].(string)
		accountCode, _ := payload["account_code"].(string)
		if category == "" || accountCode == "" {
			return nil, fmt.Errorf("correct action requires product_category and account_code")
		}
		if err := receipts.UpdateLineCategorization(ctx, entity, lineID, category, accountCode, 1.0,
			model.SourceManualCorrection, false); err != nil {
			return nil, err
		}
		if err := receipts.MarkLineReviewed(ctx, entity, lineID, model.ReviewApproved, performedBy, now); err != nil {
			return nil, err
		}
		if before.VendorSKU == "" {
			log.Info().Str("stage", "review").Str("subcode", "sku_cache_skip").
				Str("reviewable_id", reviewableID).Msg("correct action has no SKU, cache write skipped")
		} else {
			if _, err := cache.UpsertCorrection(ctx, vendorCanonical, before.VendorSKU, category, accountCode, now); err != nil {
				return nil, fmt.Errorf("propagate correction to sku cache: %w", err)
			}
		}
		newValues["review_status"] = string(model.ReviewApproved)
		newValues["product_category"] = category
		newValues["account_code"] = accountCode

	case model.ActionSnooze:
		if err := receipts.MarkLineReviewed(ctx, entity, lineID, model.ReviewSnoozed, performedBy, now); err != nil {
			return nil, err
		}
		newValues["review_status"] = string(model.ReviewSnoozed)
		if until, ok := payload["until"]; ok {
			newValues["until"] = until
		}

	case model.ActionReassign:
		assignee, _ := payload["assignee"].(string)
		newValues["assignee"] = assignee
		if err := q.reassignLine(ctx, tx, entity, lineID, assignee); err != nil {
			return nil, err
		}

	case model.ActionComment:
		// Comments carry no state change; they exist purely as an
		// activity-log entry.
		newValues["comment"] = payload["comment"]

	case model.ActionRequestInfo:
		if err := receipts.MarkLineReviewed(ctx, entity, lineID, model.ReviewNeedsInfo, performedBy, now); err != nil {
			return nil, err
		}
		newValues["review_status"] = string(model.ReviewNeedsInfo)

	default:
		return nil, fmt.Errorf("unknown review action %q", action)
	}

	if err := activity.Append(ctx, &model.ReviewActivity{
		ReviewableID:   reviewableID,
		ReviewableType: typ,
		Entity:         entity,
		Action:         action,
		PerformedBy:    performedBy,
		OldValues:      oldValues,
		NewValues:      newValues,
		Reason:         reason,
		CreatedAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("append review activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit review action: %w", err)
	}

	if q.projections != nil {
		if err := q.projections.Refresh(ctx, entity); err != nil {
			log.Warn().Str("stage", "review").Str("subcode", "projection_refresh_failed").
				Str("reviewable_id", reviewableID).Err(err).Msg("review projection refresh failed")
		}
	}

	return q.Get(ctx, reviewableID)
}

// BatchAct applies the same action to many reviewables, best-effort —
// one id's failure never aborts the rest.
func (q *Queue) BatchAct(ctx context.Context, ids []string, action model.ReviewAction, payload map[string]interface{}, reason, performedBy string) *BatchResult {
	result := &BatchResult{Failed: map[string]string{}}
	for _, id := range ids {
		if _, err := q.Act(ctx, id, action, payload, reason, performedBy); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result
}

// Metrics reports queue health for an entity, or both entities combined
// when entity is empty.
func (q *Queue) Metrics(ctx context.Context, entity model.Entity) (*Metrics, error) {
	schemas := []string{"corp", "soleprop"}
	if entity != "" {
		s, err := entitySchema(entity)
		if err != nil {
			return nil, err
		}
		schemas = []string{s}
	}

	m := &Metrics{ConfidenceBands: map[string]int{
		"0.0-0.6": 0, "0.6-0.8": 0, "0.8-0.95": 0, "0.95-1.0": 0,
	}}

	var totalLines, totalCacheHits int
	for _, schema := range schemas {
		var pending int
		if err := q.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s.view_review_receipt_line_items WHERE requires_review = true`, schema,
		)).Scan(&pending); err != nil {
			return nil, fmt.Errorf("count pending: %w", err)
		}
		m.PendingCount += pending

		var approved, rejected int
		if err := q.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s.receipt_lines WHERE review_status = 'approved' AND reviewed_at >= date_trunc('day', now())`, schema,
		)).Scan(&approved); err != nil {
			return nil, fmt.Errorf("count approved today: %w", err)
		}
		m.ApprovedToday += approved

		if err := q.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s.receipt_lines WHERE review_status = 'rejected' AND reviewed_at >= date_trunc('day', now())`, schema,
		)).Scan(&rejected); err != nil {
			return nil, fmt.Errorf("count rejected today: %w", err)
		}
		m.RejectedToday += rejected

		rows, err := q.pool.Query(ctx, fmt.Sprintf(`SELECT confidence FROM %s.receipt_lines`, schema))
		if err != nil {
			return nil, fmt.Errorf("query confidences: %w", err)
		}
		for rows.Next() {
			var c float64
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan confidence: %w", err)
			}
			bandConfidence(m.ConfidenceBands, c)
		}
		rows.Close()

		var total, cacheHits int
		if err := q.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s.receipt_lines`, schema,
		)).Scan(&total); err != nil {
			return nil, fmt.Errorf("count total lines: %w", err)
		}
		if err := q.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT count(*) FROM %s.receipt_lines WHERE categorization_source = 'cache'`, schema,
		)).Scan(&cacheHits); err != nil {
			return nil, fmt.Errorf("count cache hits: %w", err)
		}
		totalLines += total
		totalCacheHits += cacheHits
	}

	if totalLines > 0 {
		m.CacheHitRate = float64(totalCacheHits) / float64(totalLines)
	}

	return m, nil
}

func bandConfidence(bands map[string]int, c float64) {
	switch {
	case c >= 0.95:
		bands["0.95-1.0"]++
	case c >= 0.80:
		bands["0.8-0.95"]++
	case c >= 0.60:
		bands["0.6-0.8"]++
	default:
		bands["0.0-0.6"]++
	}
}

func (q *Queue) reassignLine(ctx context.Context, tx storage.DB, entity model.Entity, lineID uuid.UUID, assignee string) error {
	schema, err := entitySchema(entity)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(
		`UPDATE %s.receipt_lines SET assignee = $2 WHERE id = $1`, schema,
	), lineID, assignee)
	if err != nil {
		return fmt.Errorf("reassign line: %w", err)
	}
	return nil
}

func parseReviewableID(id string) (model.ReviewableType, model.Entity, string, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed reviewable id %q", id)
	}
	entity := model.Entity(parts[1])
	if !entity.Valid() {
		return "", "", "", fmt.Errorf("unknown entity in reviewable id %q", id)
	}
	return model.ReviewableType(parts[0]), entity, parts[2], nil
}

func entitySchema(entity model.Entity) (string, error) {
	switch entity {
	case model.EntityCorp:
		return "corp", nil
	case model.EntitySoleProp:
		return "soleprop", nil
	default:
		return "", fmt.Errorf("unknown entity %q", entity)
	}
}

func lineToReviewable(line *model.ReceiptLine, entity model.Entity, vendorCanonical string) *model.Reviewable {
	return &model.Reviewable{
		ID:             model.ReviewableID(model.ReviewableTypeReceiptLineItem, entity, line.ID.String()),
		Type:           model.ReviewableTypeReceiptLineItem,
		Entity:         entity,
		CreatedAt:      line.CreatedAt,
		SourceTable:    "receipt_lines",
		SourceSchema:   string(entity),
		SourcePK:       line.ID.String(),
		Summary:        fmt.Sprintf("%s — %s", vendorCanonical, line.Description),
		Details: map[string]interface{}{
			"raw_text":         line.RawText,
			"vendor_sku":       line.VendorSKU,
			"product_category": line.ProductCategory,
			"account_code":     line.AccountCode,
			"line_total":       line.LineTotal.String(),
		},
		Confidence:     line.Confidence,
		RequiresReview: line.RequiresReview,
		Status:         line.ReviewStatus,
		Vendor:         vendorCanonical,
		Amount:         line.LineTotal.StringFixed(2),
	}
}
