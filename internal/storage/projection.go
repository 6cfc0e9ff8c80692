package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezonia/invoice-processor/internal/model"
)

// ProjectionRefresher rebuilds the per-entity materialized review
// projections after underlying writes. Refreshes for different
// entities may run concurrently, but a single entity's refresh is
// serialized with a per-entity mutex — Postgres would otherwise
// error on two overlapping REFRESH statements against the same view.
type ProjectionRefresher struct {
	pool *pgxpool.Pool

	corpMu     sync.Mutex
	solePropMu sync.Mutex
}

// NewProjectionRefresher wraps an existing pool. The pool is owned by
// the caller.
func NewProjectionRefresher(pool *pgxpool.Pool) *ProjectionRefresher {
	return &ProjectionRefresher{pool: pool}
}

// Refresh rebuilds the entity's review projection view. CONCURRENTLY
// keeps the view readable while it rebuilds, so the review UI never
// sees an empty queue mid-refresh.
func (p *ProjectionRefresher) Refresh(ctx context.Context, entity model.Entity) error {
	schema, err := schemaFor(entity)
	if err != nil {
		return err
	}

	mu := &p.corpMu
	if entity == model.EntitySoleProp {
		mu = &p.solePropMu
	}
	mu.Lock()
	defer mu.Unlock()

	_, err = p.pool.Exec(ctx, fmt.Sprintf(
		`REFRESH MATERIALIZED VIEW CONCURRENTLY %s.view_review_receipt_line_items`, schema,
	))
	if err != nil {
		return fmt.Errorf("refresh review projection for %s: %w", entity, err)
	}
	return nil
}
