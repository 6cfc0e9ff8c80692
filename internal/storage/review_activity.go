package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezonia/invoice-processor/internal/model"
)

// ReviewActivityStore appends audit records of review-queue actions.
// Rows are never updated or deleted once written.
type ReviewActivityStore struct {
	db DB
}

// NewReviewActivityStore wraps an existing pool.
func NewReviewActivityStore(pool *pgxpool.Pool) *ReviewActivityStore {
	return &ReviewActivityStore{db: pool}
}

// WithTx returns a store whose statements all run on tx, so an audit
// row commits or rolls back together with the state change it records.
func (s *ReviewActivityStore) WithTx(tx pgx.Tx) *ReviewActivityStore {
	return &ReviewActivityStore{db: tx}
}

// Append inserts one audit record, assigning it a fresh ID if it
// doesn't already have one.
func (s *ReviewActivityStore) Append(ctx context.Context, a *model.ReviewActivity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	oldValues, err := json.Marshal(a.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newValues, err := json.Marshal(a.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO review_activity
			(id, reviewable_id, reviewable_type, entity, action, performed_by,
			 old_values, new_values, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.ReviewableID, a.ReviewableType, a.Entity, a.Action, a.PerformedBy,
		oldValues, newValues, a.Reason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("append review activity: %w", err)
	}
	return nil
}

// ForReviewable returns the full audit trail for one reviewable,
// oldest first.
func (s *ReviewActivityStore) ForReviewable(ctx context.Context, reviewableID string) ([]*model.ReviewActivity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, reviewable_id, reviewable_type, entity, action, performed_by,
		       old_values, new_values, reason, created_at
		FROM review_activity
		WHERE reviewable_id = $1
		ORDER BY created_at ASC
	`, reviewableID)
	if err != nil {
		return nil, fmt.Errorf("query review activity: %w", err)
	}
	defer rows.Close()

	var activities []*model.ReviewActivity
	for rows.Next() {
		var a model.ReviewActivity
		var oldValues, newValues []byte
		if err := rows.Scan(&a.ID, &a.ReviewableID, &a.ReviewableType, &a.Entity, &a.Action,
			&a.PerformedBy, &oldValues, &newValues, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review activity: %w", err)
		}
		if len(oldValues) > 0 {
			if err := json.Unmarshal(oldValues, &a.OldValues); err != nil {
				return nil, fmt.Errorf("unmarshal old_values: %w", err)
			}
		}
		if len(newValues) > 0 {
			if err := json.Unmarshal(newValues, &a.NewValues); err != nil {
				return nil, fmt.Errorf("unmarshal new_values: %w", err)
			}
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}
