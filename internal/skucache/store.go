// Package skucache implements the cross-entity SKU cache: a
// single shared table of (canonical vendor, SKU) -> categorization,
// keyed by a lookup hash the store computes internally.
package skucache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezonia/invoice-processor/internal/model"
)

// LookupHash computes the cache's primary key: SHA-256 of
// "canonical_vendor||sku".
// Callers never supply this directly — it is always derived here.
func LookupHash(vendorCanonical, sku string) string {
	sum := sha256.Sum256([]byte(vendorCanonical + "||" + sku))
	return hex.EncodeToString(sum[:])
}

// db is the query surface the cache needs, satisfied by both
// *pgxpool.Pool and pgx.Tx.
type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the pgx-backed SKU cache.
type Store struct {
	db db
}

// NewStore wraps an existing pool. The pool is owned by the caller.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// WithTx returns a cache whose statements all run on tx, so a
// correction write commits together with the review action that
// triggered it.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// Get looks up a cached entry by (vendor_canonical, sku). It returns
// (nil, nil) on a cache miss, never an error.
func (s *Store) Get(ctx context.Context, vendorCanonical, sku string) (*model.ProductMapping, error) {
	hash := LookupHash(vendorCanonical, sku)

	row := s.db.QueryRow(ctx, `
		SELECT lookup_hash, vendor_canonical, sku, normalized_description,
		       product_category, account_code, user_confidence, times_seen,
		       last_seen, created_at
		FROM product_mappings
		WHERE lookup_hash = $1
	`, hash)

	var m model.ProductMapping
	err := row.Scan(&m.LookupHash, &m.VendorCanonical, &m.SKU, &m.NormalizedDescription,
		&m.ProductCategory, &m.AccountCode, &m.UserConfidence, &m.TimesSeen,
		&m.LastSeen, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sku cache get: %w", err)
	}
	return &m, nil
}

// Upsert inserts a new cache entry, or — on an existing (vendor, sku)
// key — mutates only times_seen, last_seen, and user_confidence (when
// userConfidence is non-nil). The category, description, and account
// never change silently on this path; category corrections go through
// the review queue's `correct` action instead, which calls
// UpsertCorrection.
func (s *Store) Upsert(ctx context.Context, vendorCanonical, sku, normalizedDescription, category, accountCode string, userConfidence *float64, now time.Time) (*model.ProductMapping, error) {
	hash := LookupHash(vendorCanonical, sku)

	row := s.db.QueryRow(ctx, `
		INSERT INTO product_mappings
			(lookup_hash, vendor_canonical, sku, normalized_description,
			 product_category, account_code, user_confidence, times_seen,
			 last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
		ON CONFLICT (lookup_hash) DO UPDATE SET
			times_seen     = product_mappings.times_seen + 1,
			last_seen      = EXCLUDED.last_seen,
			user_confidence = COALESCE(EXCLUDED.user_confidence, product_mappings.user_confidence)
		RETURNING lookup_hash, vendor_canonical, sku, normalized_description,
		          product_category, account_code, user_confidence, times_seen,
		          last_seen, created_at
	`, hash, vendorCanonical, sku, normalizedDescription, category, accountCode, userConfidence, now)

	var m model.ProductMapping
	if err := row.Scan(&m.LookupHash, &m.VendorCanonical, &m.SKU, &m.NormalizedDescription,
		&m.ProductCategory, &m.AccountCode, &m.UserConfidence, &m.TimesSeen,
		&m.LastSeen, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("sku cache upsert: %w", err)
	}
	return &m, nil
}

// UpsertCorrection overwrites category and account on an existing
// entry with confidence 1.0 — the one path allowed to change the
// category, reached only from the review queue's `correct` action.
func (s *Store) UpsertCorrection(ctx context.Context, vendorCanonical, sku, category, accountCode string, now time.Time) (*model.ProductMapping, error) {
	hash := LookupHash(vendorCanonical, sku)
	confidence := 1.0

	row := s.db.QueryRow(ctx, `
		INSERT INTO product_mappings
			(lookup_hash, vendor_canonical, sku, normalized_description,
			 product_category, account_code, user_confidence, times_seen,
			 last_seen, created_at)
		VALUES ($1, $2, $3, '', $4, $5, $6, 1, $7, $7)
		ON CONFLICT (lookup_hash) DO UPDATE SET
			product_category = EXCLUDED.product_category,
			account_code     = EXCLUDED.account_code,
			user_confidence  = EXCLUDED.user_confidence,
			times_seen       = product_mappings.times_seen + 1,
			last_seen        = EXCLUDED.last_seen
		RETURNING lookup_hash, vendor_canonical, sku, normalized_description,
		          product_category, account_code, user_confidence, times_seen,
		          last_seen, created_at
	`, hash, vendorCanonical, sku, category, accountCode, confidence, now)

	var m model.ProductMapping
	if err := row.Scan(&m.LookupHash, &m.VendorCanonical, &m.SKU, &m.NormalizedDescription,
		&m.ProductCategory, &m.AccountCode, &m.UserConfidence, &m.TimesSeen,
		&m.LastSeen, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("sku cache correction: %w", err)
	}
	return &m, nil
}
