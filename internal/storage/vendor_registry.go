package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
)

// VendorRegistryStore persists the global (not entity-scoped) vendor
// registry.
type VendorRegistryStore struct {
	pool *pgxpool.Pool
}

// NewVendorRegistryStore wraps an existing pool.
func NewVendorRegistryStore(pool *pgxpool.Pool) *VendorRegistryStore {
	return &VendorRegistryStore{pool: pool}
}

// Get fetches a vendor registry entry by canonical name, or (nil, nil)
// if it doesn't exist yet.
func (s *VendorRegistryStore) Get(ctx context.Context, canonicalName string) (*model.VendorRegistryEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT canonical_name, aliases, vendor_type, default_category,
		       typical_entity, receipt_format, sample_count, annual_spend,
		       last_transaction_date
		FROM vendor_registry WHERE canonical_name = $1
	`, canonicalName)

	var v model.VendorRegistryEntry
	err := row.Scan(&v.CanonicalName, &v.Aliases, &v.VendorType, &v.DefaultCategory,
		&v.TypicalEntity, &v.ReceiptFormat, &v.SampleCount, &v.AnnualSpend,
		&v.LastTransactionDate)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vendor registry get: %w", err)
	}
	return &v, nil
}

// Upsert inserts or replaces a vendor registry entry wholesale — unlike
// the SKU cache, the registry has no "advisory stats only" distinction;
// an operator or the pipeline's new-vendor bootstrap owns the full row.
func (s *VendorRegistryStore) Upsert(ctx context.Context, v *model.VendorRegistryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vendor_registry
			(canonical_name, aliases, vendor_type, default_category,
			 typical_entity, receipt_format, sample_count, annual_spend,
			 last_transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (canonical_name) DO UPDATE SET
			aliases               = EXCLUDED.aliases,
			vendor_type           = EXCLUDED.vendor_type,
			default_category      = EXCLUDED.default_category,
			typical_entity        = EXCLUDED.typical_entity,
			receipt_format        = EXCLUDED.receipt_format,
			sample_count          = EXCLUDED.sample_count,
			annual_spend          = EXCLUDED.annual_spend,
			last_transaction_date = EXCLUDED.last_transaction_date
	`, v.CanonicalName, v.Aliases, v.VendorType, v.DefaultCategory, v.TypicalEntity,
		v.ReceiptFormat, v.SampleCount, v.AnnualSpend, v.LastTransactionDate)
	if err != nil {
		return fmt.Errorf("vendor registry upsert: %w", err)
	}
	return nil
}

// RecordTransaction increments sample_count and bumps
// last_transaction_date/annual_spend for a canonical vendor, called
// after every successfully parsed receipt.
func (s *VendorRegistryStore) RecordTransaction(ctx context.Context, canonicalName string, amount decimal.Decimal, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE vendor_registry
		SET sample_count = sample_count + 1,
		    annual_spend = annual_spend + $2,
		    last_transaction_date = $3
		WHERE canonical_name = $1
	`, canonicalName, amount, at)
	if err != nil {
		return fmt.Errorf("vendor registry record transaction: %w", err)
	}
	return nil
}

// All loads the entire registry, used to warm an in-memory
// vendor.Registry at process start.
func (s *VendorRegistryStore) All(ctx context.Context) ([]*model.VendorRegistryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT canonical_name, aliases, vendor_type, default_category,
		       typical_entity, receipt_format, sample_count, annual_spend,
		       last_transaction_date
		FROM vendor_registry
	`)
	if err != nil {
		return nil, fmt.Errorf("vendor registry list: %w", err)
	}
	defer rows.Close()

	var entries []*model.VendorRegistryEntry
	for rows.Next() {
		var v model.VendorRegistryEntry
		if err := rows.Scan(&v.CanonicalName, &v.Aliases, &v.VendorType, &v.DefaultCategory,
			&v.TypicalEntity, &v.ReceiptFormat, &v.SampleCount, &v.AnnualSpend,
			&v.LastTransactionDate); err != nil {
			return nil, fmt.Errorf("scan vendor registry entry: %w", err)
		}
		entries = append(entries, &v)
	}
	return entries, rows.Err()
}
