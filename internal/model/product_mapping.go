package model

import "time"

// ProductMapping is one SKU-cache entry, globally unique by the lookup
// hash of (vendor_canonical, sku). Shared across entities.
type ProductMapping struct {
	LookupHash string // SHA256(canonical_vendor + "||" + sku), computed by the store

	VendorCanonical     string
	SKU                 string
	NormalizedDescription string
	ProductCategory     string
	AccountCode         string
	UserConfidence      float64

	TimesSeen int64
	LastSeen  time.Time
	CreatedAt time.Time
}

// Touch applies an idempotent cache hit: increment times_seen, bump
// last_seen. Never mutates category or account_code.
func (p *ProductMapping) Touch(at time.Time) {
	p.TimesSeen++
	p.LastSeen = at
}
