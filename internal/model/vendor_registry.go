package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VendorRegistryEntry is the canonical record for one vendor, shared
// globally across entities.
type VendorRegistryEntry struct {
	CanonicalName   string
	Aliases         []string
	VendorType      string
	DefaultCategory string
	TypicalEntity   TypicalEntity
	ReceiptFormat   string

	SampleCount         int64
	AnnualSpend         decimal.Decimal
	LastTransactionDate *time.Time
}

// HasAlias reports whether alias (case-insensitive) is already registered.
func (v *VendorRegistryEntry) HasAlias(alias string) bool {
	for _, a := range v.Aliases {
		if strings.EqualFold(a, alias) {
			return true
		}
	}
	return false
}

