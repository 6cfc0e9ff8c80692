package parser

import "github.com/rezonia/invoice-processor/internal/vendor"

// NewDefaultDispatcher builds the fixed-priority vendor dispatcher:
// highest-spend vendors first, GenericParser last as the catch-all.
// Order lists unique-marker parsers before the most generic one.
func NewDefaultDispatcher() *vendor.Dispatcher {
	return vendor.NewDispatcher(
		NewGFSParser(),          // grocery distributor, high-volume corp spend
		NewCostcoParser(),       // membership marker is unambiguous
		NewGrosnorParser(),      // distinctive UPC/SRP layout
		NewSuperstoreParser(),   // distinctive tax-code letter cluster
		NewPepsiParser(),        // route-delivery marker
		NewWalmartParser(),      // common, but marker is specific enough
		NewPharmasaveParser(),   // pharmacy marker
		NewCanadianTireParser(), // retail marker
		NewGenericParser(),      // catch-all, always last
	)
}
