package pricing

import "github.com/ateliermtl/studio-billing/internal/models"

// ResolveUnitPrice returns the effective unit price for a fixed-mode item:
// the price of the variant at index when variants exist (out-of-range indexes
// fall back to index 0), else the item's own unit price.
func ResolveUnitPrice(item *models.QuoteItem, index int) float64 {
	if !item.HasVariants() {
		return item.UnitPrice
	}
	if index < 0 || index >= len(item.Variants) {
		index = 0
	}
	return item.Variants[index].Price
}

// Contribution returns the item's pre-tax amount under the given selection
// source, or 0 when the source excludes it. Hourly items ignore quantity,
// unit price and variants entirely.
func Contribution(item *models.QuoteItem, source SelectionSource) float64 {
	if !source.Includes(item) {
		return 0
	}
	if item.BillingMode == models.BillingModeHourly {
		return item.HourlyRate * item.Hours
	}
	return item.Quantity * ResolveUnitPrice(item, source.VariantIndex(item))
}
