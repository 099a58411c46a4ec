// Package pricing holds the pure financial computation for quotes and
// invoices: item contributions, non-compounding discounts, the two named
// taxes, and deposit sizing. Nothing here touches the database or clamps
// "surprising" results. A quote whose discounts exceed its subtotal
// legitimately computes a negative total.
package pricing

import "github.com/ateliermtl/studio-billing/internal/models"

// DiscountDetail is one discount's independently computed amount.
type DiscountDetail struct {
	Label  string              `json:"label"`
	Type   models.DiscountType `json:"type"`
	Value  float64             `json:"value"`
	Amount float64             `json:"amount"`
}

// Totals is the full computed breakdown for a set of sections.
type Totals struct {
	Subtotal        float64          `json:"subtotal"`
	DiscountDetails []DiscountDetail `json:"discount_details,omitempty"`
	TotalDiscount   float64          `json:"total_discount"`
	AfterDiscount   float64          `json:"after_discount"`
	TPSAmount       float64          `json:"tps_amount"`
	TVQAmount       float64          `json:"tvq_amount"`
	Total           float64          `json:"total"`
}

// Compute walks every item across all sections, applies the selection policy,
// then layers discounts and taxes.
//
// Each discount is computed against the original subtotal, never against a
// running reduced value; the total discount is the plain sum of those amounts.
func Compute(sections []models.QuoteSection, discounts []models.Discount, tpsRate, tvqRate float64, source SelectionSource) Totals {
	var t Totals
	for si := range sections {
		for ii := range sections[si].Items {
			t.Subtotal += Contribution(&sections[si].Items[ii], source)
		}
	}
	for di := range discounts {
		d := &discounts[di]
		amount := d.AmountAgainst(t.Subtotal)
		t.DiscountDetails = append(t.DiscountDetails, DiscountDetail{
			Label:  d.Label,
			Type:   d.Type,
			Value:  d.Value,
			Amount: amount,
		})
		t.TotalDiscount += amount
	}
	t.AfterDiscount = t.Subtotal - t.TotalDiscount
	t.TPSAmount = t.AfterDiscount * tpsRate
	t.TVQAmount = t.AfterDiscount * tvqRate
	t.Total = t.AfterDiscount + t.TPSAmount + t.TVQAmount
	return t
}

// ComputeQuote computes totals for a quote using its own discounts and rates.
func ComputeQuote(q *models.Quote, source SelectionSource) Totals {
	return Compute(q.Sections, q.Discounts, q.TPSRate, q.TVQRate, source)
}

// TaxAmounts applies the two tax rates to a pre-tax subtotal. Used by invoice
// generation, where the subtotal comes from balance math rather than items.
func TaxAmounts(subtotal, tpsRate, tvqRate float64) (tps, tvq float64) {
	return subtotal * tpsRate, subtotal * tvqRate
}

// DepositAmount sizes a deposit from a tax-included total.
func DepositAmount(total, depositPercent float64) float64 {
	return total * depositPercent / 100
}
