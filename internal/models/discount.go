package models

import "time"

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a quote-level reduction. Every discount is computed
// independently against the pre-discount subtotal: percentage discounts never
// compound against each other or against prior discounts.
type Discount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID uint         `gorm:"index;not null" json:"quote_id"`
	Type    DiscountType `gorm:"size:20;not null" json:"type"`
	Value   float64      `gorm:"type:decimal(12,2);not null" json:"value"`
	Label   string       `gorm:"size:255" json:"label,omitempty"`
	Reason  string       `gorm:"size:500" json:"reason,omitempty"`
}

// AmountAgainst returns this discount's amount computed against the original
// pre-discount subtotal.
func (d *Discount) AmountAgainst(subtotal float64) float64 {
	if d.Type == DiscountPercentage {
		return subtotal * d.Value / 100
	}
	return d.Value
}
