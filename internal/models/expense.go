package models

import "time"

// BillableExpense is a project expense recorded outside the engine. The engine
// reads it and may mark it billed when folding it into a new invoice; that
// marking is one-way and survives deletion of the invoice.
type BillableExpense struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID     uint    `gorm:"index;not null" json:"quote_id"`
	Description string  `gorm:"size:500" json:"description"`
	Amount      float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsBillable  bool    `json:"is_billable"`
	IsBilled    bool    `json:"is_billed"`
}
