package models

import "time"

// Payment records money received against an invoice.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID uint      `gorm:"index;not null" json:"invoice_id"`
	Date      time.Time `gorm:"not null" json:"date"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method    string    `gorm:"size:50;not null" json:"method"` // e.g. transfer, card, cheque, cash
	Note      string    `gorm:"size:500" json:"note,omitempty"`
}
