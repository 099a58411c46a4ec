package models

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceType classifies how an invoice relates to its quote.
type InvoiceType string

const (
	InvoiceTypeDeposit    InvoiceType = "deposit"
	InvoiceTypePartial    InvoiceType = "partial"
	InvoiceTypeFinal      InvoiceType = "final"
	InvoiceTypeStandalone InvoiceType = "standalone"
)

// InvoiceStatus represents the lifecycle status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is a billing document, optionally raised against a quote.
type Invoice struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Number string `gorm:"size:50;index" json:"number"`
	// NumberReusable is flagged on cancellation so the number can be handed to
	// a future invoice instead of leaving a gap in the sequence.
	NumberReusable bool `gorm:"default:false" json:"number_reusable"`

	QuoteID *uint  `gorm:"index" json:"quote_id,omitempty"`
	Quote   *Quote `gorm:"foreignKey:QuoteID" json:"-"`

	InvoiceType InvoiceType   `gorm:"size:20;not null;default:'standalone'" json:"invoice_type"`
	Status      InvoiceStatus `gorm:"size:20;default:'draft'" json:"status"`

	Subtotal   float64 `gorm:"type:decimal(12,2)" json:"subtotal"`
	TPSAmount  float64 `gorm:"type:decimal(12,2)" json:"tps_amount"`
	TVQAmount  float64 `gorm:"type:decimal(12,2)" json:"tvq_amount"`
	Total      float64 `gorm:"type:decimal(12,2)" json:"total"`
	AmountPaid float64 `gorm:"type:decimal(12,2)" json:"amount_paid"`

	// LateFeeAmount is meaningful only while LateFeeApplied is true; removal
	// resets it to 0.
	LateFeeApplied bool    `gorm:"default:false" json:"late_fee_applied"`
	LateFeeAmount  float64 `gorm:"type:decimal(12,2)" json:"late_fee_amount"`

	IssueDate   time.Time  `gorm:"not null" json:"issue_date"`
	DueDate     time.Time  `gorm:"not null" json:"due_date"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

func (i *Invoice) IsPaid() bool      { return i.Status == InvoiceStatusPaid }
func (i *Invoice) IsCancelled() bool { return i.Status == InvoiceStatusCancelled }

// IsFrozen returns true once every field except Notes and Status itself is
// locked against mutation.
func (i *Invoice) IsFrozen() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled
}

// CanEdit returns true while items, dates and amounts may still change.
func (i *Invoice) CanEdit() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusSent
}

// InvoiceItem is a line item on an invoice. Total is always Quantity × UnitPrice
// and must be recomputed whenever either changes.
type InvoiceItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`

	Description string  `gorm:"size:500;not null" json:"description"`
	Quantity    float64 `gorm:"type:decimal(10,3);not null;default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Total       float64 `gorm:"type:decimal(12,2);not null" json:"total"`
}

// RecomputeTotal refreshes the stored line total.
func (it *InvoiceItem) RecomputeTotal() {
	it.Total = it.Quantity * it.UnitPrice
}
