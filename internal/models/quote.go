package models

import (
	"time"

	"gorm.io/gorm"
)

// QuoteStatus represents the lifecycle status of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusViewed   QuoteStatus = "viewed"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRefused  QuoteStatus = "refused"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// Quote is a priced proposal composed of ordered sections of line items.
// Subtotal and Total are stored but recomputed from the item tree on every save.
type Quote struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title      string `gorm:"size:255" json:"title,omitempty"`
	ClientName string `gorm:"size:255" json:"client_name,omitempty"`

	Status QuoteStatus `gorm:"size:20;default:'draft'" json:"status"`

	// PublicToken is issued once, on the first transition to sent. Resending
	// the quote never reissues it.
	PublicToken *string `gorm:"size:64;uniqueIndex" json:"public_token,omitempty"`

	// Tax rates stored as decimal fractions (0.05 = 5%).
	TPSRate float64 `gorm:"type:decimal(6,5)" json:"tps_rate"`
	TVQRate float64 `gorm:"type:decimal(7,6)" json:"tvq_rate"`

	// DepositPercent sizes the deposit invoice as a percentage of Total.
	DepositPercent float64 `gorm:"type:decimal(5,2)" json:"deposit_percent"`

	Subtotal float64 `gorm:"type:decimal(12,2)" json:"subtotal"`
	Total    float64 `gorm:"type:decimal(12,2)" json:"total"`

	Sections  []QuoteSection `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Discounts []Discount     `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"discounts,omitempty"`
	EndNotes  []EndNote      `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"end_notes,omitempty"`
}

// IsApprovable returns true if a client may still approve or refuse the quote.
func (q *Quote) IsApprovable() bool {
	return q.Status == QuoteStatusSent || q.Status == QuoteStatusViewed
}

// IsTerminal returns true once the quote reached a final state.
func (q *Quote) IsTerminal() bool {
	return q.Status == QuoteStatusAccepted || q.Status == QuoteStatusRefused || q.Status == QuoteStatusExpired
}

// CanEditContent returns true while sections, items and discounts may still be
// mutated. Content is frozen in every terminal state; an accepted quote must be
// duplicated to be changed.
func (q *Quote) CanEditContent() bool {
	return !q.IsTerminal()
}

// QuoteSection groups ordered items under a heading.
type QuoteSection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID  uint   `gorm:"index;not null" json:"quote_id"`
	Position int    `gorm:"not null;default:0" json:"position"`
	Title    string `gorm:"size:255" json:"title"`

	Items []QuoteItem `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// EndNote is a display-only title/content pair shown under the quote.
// It never affects any computation.
type EndNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID  uint   `gorm:"index;not null" json:"quote_id"`
	Position int    `gorm:"not null;default:0" json:"position"`
	Title    string `gorm:"size:255" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
}
