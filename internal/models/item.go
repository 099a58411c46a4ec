package models

import (
	"strings"
	"time"
)

// ItemType is one tag in an item's type set.
type ItemType uint8

const (
	ItemTypeService ItemType = 1 << iota
	ItemTypeProduct
	ItemTypeFree
	ItemTypeALaCarte
)

// ItemTypeSet is a closed tagged set of item types, stored as a bitmask so the
// free / à-la-carte checks stay exhaustive and cheap.
type ItemTypeSet uint8

// NewItemTypeSet builds a set from the given tags.
func NewItemTypeSet(types ...ItemType) ItemTypeSet {
	var s ItemTypeSet
	for _, t := range types {
		s |= ItemTypeSet(t)
	}
	return s
}

func (s ItemTypeSet) Has(t ItemType) bool         { return s&ItemTypeSet(t) != 0 }
func (s ItemTypeSet) With(t ItemType) ItemTypeSet { return s | ItemTypeSet(t) }
func (s ItemTypeSet) Empty() bool                 { return s == 0 }

// BillingMode selects how an item's contribution is priced.
type BillingMode string

const (
	BillingModeFixed  BillingMode = "fixed"
	BillingModeHourly BillingMode = "hourly"
)

// Collaborator types are informational only and never affect totals.
const (
	CollaboratorOwner      = "owner"
	CollaboratorFreelancer = "freelancer"
)

// QuoteItem is a line item inside a quote section.
//
// Fixed-mode items are priced Quantity × unit, where the unit price comes from
// the selected variant when variants exist, else UnitPrice. Hourly items are
// priced HourlyRate × Hours and ignore quantity, unit price and variants.
type QuoteItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SectionID uint `gorm:"index;not null" json:"section_id"`
	Position  int  `gorm:"not null;default:0" json:"position"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	ItemTypes ItemTypeSet `gorm:"not null;default:1" json:"item_types"`
	// LegacyItemType is the single-valued column older rows carry. It is a
	// read-time shim only: Types() expands it to a one-element set when the
	// bitmask is empty. New writes always fill ItemTypes.
	LegacyItemType string `gorm:"column:item_type;size:20" json:"-"`

	BillingMode BillingMode `gorm:"size:10;default:'fixed'" json:"billing_mode"`

	Quantity   float64 `gorm:"type:decimal(10,3);default:1" json:"quantity"`
	UnitPrice  float64 `gorm:"type:decimal(12,2)" json:"unit_price"`
	HourlyRate float64 `gorm:"type:decimal(12,2)" json:"hourly_rate"`
	Hours      float64 `gorm:"type:decimal(10,2)" json:"hours"`

	// IncludeInTotal and IsSelected are independent author-side flags; both
	// must hold for the item to count in the author context. No column
	// defaults here: a false written at create time must stay false.
	IncludeInTotal bool `json:"include_in_total"`
	IsSelected     bool `json:"is_selected"`

	Variants []PriceVariant `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	// SelectedVariant indexes into Variants. When variants exist and no
	// explicit choice was made, calculations fall back to index 0; the missing
	// choice is a warning state, not an error.
	SelectedVariant *int `json:"selected_variant,omitempty"`

	// Informational collaborator assignment; never affects totals.
	CollaboratorType   *string `gorm:"size:20" json:"collaborator_type,omitempty"`
	CollaboratorName   string  `gorm:"size:255" json:"collaborator_name,omitempty"`
	CollaboratorAmount float64 `gorm:"type:decimal(12,2)" json:"collaborator_amount,omitempty"`
}

// Types returns the authoritative type set, expanding the legacy single-valued
// column when the bitmask was never written.
func (it *QuoteItem) Types() ItemTypeSet {
	if !it.ItemTypes.Empty() {
		return it.ItemTypes
	}
	switch strings.ToLower(strings.TrimSpace(it.LegacyItemType)) {
	case "product":
		return NewItemTypeSet(ItemTypeProduct)
	case "free":
		return NewItemTypeSet(ItemTypeFree)
	case "a_la_carte":
		return NewItemTypeSet(ItemTypeALaCarte)
	default:
		return NewItemTypeSet(ItemTypeService)
	}
}

// IsFree returns true if the item never contributes to totals.
func (it *QuoteItem) IsFree() bool { return it.Types().Has(ItemTypeFree) }

// IsALaCarte returns true if inclusion is driven by explicit selection.
func (it *QuoteItem) IsALaCarte() bool { return it.Types().Has(ItemTypeALaCarte) }

func (it *QuoteItem) HasVariants() bool { return len(it.Variants) > 0 }

// NeedsVariantChoice reports the warning state where variants exist but none
// was explicitly chosen. Calculations still resolve to index 0.
func (it *QuoteItem) NeedsVariantChoice() bool {
	return it.HasVariants() && it.SelectedVariant == nil
}

// PriceVariant is one of several alternative fixed prices for the same item.
type PriceVariant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ItemID   uint    `gorm:"index;not null" json:"item_id"`
	Position int     `gorm:"not null;default:0" json:"position"`
	Label    string  `gorm:"size:255" json:"label"`
	Price    float64 `gorm:"type:decimal(12,2);not null" json:"price"`
}
