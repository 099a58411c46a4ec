package pricing

import "github.com/ateliermtl/studio-billing/internal/models"

// SelectionSource decides whether an item contributes to a total and which
// variant choice applies. The author editor and the public client view share
// one inclusion policy; only the source of the selections differs.
type SelectionSource interface {
	Includes(item *models.QuoteItem) bool
	VariantIndex(item *models.QuoteItem) int
}

// AuthorSelection reads the server-side flags persisted on each item.
type AuthorSelection struct{}

func (AuthorSelection) Includes(item *models.QuoteItem) bool {
	return !item.IsFree() && item.IncludeInTotal && item.IsSelected
}

func (AuthorSelection) VariantIndex(item *models.QuoteItem) int {
	if item.SelectedVariant != nil {
		return *item.SelectedVariant
	}
	return 0
}

// ClientSelection carries the ephemeral toggles and variant picks a client made
// on the public view, keyed by item ID.
type ClientSelection struct {
	Selected map[uint]bool
	Variants map[uint]int
}

func (c ClientSelection) Includes(item *models.QuoteItem) bool {
	if item.IsFree() {
		return false
	}
	if item.IsALaCarte() {
		if c.Selected[item.ID] {
			return true
		}
		// Picking a variant implicitly selects an optional item.
		_, picked := c.Variants[item.ID]
		return picked
	}
	return true
}

func (c ClientSelection) VariantIndex(item *models.QuoteItem) int {
	if idx, ok := c.Variants[item.ID]; ok {
		return idx
	}
	if item.SelectedVariant != nil {
		return *item.SelectedVariant
	}
	return 0
}
