package pricing

import (
	"testing"

	"github.com/ateliermtl/studio-billing/internal/models"
)

func TestAuthorSelection_Includes(t *testing.T) {
	tests := []struct {
		name string
		item models.QuoteItem
		want bool
	}{
		{
			name: "included service item",
			item: models.QuoteItem{ItemTypes: models.NewItemTypeSet(models.ItemTypeService), IncludeInTotal: true, IsSelected: true},
			want: true,
		},
		{
			name: "free item always excluded",
			item: models.QuoteItem{ItemTypes: models.NewItemTypeSet(models.ItemTypeService, models.ItemTypeFree), IncludeInTotal: true, IsSelected: true},
			want: false,
		},
		{
			name: "include_in_total off",
			item: models.QuoteItem{ItemTypes: models.NewItemTypeSet(models.ItemTypeService), IncludeInTotal: false, IsSelected: true},
			want: false,
		},
		{
			name: "not selected",
			item: models.QuoteItem{ItemTypes: models.NewItemTypeSet(models.ItemTypeService), IncludeInTotal: true, IsSelected: false},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (AuthorSelection{}).Includes(&tt.item); got != tt.want {
				t.Errorf("Includes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientSelection_Includes(t *testing.T) {
	alc := models.QuoteItem{ID: 7, ItemTypes: models.NewItemTypeSet(models.ItemTypeService, models.ItemTypeALaCarte)}
	normal := models.QuoteItem{ID: 8, ItemTypes: models.NewItemTypeSet(models.ItemTypeService), IncludeInTotal: false, IsSelected: false}
	free := models.QuoteItem{ID: 9, ItemTypes: models.NewItemTypeSet(models.ItemTypeFree)}

	empty := ClientSelection{Selected: map[uint]bool{}, Variants: map[uint]int{}}
	if empty.Includes(&alc) {
		t.Error("à-la-carte item must default to unselected")
	}
	// Non-optional displayed items are always included in the client view,
	// regardless of the author-side flags.
	if !empty.Includes(&normal) {
		t.Error("non-optional item must be included in client context")
	}
	if empty.Includes(&free) {
		t.Error("free item must never be included")
	}

	toggled := ClientSelection{Selected: map[uint]bool{7: true}}
	if !toggled.Includes(&alc) {
		t.Error("toggled à-la-carte item must be included")
	}

	// Picking a variant implicitly selects the item.
	picked := ClientSelection{Variants: map[uint]int{7: 1}}
	if !picked.Includes(&alc) {
		t.Error("variant pick must imply selection")
	}
}

func TestClientSelection_VariantIndex(t *testing.T) {
	one := 1
	item := models.QuoteItem{
		ID:              3,
		SelectedVariant: &one,
		Variants:        []models.PriceVariant{{Price: 100}, {Price: 250}, {Price: 400}},
	}
	if got := (ClientSelection{Variants: map[uint]int{3: 2}}).VariantIndex(&item); got != 2 {
		t.Errorf("client pick should win, got index %d", got)
	}
	if got := (ClientSelection{}).VariantIndex(&item); got != 1 {
		t.Errorf("fallback to server-selected index, got %d", got)
	}
	item.SelectedVariant = nil
	if got := (ClientSelection{}).VariantIndex(&item); got != 0 {
		t.Errorf("fallback to index 0, got %d", got)
	}
}
