package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/pricing"
	"github.com/ateliermtl/studio-billing/internal/validation"
)

// QuoteService owns the quote lifecycle and keeps the stored totals in sync
// with the item tree. Every status transition runs inside a transaction so a
// failed write never leaves a half-updated record.
type QuoteService struct {
	db *gorm.DB
}

func NewQuoteService(db *gorm.DB) *QuoteService {
	return &QuoteService{db: db}
}

func preloadQuote(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Sections.Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Sections.Items.Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Discounts").
		Preload("EndNotes", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
}

func (s *QuoteService) load(tx *gorm.DB, id uint) (*models.Quote, error) {
	var q models.Quote
	if err := preloadQuote(tx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *QuoteService) loadByToken(tx *gorm.DB, token string) (*models.Quote, error) {
	var q models.Quote
	if err := preloadQuote(tx).Where("public_token = ?", token).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// Get returns a quote with its authoring-context totals recomputed.
func (s *QuoteService) Get(id uint) (*models.Quote, pricing.Totals, error) {
	q, err := s.load(s.db, id)
	if err != nil {
		return nil, pricing.Totals{}, err
	}
	return q, pricing.ComputeQuote(q, pricing.AuthorSelection{}), nil
}

// validateQuote rejects malformed rate and deposit settings before any write.
func validateQuote(q *models.Quote) error {
	violations := validation.Violations{}
	validation.NonNegativeFloat("tps_rate", q.TPSRate, violations)
	validation.NonNegativeFloat("tvq_rate", q.TVQRate, violations)
	validation.RangeFloat("deposit_percent", q.DepositPercent, 0, 100, violations)
	if !violations.Empty() {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// Create persists a new draft quote and its stored totals.
func (s *QuoteService) Create(q *models.Quote) error {
	if err := validateQuote(q); err != nil {
		return err
	}
	if q.Status == "" {
		q.Status = models.QuoteStatusDraft
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		return s.storeTotals(tx, q)
	})
}

// Save writes content changes and refreshes the stored totals. Rejected once
// the quote reached a terminal state.
func (s *QuoteService) Save(q *models.Quote) error {
	if err := validateQuote(q); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, q.ID)
		if err != nil {
			return err
		}
		if !current.CanEditContent() {
			return stateConflict("quote content is frozen in status " + string(current.Status))
		}
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(q).Error; err != nil {
			return err
		}
		reloaded, err := s.load(tx, q.ID)
		if err != nil {
			return err
		}
		*q = *reloaded
		return s.storeTotals(tx, q)
	})
}

// storeTotals recomputes authoring totals and writes the {subtotal, total}
// tuple in a single update so it is applied atomically or not at all.
func (s *QuoteService) storeTotals(tx *gorm.DB, q *models.Quote) error {
	t := pricing.ComputeQuote(q, pricing.AuthorSelection{})
	q.Subtotal = t.Subtotal
	q.Total = t.Total
	return tx.Model(&models.Quote{}).Where("id = ?", q.ID).
		Updates(map[string]any{"subtotal": t.Subtotal, "total": t.Total}).Error
}

// Send transitions a draft to sent and issues the public token if the quote
// never had one. Resending an already-sent quote keeps both the token and any
// viewed status.
func (s *QuoteService) Send(id uint) (*models.Quote, error) {
	var out *models.Quote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if q.IsTerminal() {
			return stateConflict("cannot send a quote in status " + string(q.Status))
		}
		updates := map[string]any{}
		if q.PublicToken == nil {
			token := uuid.NewString()
			q.PublicToken = &token
			updates["public_token"] = token
		}
		if q.Status == models.QuoteStatusDraft {
			q.Status = models.QuoteStatusSent
			updates["status"] = models.QuoteStatusSent
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Quote{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		out = q
		return nil
	})
	return out, err
}

// GetByToken is the public read. The first read while the quote is sent flips
// it to viewed; the flip is guarded on the current status so re-viewing never
// re-triggers it.
func (s *QuoteService) GetByToken(token string) (*models.Quote, error) {
	var out *models.Quote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadByToken(tx, token)
		if err != nil {
			return err
		}
		if q.Status == models.QuoteStatusSent {
			res := tx.Model(&models.Quote{}).
				Where("id = ? AND status = ?", q.ID, models.QuoteStatusSent).
				Update("status", models.QuoteStatusViewed)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				q.Status = models.QuoteStatusViewed
			}
		}
		out = q
		return nil
	})
	return out, err
}

// ClientTotals computes the public-view totals for a set of client selections.
func (s *QuoteService) ClientTotals(q *models.Quote, sel pricing.ClientSelection) pricing.Totals {
	return pricing.ComputeQuote(q, sel)
}

// Approve records a client's acceptance: the ephemeral selections and variant
// picks are persisted onto the items, totals are recomputed from the persisted
// state, and the quote becomes accepted. Only sent/viewed quotes can be
// approved.
func (s *QuoteService) Approve(token string, selections map[uint]bool, variantSelections map[uint]int) (*models.Quote, error) {
	var out *models.Quote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadByToken(tx, token)
		if err != nil {
			return err
		}
		if !q.IsApprovable() {
			return stateConflict("quote in status " + string(q.Status) + " cannot be approved")
		}
		sel := pricing.ClientSelection{Selected: selections, Variants: variantSelections}
		for si := range q.Sections {
			for ii := range q.Sections[si].Items {
				item := &q.Sections[si].Items[ii]
				updates := map[string]any{}
				if idx, ok := variantSelections[item.ID]; ok {
					if idx < 0 || idx >= len(item.Variants) {
						return validationErr("variant_selections", "index_out_of_range")
					}
					item.SelectedVariant = &idx
					updates["selected_variant"] = idx
				}
				// Persist the effective client-context inclusion onto the
				// author-side flags, so the stored totals and every later read
				// reproduce exactly the total the client approved. This covers
				// items the author had flagged out of the total but the client
				// context includes.
				if !item.IsFree() {
					included := sel.Includes(item)
					if item.IsSelected != included {
						item.IsSelected = included
						updates["is_selected"] = included
					}
					if included && !item.IncludeInTotal {
						item.IncludeInTotal = true
						updates["include_in_total"] = true
					}
				}
				if len(updates) > 0 {
					if err := tx.Model(&models.QuoteItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
						return err
					}
				}
			}
		}
		// Persisted selections now drive the authoring calculator, so what the
		// client approved is exactly what subsequent reads show.
		t := pricing.ComputeQuote(q, pricing.AuthorSelection{})
		q.Subtotal = t.Subtotal
		q.Total = t.Total
		q.Status = models.QuoteStatusAccepted
		out = q
		return tx.Model(&models.Quote{}).Where("id = ?", q.ID).Updates(map[string]any{
			"status":   models.QuoteStatusAccepted,
			"subtotal": t.Subtotal,
			"total":    t.Total,
		}).Error
	})
	return out, err
}

// Refuse records a client refusal through the public token.
func (s *QuoteService) Refuse(token string) (*models.Quote, error) {
	var out *models.Quote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadByToken(tx, token)
		if err != nil {
			return err
		}
		if !q.IsApprovable() {
			return stateConflict("quote in status " + string(q.Status) + " cannot be refused")
		}
		q.Status = models.QuoteStatusRefused
		out = q
		return tx.Model(&models.Quote{}).Where("id = ?", q.ID).
			Update("status", models.QuoteStatusRefused).Error
	})
	return out, err
}

// Expire marks a sent or viewed quote expired. Author-side action.
func (s *QuoteService) Expire(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if !q.IsApprovable() {
			return stateConflict("quote in status " + string(q.Status) + " cannot expire")
		}
		return tx.Model(&models.Quote{}).Where("id = ?", q.ID).
			Update("status", models.QuoteStatusExpired).Error
	})
}
