package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ateliermtl/studio-billing/internal/billing"
	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/pricing"
	"github.com/ateliermtl/studio-billing/internal/validation"
)

// Default tax rates for standalone invoices, which have no quote to inherit
// rates from.
const (
	DefaultTPSRate = 0.05
	DefaultTVQRate = 0.09975
)

// defaultDueDays is how far out the due date lands when a creation request
// does not supply one.
const defaultDueDays = 30

// InvoiceService owns invoice creation, payments, late fees and the status
// state machine. All read-decide-write sequences run inside a transaction:
// deposit uniqueness is re-checked after loading the quote's invoices, and the
// late-fee transitions are conditional updates, so concurrent requests cannot
// double-create a deposit or double-apply a fee.
type InvoiceService struct {
	db *gorm.DB
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// CreateFromQuoteRequest is the invoice-from-quote creation intent.
type CreateFromQuoteRequest struct {
	QuoteID     uint
	Type        models.InvoiceType
	Mode        billing.AmountMode
	Percentage  float64
	FixedAmount float64
	ExpenseIDs  []uint
	IssueDate   time.Time
	DueDate     time.Time
}

// CreateFromQuote materializes an invoice against a quote: balance math picks
// the legal base amount, selected unbilled expenses roll into the subtotal,
// and every selected expense is marked billed in the same transaction. The
// marking is one-way; deleting the invoice later does not reverse it.
func (s *InvoiceService) CreateFromQuote(req CreateFromQuoteRequest) (*models.Invoice, error) {
	violations := validation.Violations{}
	if req.QuoteID == 0 {
		violations["quote_id"] = "required"
	}
	if req.Type != models.InvoiceTypeDeposit && req.Mode != billing.AmountModeFixed {
		validation.RangeFloat("percentage", req.Percentage, 0, 100, violations)
	}
	if !violations.Empty() {
		return nil, &ValidationError{Violations: violations}
	}
	now := time.Now()
	if req.IssueDate.IsZero() {
		req.IssueDate = now
	}
	if req.DueDate.IsZero() {
		req.DueDate = req.IssueDate.AddDate(0, 0, defaultDueDays)
	}
	var out *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var q models.Quote
		if err := tx.First(&q, req.QuoteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var existing []models.Invoice
		if err := tx.Where("quote_id = ?", q.ID).Find(&existing).Error; err != nil {
			return err
		}
		bal := billing.ComputeBalance(q.Total, existing)

		var expenses []models.BillableExpense
		if len(req.ExpenseIDs) > 0 {
			if err := tx.Where("id IN ? AND quote_id = ? AND is_billable = ? AND is_billed = ?",
				req.ExpenseIDs, q.ID, true, false).Find(&expenses).Error; err != nil {
				return err
			}
			if len(expenses) != len(req.ExpenseIDs) {
				return validationErr("expense_ids", "unknown_or_already_billed")
			}
		}

		inv, err := billing.BuildInvoice(&q, bal, billing.GenerateRequest{
			Type:        req.Type,
			Mode:        req.Mode,
			Percentage:  req.Percentage,
			FixedAmount: req.FixedAmount,
			Expenses:    expenses,
			IssueDate:   req.IssueDate,
			DueDate:     req.DueDate,
		})
		switch {
		case errors.Is(err, billing.ErrDepositExists):
			return stateConflict(err.Error())
		case errors.Is(err, billing.ErrNothingToInvoice):
			return validationErr("amount", "not_positive")
		case errors.Is(err, billing.ErrBadPercentage):
			return validationErr("percentage", "out_of_range")
		case err != nil:
			return err
		}

		number, err := s.nextNumber(tx)
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		if len(expenses) > 0 {
			if err := tx.Model(&models.BillableExpense{}).
				Where("id IN ?", req.ExpenseIDs).
				Update("is_billed", true).Error; err != nil {
				return err
			}
		}
		out = inv
		return nil
	})
	return out, err
}

// CreateStandalone creates an invoice not tied to any quote. Line totals are
// recomputed from quantity × unit price before the tax step.
func (s *InvoiceService) CreateStandalone(items []models.InvoiceItem, issueDate, dueDate time.Time) (*models.Invoice, error) {
	violations := validation.Violations{}
	if len(items) == 0 {
		violations["items"] = "required"
	}
	for i := range items {
		validation.Required("description", items[i].Description, violations)
	}
	if !violations.Empty() {
		return nil, &ValidationError{Violations: violations}
	}
	var subtotal float64
	for i := range items {
		items[i].RecomputeTotal()
		subtotal += items[i].Total
	}
	if subtotal <= 0 {
		return nil, validationErr("items", "amount_not_positive")
	}
	now := time.Now()
	if issueDate.IsZero() {
		issueDate = now
	}
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, defaultDueDays)
	}
	tps, tvq := pricing.TaxAmounts(subtotal, DefaultTPSRate, DefaultTVQRate)
	inv := &models.Invoice{
		InvoiceType: models.InvoiceTypeStandalone,
		Status:      models.InvoiceStatusDraft,
		Subtotal:    subtotal,
		TPSAmount:   tps,
		TVQAmount:   tvq,
		Total:       subtotal + tps + tvq,
		IssueDate:   issueDate,
		DueDate:     dueDate,
		Items:       items,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.nextNumber(tx)
		if err != nil {
			return err
		}
		inv.Number = number
		return tx.Create(inv).Error
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// nextNumber hands out the lowest number released by a cancelled invoice
// before extending the sequence.
func (s *InvoiceService) nextNumber(tx *gorm.DB) (string, error) {
	var donor models.Invoice
	err := tx.Where("number_reusable = ?", true).Order("id").First(&donor).Error
	if err == nil {
		if uerr := tx.Model(&donor).Update("number_reusable", false).Error; uerr != nil {
			return "", uerr
		}
		return donor.Number, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	var maxID *uint
	if err := tx.Model(&models.Invoice{}).Unscoped().Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return "", err
	}
	next := uint(1)
	if maxID != nil {
		next = *maxID + 1
	}
	return fmt.Sprintf("INV-%04d", next), nil
}

// Balance answers the balance query for a quote.
func (s *InvoiceService) Balance(quoteID uint) (billing.Balance, []models.Invoice, error) {
	var q models.Quote
	if err := s.db.First(&q, quoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Balance{}, nil, ErrNotFound
		}
		return billing.Balance{}, nil, err
	}
	var invoices []models.Invoice
	if err := s.db.Where("quote_id = ?", quoteID).Order("id").Find(&invoices).Error; err != nil {
		return billing.Balance{}, nil, err
	}
	return billing.ComputeBalance(q.Total, invoices), invoices, nil
}

// Get loads an invoice and refreshes the derived overdue status: a sent
// invoice past its due date reads as overdue. The flip is informational and
// never blocks later transitions.
func (s *InvoiceService) Get(id uint) (*models.Invoice, int, error) {
	var inv models.Invoice
	if err := s.db.Preload("Items").Preload("Payments").First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	now := time.Now()
	days := billing.DaysOverdue(&inv, now)
	if inv.Status == models.InvoiceStatusSent && days > 0 {
		if err := s.db.Model(&models.Invoice{}).Where("id = ? AND status = ?", inv.ID, models.InvoiceStatusSent).
			Update("status", models.InvoiceStatusOverdue).Error; err != nil {
			return nil, 0, err
		}
		inv.Status = models.InvoiceStatusOverdue
	}
	return &inv, days, nil
}

// MarkSent transitions a draft to sent.
func (s *InvoiceService) MarkSent(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if inv.IsFrozen() {
			return stateConflict("invoice in status " + string(inv.Status) + " cannot be sent")
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", id).
			Update("status", models.InvoiceStatusSent).Error
	})
}

// RecordPayment registers money received. When the cumulative amount covers
// the total, the invoice flips to paid and the payment date is stamped unless
// one was already supplied.
func (s *InvoiceService) RecordPayment(invoiceID uint, amount float64, date time.Time, method string) (*models.Invoice, error) {
	violations := validation.Violations{}
	validation.PositiveFloat("amount", amount, violations)
	if !violations.Empty() {
		return nil, &ValidationError{Violations: violations}
	}
	if date.IsZero() {
		date = time.Now()
	}
	var out *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, invoiceID)
		if err != nil {
			return err
		}
		if inv.IsFrozen() {
			return stateConflict("cannot record a payment on a " + string(inv.Status) + " invoice")
		}
		payment := models.Payment{InvoiceID: inv.ID, Date: date, Amount: amount, Method: method}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		inv.AmountPaid += amount
		updates := map[string]any{"amount_paid": inv.AmountPaid}
		if inv.AmountPaid >= inv.Total-billing.MonetaryEpsilon && !inv.IsPaid() {
			inv.Status = models.InvoiceStatusPaid
			updates["status"] = models.InvoiceStatusPaid
			if inv.PaymentDate == nil {
				inv.PaymentDate = &date
				updates["payment_date"] = date
			}
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(updates).Error; err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// MarkPaid is the explicit paid transition: it stamps the payment date if none
// was supplied and records the full amount when no partial payment exists.
// This is also the hook point for the payment-received notification.
func (s *InvoiceService) MarkPaid(id uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if inv.IsCancelled() {
			return stateConflict("cannot mark a cancelled invoice paid")
		}
		now := time.Now()
		updates := map[string]any{"status": models.InvoiceStatusPaid}
		if inv.PaymentDate == nil {
			inv.PaymentDate = &now
			updates["payment_date"] = now
		}
		if inv.AmountPaid == 0 {
			inv.AmountPaid = inv.Total
			updates["amount_paid"] = inv.Total
		}
		inv.Status = models.InvoiceStatusPaid
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(updates).Error; err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// ApplyLateFee applies the 30-day / 2% late fee. Idempotent: applying twice
// leaves the invoice unchanged. The fee lands through a conditional update so
// two concurrent applications cannot both add it.
func (s *InvoiceService) ApplyLateFee(id uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if inv.LateFeeApplied {
			out = inv
			return nil
		}
		now := time.Now()
		if !billing.IsEligibleForLateFee(inv, now) {
			return stateConflict("invoice is not eligible for a late fee")
		}
		fee := billing.LateFeeFor(inv)
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND late_fee_applied = ?", inv.ID, false).
			Updates(map[string]any{
				"late_fee_applied": true,
				"late_fee_amount":  fee,
				"total":            gorm.Expr("total + ?", fee),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			billing.ApplyLateFee(inv, now)
		}
		out = inv
		return nil
	})
	return out, err
}

// RemoveLateFee reverses a previously applied fee, restoring the total to its
// pre-application value. No-op when no fee is applied.
func (s *InvoiceService) RemoveLateFee(id uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if !inv.LateFeeApplied {
			out = inv
			return nil
		}
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND late_fee_applied = ?", inv.ID, true).
			Updates(map[string]any{
				"late_fee_applied": false,
				"late_fee_amount":  0,
				"total":            gorm.Expr("total - late_fee_amount"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			billing.RemoveLateFee(inv)
		}
		out = inv
		return nil
	})
	return out, err
}

// SetNotes updates the one field that stays writable on frozen invoices.
func (s *InvoiceService) SetNotes(id uint, notes string) error {
	res := s.db.Model(&models.Invoice{}).Where("id = ?", id).Update("notes", notes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Save writes item/date/amount changes on a mutable invoice and refreshes the
// monetary tuple atomically. Frozen invoices only accept SetNotes.
func (s *InvoiceService) Save(inv *models.Invoice) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, inv.ID)
		if err != nil {
			return err
		}
		if current.IsFrozen() {
			return stateConflict("invoice in status " + string(current.Status) + " is frozen")
		}
		var subtotal float64
		for i := range inv.Items {
			inv.Items[i].RecomputeTotal()
			subtotal += inv.Items[i].Total
		}
		tpsRate, tvqRate := DefaultTPSRate, DefaultTVQRate
		if inv.QuoteID != nil {
			var q models.Quote
			if err := tx.First(&q, *inv.QuoteID).Error; err == nil {
				tpsRate, tvqRate = q.TPSRate, q.TVQRate
			}
		}
		tps, tvq := pricing.TaxAmounts(subtotal, tpsRate, tvqRate)
		total := subtotal + tps + tvq
		if inv.LateFeeApplied {
			total += inv.LateFeeAmount
		}
		inv.Subtotal, inv.TPSAmount, inv.TVQAmount, inv.Total = subtotal, tps, tvq, total
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(inv).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]any{
			"subtotal":   subtotal,
			"tps_amount": tps,
			"tvq_amount": tvq,
			"total":      total,
		}).Error
	})
}

// Cancel marks the invoice cancelled and releases its number for reuse.
// Disallowed once paid.
func (s *InvoiceService) Cancel(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if inv.IsPaid() {
			return stateConflict("cannot cancel a paid invoice")
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]any{
			"status":          models.InvoiceStatusCancelled,
			"number_reusable": true,
		}).Error
	})
}

// Delete refuses to remove an invoice that received any payment. Expenses
// billed through the invoice stay marked billed.
func (s *InvoiceService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if inv.AmountPaid > 0 {
			return stateConflict("cannot delete an invoice with recorded payments")
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Invoice{}, id).Error
	})
}

func (s *InvoiceService) load(tx *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := tx.First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}
