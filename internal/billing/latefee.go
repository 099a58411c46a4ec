package billing

import (
	"time"

	"github.com/ateliermtl/studio-billing/internal/models"
)

// Late-fee policy constants. Both are fixed policy, not configuration.
const (
	LateFeeRate      = 0.02
	LateFeeGraceDays = 30
)

// DaysOverdue returns whole days past the due date, or 0 for paid and
// cancelled invoices.
func DaysOverdue(inv *models.Invoice, now time.Time) int {
	if inv.IsPaid() || inv.IsCancelled() {
		return 0
	}
	days := int(now.Sub(inv.DueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsEligibleForLateFee reports whether the fee may be applied right now.
func IsEligibleForLateFee(inv *models.Invoice, now time.Time) bool {
	return DaysOverdue(inv, now) >= LateFeeGraceDays && !inv.LateFeeApplied && !inv.IsPaid()
}

// LateFeeFor returns the fee amount: a flat 2% of the invoice subtotal.
func LateFeeFor(inv *models.Invoice) float64 {
	return inv.Subtotal * LateFeeRate
}

// ApplyLateFee mutates the invoice in place and reports whether anything
// changed. Applying to an already-fee'd or ineligible invoice is a no-op, so
// the transition is idempotent.
func ApplyLateFee(inv *models.Invoice, now time.Time) bool {
	if !IsEligibleForLateFee(inv, now) {
		return false
	}
	fee := LateFeeFor(inv)
	inv.LateFeeApplied = true
	inv.LateFeeAmount = fee
	inv.Total += fee
	return true
}

// RemoveLateFee reverses ApplyLateFee, restoring the total to exactly its
// pre-application value. No-op when no fee is applied.
func RemoveLateFee(inv *models.Invoice) bool {
	if !inv.LateFeeApplied {
		return false
	}
	inv.Total -= inv.LateFeeAmount
	inv.LateFeeApplied = false
	inv.LateFeeAmount = 0
	return true
}
