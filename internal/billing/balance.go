// Package billing covers the invoice side of the engine: balance tracking
// across the invoices raised against a quote, invoice generation with
// billable-expense roll-up, and the late-fee policy.
package billing

import "github.com/ateliermtl/studio-billing/internal/models"

// MonetaryEpsilon is the threshold under which a remaining balance counts as
// fully invoiced.
const MonetaryEpsilon = 0.01

// Balance summarizes how much of a quote's total has been invoiced.
type Balance struct {
	QuoteTotal       float64 `json:"quote_total"`
	TotalInvoiced    float64 `json:"total_invoiced"`
	RemainingBalance float64 `json:"remaining_balance"`
	HasDeposit       bool    `json:"has_deposit"`
	IsFullyInvoiced  bool    `json:"is_fully_invoiced"`
}

// ComputeBalance sums every invoice raised against the quote, regardless of
// status: cancelled invoices still count toward TotalInvoiced. That matches
// the system's observed behavior and is covered explicitly by tests.
func ComputeBalance(quoteTotal float64, invoices []models.Invoice) Balance {
	b := Balance{QuoteTotal: quoteTotal}
	for i := range invoices {
		b.TotalInvoiced += invoices[i].Total
		if invoices[i].InvoiceType == models.InvoiceTypeDeposit {
			b.HasDeposit = true
		}
	}
	b.RemainingBalance = quoteTotal - b.TotalInvoiced
	if b.RemainingBalance < 0 {
		b.RemainingBalance = 0
	}
	b.IsFullyInvoiced = b.RemainingBalance < MonetaryEpsilon
	return b
}

// CanCreateDeposit reports whether a deposit invoice may still be raised.
func (b Balance) CanCreateDeposit() bool {
	return !b.HasDeposit && !b.IsFullyInvoiced
}
