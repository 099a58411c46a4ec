package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/pricing"
)

// AmountMode selects how a final/partial invoice's base amount is entered.
type AmountMode string

const (
	AmountModePercentage AmountMode = "percentage"
	AmountModeFixed      AmountMode = "fixed"
)

var (
	ErrDepositExists    = errors.New("a deposit invoice already exists for this quote")
	ErrNothingToInvoice = errors.New("resulting invoice amount is not positive")
	ErrBadPercentage    = errors.New("percentage must be between 0 and 100")
)

// GenerateRequest describes an invoice to materialize from a quote.
type GenerateRequest struct {
	Type        models.InvoiceType
	Mode        AmountMode
	Percentage  float64
	FixedAmount float64
	// Expenses are the selected unbilled billable expenses to fold in.
	// Deposit invoices never carry expenses.
	Expenses  []models.BillableExpense
	IssueDate time.Time
	DueDate   time.Time
}

// BuildInvoice combines the balance-derived base amount with the expense
// roll-up and the quote's tax rates into a draft invoice. It is pure: marking
// expenses billed and persisting the invoice belong to the service layer.
//
// When the quote is already fully invoiced the base amount is forced to 0 and
// the invoice may only carry expenses (expenses-only mode).
func BuildInvoice(q *models.Quote, bal Balance, req GenerateRequest) (*models.Invoice, error) {
	var base float64
	switch req.Type {
	case models.InvoiceTypeDeposit:
		if bal.HasDeposit {
			return nil, ErrDepositExists
		}
		base = pricing.DepositAmount(q.Total, q.DepositPercent)
	default:
		switch req.Mode {
		case AmountModeFixed:
			base = req.FixedAmount
			if base > bal.RemainingBalance {
				base = bal.RemainingBalance
			}
		default:
			if req.Percentage < 0 || req.Percentage > 100 {
				return nil, ErrBadPercentage
			}
			base = bal.RemainingBalance * req.Percentage / 100
		}
	}
	if bal.IsFullyInvoiced {
		base = 0
	}

	var expensesTotal float64
	expenses := req.Expenses
	if req.Type == models.InvoiceTypeDeposit {
		expenses = nil
	}
	for i := range expenses {
		expensesTotal += expenses[i].Amount
	}

	subtotal := base + expensesTotal
	if subtotal <= 0 && !(bal.IsFullyInvoiced && len(expenses) > 0) {
		return nil, ErrNothingToInvoice
	}

	tps, tvq := pricing.TaxAmounts(subtotal, q.TPSRate, q.TVQRate)
	inv := &models.Invoice{
		QuoteID:     &q.ID,
		InvoiceType: req.Type,
		Status:      models.InvoiceStatusDraft,
		Subtotal:    subtotal,
		TPSAmount:   tps,
		TVQAmount:   tvq,
		Total:       subtotal + tps + tvq,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
	}

	if base > 0 || len(expenses) == 0 {
		inv.Items = append(inv.Items, models.InvoiceItem{
			Description: baseLineDescription(q, req.Type),
			Quantity:    1,
			UnitPrice:   base,
			Total:       base,
		})
	}
	for i := range expenses {
		inv.Items = append(inv.Items, models.InvoiceItem{
			Description: expenseLineDescription(&expenses[i]),
			Quantity:    1,
			UnitPrice:   expenses[i].Amount,
			Total:       expenses[i].Amount,
		})
	}
	return inv, nil
}

func baseLineDescription(q *models.Quote, t models.InvoiceType) string {
	switch t {
	case models.InvoiceTypeDeposit:
		return fmt.Sprintf("Deposit (%.0f%%) - quote #%d", q.DepositPercent, q.ID)
	case models.InvoiceTypeFinal:
		return fmt.Sprintf("Final payment - quote #%d", q.ID)
	default:
		return fmt.Sprintf("Partial payment - quote #%d", q.ID)
	}
}

func expenseLineDescription(e *models.BillableExpense) string {
	if e.Description != "" {
		return "Expense: " + e.Description
	}
	return fmt.Sprintf("Expense #%d", e.ID)
}
