package services

import (
	"errors"
	"testing"
	"time"

	"github.com/ateliermtl/studio-billing/internal/billing"
	"github.com/ateliermtl/studio-billing/internal/models"
)

func TestInvoiceCreateFromQuote_Deposit(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)

	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID,
		Type:    models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if inv.Number != "INV-0001" {
		t.Errorf("Number = %s, want INV-0001", inv.Number)
	}
	if inv.Status != models.InvoiceStatusDraft {
		t.Errorf("Status = %s, want draft", inv.Status)
	}
	// 50% deposit of a tax-free 1000 quote.
	if !almostEqual(inv.Subtotal, 500) || !almostEqual(inv.Total, 500) {
		t.Errorf("Subtotal/Total = %f/%f, want 500/500", inv.Subtotal, inv.Total)
	}
	if !inv.DueDate.After(inv.IssueDate) {
		t.Error("default due date must land after the issue date")
	}

	// One deposit per quote.
	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID,
		Type:    models.InvoiceTypeDeposit,
	}); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict for second deposit", err)
	}
}

func TestInvoiceCreateFromQuote_FinalClosesBalance(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)

	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	final, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypeFinal,
		Mode:       billing.AmountModePercentage,
		Percentage: 100,
	})
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if !almostEqual(final.Total, 500) {
		t.Errorf("final Total = %f, want the remaining 500", final.Total)
	}

	bal, invoices, err := svc.Balance(q.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("len(invoices) = %d, want 2", len(invoices))
	}
	if !bal.IsFullyInvoiced {
		t.Errorf("balance = %+v, want fully invoiced", bal)
	}
	if bal.CanCreateDeposit() {
		t.Error("deposit must stay blocked once one exists")
	}
}

func TestInvoiceCreateFromQuote_FixedCappedAtRemaining(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)

	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:     q.ID,
		Type:        models.InvoiceTypePartial,
		Mode:        billing.AmountModeFixed,
		FixedAmount: 9999,
	})
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if !almostEqual(inv.Subtotal, 500) {
		t.Errorf("Subtotal = %f, want capped at remaining 500", inv.Subtotal)
	}
}

func TestInvoiceCreateFromQuote_ExpensesRollUpAndStayBilled(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)

	expenses := []models.BillableExpense{
		{QuoteID: q.ID, Description: "Stock photos", Amount: 80, IsBillable: true},
		{QuoteID: q.ID, Description: "Fonts", Amount: 120, IsBillable: true},
	}
	for i := range expenses {
		if err := conn.Create(&expenses[i]).Error; err != nil {
			t.Fatalf("seed expense: %v", err)
		}
	}

	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypeFinal,
		Mode:       billing.AmountModePercentage,
		Percentage: 100,
		ExpenseIDs: []uint{expenses[0].ID, expenses[1].ID},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 1000 base + 200 of expenses, one line per expense.
	if !almostEqual(inv.Subtotal, 1200) {
		t.Errorf("Subtotal = %f, want 1200", inv.Subtotal)
	}
	if len(inv.Items) != 3 {
		t.Errorf("len(Items) = %d, want base line + 2 expense lines", len(inv.Items))
	}

	var billed int64
	if err := conn.Model(&models.BillableExpense{}).
		Where("quote_id = ? AND is_billed = ?", q.ID, true).Count(&billed).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if billed != 2 {
		t.Fatalf("billed expenses = %d, want 2", billed)
	}

	// Already-billed expenses cannot be selected again.
	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypePartial,
		Mode:       billing.AmountModeFixed,
		ExpenseIDs: []uint{expenses[0].ID},
	}); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for billed expense", err)
	}

	// Deleting the invoice does not unbill the expenses.
	if err := svc.Delete(inv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := conn.Model(&models.BillableExpense{}).
		Where("quote_id = ? AND is_billed = ?", q.ID, true).Count(&billed).Error; err != nil {
		t.Fatalf("recount: %v", err)
	}
	if billed != 2 {
		t.Fatalf("billed expenses after delete = %d, want still 2", billed)
	}
}

func TestInvoiceCreateFromQuote_BadRequests(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)

	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{Type: models.InvoiceTypeDeposit}); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for missing quote id", err)
	}
	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: 9999, Type: models.InvoiceTypeDeposit,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	q := seedAcceptedQuote(t, conn)
	if _, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypePartial,
		Mode:       billing.AmountModePercentage,
		Percentage: 150,
	}); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for percentage out of range", err)
	}
}

func TestInvoiceRecordPayment_FlipsWhenCovered(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	partial, err := svc.RecordPayment(inv.ID, 200, time.Time{}, "interac")
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if partial.Status == models.InvoiceStatusPaid {
		t.Error("partial payment must not flip the invoice to paid")
	}
	if !almostEqual(partial.AmountPaid, 200) {
		t.Errorf("AmountPaid = %f, want 200", partial.AmountPaid)
	}

	paid, err := svc.RecordPayment(inv.ID, 300, time.Time{}, "interac")
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Errorf("Status = %s, want paid once the total is covered", paid.Status)
	}
	if paid.PaymentDate == nil {
		t.Error("completing payment must stamp the payment date")
	}

	var payments int64
	if err := conn.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&payments).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if payments != 2 {
		t.Errorf("payments = %d, want 2", payments)
	}

	if _, err := svc.RecordPayment(inv.ID, 0, time.Time{}, ""); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for non-positive amount", err)
	}
}

func TestInvoiceRecordPayment_FrozenRejected(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.MarkPaid(inv.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := svc.RecordPayment(inv.ID, 50, time.Time{}, "cash"); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict paying a paid invoice", err)
	}
	var stored models.Invoice
	if err := conn.First(&stored, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !almostEqual(stored.AmountPaid, stored.Total) {
		t.Errorf("AmountPaid = %f, want untouched %f", stored.AmountPaid, stored.Total)
	}

	cancelled, err := svc.CreateStandalone([]models.InvoiceItem{
		{Description: "Consulting", Quantity: 1, UnitPrice: 100},
	}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("standalone: %v", err)
	}
	if err := svc.Cancel(cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.RecordPayment(cancelled.ID, 50, time.Time{}, "cash"); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict paying a cancelled invoice", err)
	}
}

func TestInvoiceMarkPaid_Defaults(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.MarkPaid(inv.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Errorf("Status = %s, want paid", paid.Status)
	}
	if paid.PaymentDate == nil {
		t.Error("MarkPaid must stamp a payment date")
	}
	if !almostEqual(paid.AmountPaid, paid.Total) {
		t.Errorf("AmountPaid = %f, want the full total %f", paid.AmountPaid, paid.Total)
	}

	// Frozen once paid.
	paid.Notes = "x"
	if err := svc.Save(paid); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict saving a paid invoice", err)
	}
	// Notes stay writable through the dedicated path.
	if err := svc.SetNotes(paid.ID, "thanks!"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
}

func TestInvoiceCancel_ReleasesNumber(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	first, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Cancel(first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var cancelled models.Invoice
	if err := conn.First(&cancelled, first.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cancelled.Status != models.InvoiceStatusCancelled || !cancelled.NumberReusable {
		t.Fatalf("cancelled invoice = %+v, want cancelled with reusable number", cancelled)
	}

	// The cancelled deposit still counts toward the invoiced total, so only a
	// standalone invoice can demonstrate number reuse here.
	next, err := svc.CreateStandalone([]models.InvoiceItem{
		{Description: "Consulting", Quantity: 1, UnitPrice: 100},
	}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("standalone: %v", err)
	}
	if next.Number != first.Number {
		t.Errorf("Number = %s, want the released %s", next.Number, first.Number)
	}
}

func TestInvoiceCancel_PaidRejected(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.MarkPaid(inv.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := svc.Cancel(inv.ID); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict cancelling a paid invoice", err)
	}
}

func TestInvoiceDelete_WithPaymentsRejected(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.RecordPayment(inv.ID, 50, time.Time{}, "cash"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := svc.Delete(inv.ID); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict deleting a paid-against invoice", err)
	}
}

func TestInvoiceLateFee_RoundTrip(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)

	// Due 40 days ago: past the 30-day grace window.
	due := time.Now().AddDate(0, 0, -40)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypeFinal,
		Mode:       billing.AmountModePercentage,
		Percentage: 100,
		IssueDate:  due.AddDate(0, 0, -defaultDueDays),
		DueDate:    due,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	originalTotal := inv.Total

	applied, err := svc.ApplyLateFee(inv.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	fee := inv.Subtotal * billing.LateFeeRate
	if !applied.LateFeeApplied || !almostEqual(applied.LateFeeAmount, fee) {
		t.Fatalf("late fee = %+v, want applied with amount %f", applied, fee)
	}
	if !almostEqual(applied.Total, originalTotal+fee) {
		t.Errorf("Total = %f, want %f", applied.Total, originalTotal+fee)
	}

	// Idempotent: a second application changes nothing.
	again, err := svc.ApplyLateFee(inv.ID)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if !almostEqual(again.Total, originalTotal+fee) {
		t.Errorf("Total after re-apply = %f, want unchanged %f", again.Total, originalTotal+fee)
	}

	removed, err := svc.RemoveLateFee(inv.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.LateFeeApplied || !almostEqual(removed.Total, originalTotal) {
		t.Errorf("after removal = %+v, want original total %f restored", removed, originalTotal)
	}
	// Removing again is a no-op.
	if _, err := svc.RemoveLateFee(inv.ID); err != nil {
		t.Fatalf("re-remove: %v", err)
	}
}

func TestInvoiceLateFee_IneligibleRejected(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID: q.ID, Type: models.InvoiceTypeDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Due date 30 days out: nowhere near overdue.
	if _, err := svc.ApplyLateFee(inv.ID); !IsStateConflict(err) {
		t.Fatalf("err = %v, want state conflict for an invoice inside the grace window", err)
	}
}

func TestInvoiceGet_FlipsSentToOverdue(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)
	q := seedAcceptedQuote(t, conn)
	due := time.Now().AddDate(0, 0, -5)
	inv, err := svc.CreateFromQuote(CreateFromQuoteRequest{
		QuoteID:    q.ID,
		Type:       models.InvoiceTypeFinal,
		Mode:       billing.AmountModePercentage,
		Percentage: 100,
		IssueDate:  due.AddDate(0, 0, -defaultDueDays),
		DueDate:    due,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.MarkSent(inv.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, days, err := svc.Get(inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.InvoiceStatusOverdue {
		t.Errorf("Status = %s, want overdue", got.Status)
	}
	if days != 5 {
		t.Errorf("days overdue = %d, want 5", days)
	}
}

func TestInvoiceCreateStandalone(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewInvoiceService(conn)

	inv, err := svc.CreateStandalone([]models.InvoiceItem{
		{Description: "Consulting day", Quantity: 2, UnitPrice: 400},
	}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !almostEqual(inv.Subtotal, 800) {
		t.Errorf("Subtotal = %f, want 800", inv.Subtotal)
	}
	// Québec taxes at the default rates.
	if !almostEqual(inv.TPSAmount, 40) || !almostEqual(inv.TVQAmount, 79.8) {
		t.Errorf("taxes = %f/%f, want 40/79.8", inv.TPSAmount, inv.TVQAmount)
	}
	if !almostEqual(inv.Total, 919.8) {
		t.Errorf("Total = %f, want 919.8", inv.Total)
	}
	if inv.QuoteID != nil {
		t.Error("standalone invoices carry no quote")
	}

	if _, err := svc.CreateStandalone(nil, time.Time{}, time.Time{}); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for empty items", err)
	}
	if _, err := svc.CreateStandalone([]models.InvoiceItem{
		{Description: "  ", Quantity: 1, UnitPrice: 100},
	}, time.Time{}, time.Time{}); !IsValidation(err) {
		t.Fatalf("err = %v, want validation error for blank description", err)
	}
}
