package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ateliermtl/studio-billing/internal/billing"
	"github.com/ateliermtl/studio-billing/internal/httpx"
	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/services"
)

// InvoiceHandler exposes invoice creation, payments and late-fee actions.
type InvoiceHandler struct {
	DB  *gorm.DB
	Svc *services.InvoiceService
}

func NewInvoiceHandler(db *gorm.DB, svc *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Svc: svc}
}

// List: GET /invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.Model(&models.Invoice{})
	if v := r.URL.Query().Get("quote_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			dbq = dbq.Where("quote_id = ?", id)
		}
	}
	var total int64
	dbq.Count(&total)
	var invs []models.Invoice
	if err := dbq.Preload("Items").Order("id desc").Limit(limit).Offset(offset).Find(&invs).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_invoices", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "total": total, "limit": limit, "offset": offset})
}

// Get: GET /invoices/get?id=... - includes the derived overdue figures.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, days, err := h.Svc.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice":          inv,
		"days_overdue":     days,
		"late_fee_allowed": billing.IsEligibleForLateFee(inv, time.Now()),
	})
}

type createFromQuoteRequest struct {
	QuoteID     uint    `json:"quote_id"`
	InvoiceType string  `json:"invoice_type"`
	AmountMode  string  `json:"amount_mode,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
	FixedAmount float64 `json:"fixed_amount,omitempty"`
	ExpenseIDs  []uint  `json:"expense_ids,omitempty"`
	DueDate     string  `json:"due_date,omitempty"` // 2006-01-02
}

// CreateFromQuote: POST /invoices/from-quote
func (h *InvoiceHandler) CreateFromQuote(w http.ResponseWriter, r *http.Request) {
	var req createFromQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		var err error
		dueDate, err = time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"due_date": "invalid_date"})
			return
		}
	}
	inv, err := h.Svc.CreateFromQuote(services.CreateFromQuoteRequest{
		QuoteID:     req.QuoteID,
		Type:        models.InvoiceType(req.InvoiceType),
		Mode:        billing.AmountMode(req.AmountMode),
		Percentage:  req.Percentage,
		FixedAmount: req.FixedAmount,
		ExpenseIDs:  req.ExpenseIDs,
		DueDate:     dueDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

type createStandaloneRequest struct {
	Items []struct {
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
		UnitPrice   float64 `json:"unit_price"`
	} `json:"items"`
}

// Create: POST /invoices - standalone invoice.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStandaloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	items := make([]models.InvoiceItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.InvoiceItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	inv, err := h.Svc.CreateStandalone(items, time.Time{}, time.Time{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Send: POST /invoices/send?id=...
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.MarkSent(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type paymentRequest struct {
	InvoiceID uint    `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date,omitempty"` // 2006-01-02
	Method    string  `json:"method"`
}

// RecordPayment: POST /invoices/payments
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var date time.Time
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"date": "invalid_date"})
			return
		}
	}
	inv, err := h.Svc.RecordPayment(req.InvoiceID, req.Amount, date, req.Method)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": inv.Status, "amount_paid": inv.AmountPaid, "payment_date": inv.PaymentDate})
}

// MarkPaid: POST /invoices/paid?id=...
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.MarkPaid(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": inv.Status, "amount_paid": inv.AmountPaid, "payment_date": inv.PaymentDate})
}

// ApplyLateFee: POST /invoices/latefee/apply?id=... - idempotent.
func (h *InvoiceHandler) ApplyLateFee(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.ApplyLateFee(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"late_fee_applied": inv.LateFeeApplied, "late_fee_amount": inv.LateFeeAmount, "total": inv.Total})
}

// RemoveLateFee: POST /invoices/latefee/remove?id=... - idempotent.
func (h *InvoiceHandler) RemoveLateFee(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.RemoveLateFee(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"late_fee_applied": inv.LateFeeApplied, "late_fee_amount": inv.LateFeeAmount, "total": inv.Total})
}

// Cancel: POST /invoices/cancel?id=...
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Cancel(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Delete: POST /invoices/delete?id=...
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// SetNotes: POST /invoices/notes?id=... - allowed in every status.
func (h *InvoiceHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := h.Svc.SetNotes(id, req.Notes); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
