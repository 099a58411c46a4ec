package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/ateliermtl/studio-billing/internal/httpx"
	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/services"
)

// QuoteHandler exposes the authoring side of quotes.
type QuoteHandler struct {
	DB       *gorm.DB
	Svc      *services.QuoteService
	Invoices *services.InvoiceService
}

func NewQuoteHandler(db *gorm.DB, svc *services.QuoteService, invoices *services.InvoiceService) *QuoteHandler {
	return &QuoteHandler{DB: db, Svc: svc, Invoices: invoices}
}

func idParam(r *http.Request) (uint, bool) {
	idStr := r.URL.Query().Get("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// List: GET /quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
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
	var total int64
	h.DB.Model(&models.Quote{}).Count(&total)
	var quotes []models.Quote
	if err := h.DB.Order("id desc").Limit(limit).Offset(offset).Find(&quotes).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_quotes", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": total, "limit": limit, "offset": offset})
}

// Get: GET /quotes/get?id=...
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, totals, err := h.Svc.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quote": q, "totals": totals})
}

// Create: POST /quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var q models.Quote
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	q.ID = 0
	q.Status = models.QuoteStatusDraft
	q.PublicToken = nil
	if err := h.Svc.Create(&q); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

// Update: POST /quotes/update?id=... - full content write, rejected once the
// quote reached a terminal state.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var q models.Quote
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	q.ID = id
	if err := h.Svc.Save(&q); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Send: POST /quotes/send?id=... - issues the public token on first send.
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Svc.Send(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": q.Status, "public_token": q.PublicToken})
}

// Expire: POST /quotes/expire?id=...
func (h *QuoteHandler) Expire(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Expire(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "expired"})
}

// Balance: GET /quotes/balance?id=... - how much of the quote is invoiced and
// which invoice types are still permitted.
func (h *QuoteHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	bal, invoices, err := h.Invoices.Balance(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quote_total":        bal.QuoteTotal,
		"total_invoiced":     bal.TotalInvoiced,
		"remaining_balance":  bal.RemainingBalance,
		"has_deposit":        bal.HasDeposit,
		"is_fully_invoiced":  bal.IsFullyInvoiced,
		"can_create_deposit": bal.CanCreateDeposit(),
		"existing_invoices":  invoices,
	})
}
