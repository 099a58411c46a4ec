package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ateliermtl/studio-billing/internal/httpx"
	"github.com/ateliermtl/studio-billing/internal/models"
	"github.com/ateliermtl/studio-billing/internal/pricing"
	"github.com/ateliermtl/studio-billing/internal/services"
)

// PublicHandler serves the client-facing quote view, reached only through the
// quote's public token. Viewing a sent quote flips it to viewed; approving
// persists the client's selections.
type PublicHandler struct {
	Svc *services.QuoteService
}

func NewPublicHandler(svc *services.QuoteService) *PublicHandler {
	return &PublicHandler{Svc: svc}
}

// Route dispatches /q/{token}[/approve|/refuse].
func (h *PublicHandler) Route(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/q/")
	token, action, _ := strings.Cut(rest, "/")
	if token == "" {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.view(w, r, token)
	case action == "approve" && r.Method == http.MethodPost:
		h.approve(w, r, token)
	case action == "refuse" && r.Method == http.MethodPost:
		h.refuse(w, token)
	default:
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

// view returns the quote and its client-context totals. Optional à-la-carte
// toggles may be passed as ?select=itemID for a live recomputation.
func (h *PublicHandler) view(w http.ResponseWriter, r *http.Request, token string) {
	q, err := h.Svc.GetByToken(token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sel := pricing.ClientSelection{Selected: map[uint]bool{}, Variants: map[uint]int{}}
	for _, v := range r.URL.Query()["select"] {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			sel.Selected[uint(id)] = true
		}
	}
	totals := h.Svc.ClientTotals(q, sel)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quote":  q,
		"totals": totals,
	})
}

type approveRequest struct {
	// Keys are item IDs as JSON object keys (strings).
	Selections        map[string]bool `json:"selections"`
	VariantSelections map[string]int  `json:"variant_selections"`
}

func (h *PublicHandler) approve(w http.ResponseWriter, r *http.Request, token string) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	selections := map[uint]bool{}
	for k, v := range req.Selections {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"selections": "invalid_item_id"})
			return
		}
		selections[uint(id)] = v
	}
	variants := map[uint]int{}
	for k, v := range req.VariantSelections {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"variant_selections": "invalid_item_id"})
			return
		}
		variants[uint(id)] = v
	}
	q, err := h.Svc.Approve(token, selections, variants)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":   models.QuoteStatusAccepted,
		"subtotal": q.Subtotal,
		"total":    q.Total,
	})
}

func (h *PublicHandler) refuse(w http.ResponseWriter, token string) {
	q, err := h.Svc.Refuse(token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": q.Status})
}
