package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ateliermtl/studio-billing/internal/handlers"
	"github.com/ateliermtl/studio-billing/internal/httpx"
	"github.com/ateliermtl/studio-billing/internal/middleware"
	"github.com/ateliermtl/studio-billing/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	quoteSvc := services.NewQuoteService(db)
	invoiceSvc := services.NewInvoiceService(db)

	qh := handlers.NewQuoteHandler(db, quoteSvc, invoiceSvc)
	mux.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			qh.List(w, r)
		case http.MethodPost:
			qh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/quotes/get", qh.Get)
	mux.HandleFunc("/quotes/update", qh.Update)
	mux.HandleFunc("/quotes/send", qh.Send)
	mux.HandleFunc("/quotes/expire", qh.Expire)
	mux.HandleFunc("/quotes/balance", qh.Balance)

	// Public client-facing routes, gated only by the quote token.
	ph := handlers.NewPublicHandler(quoteSvc)
	mux.HandleFunc("/q/", ph.Route)

	ih := handlers.NewInvoiceHandler(db, invoiceSvc)
	mux.HandleFunc("/invoices", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ih.List(w, r)
		case http.MethodPost:
			ih.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/invoices/get", ih.Get)
	mux.HandleFunc("/invoices/from-quote", ih.CreateFromQuote)
	mux.HandleFunc("/invoices/send", ih.Send)
	mux.HandleFunc("/invoices/payments", ih.RecordPayment)
	mux.HandleFunc("/invoices/paid", ih.MarkPaid)
	mux.HandleFunc("/invoices/latefee/apply", ih.ApplyLateFee)
	mux.HandleFunc("/invoices/latefee/remove", ih.RemoveLateFee)
	mux.HandleFunc("/invoices/cancel", ih.Cancel)
	mux.HandleFunc("/invoices/delete", ih.Delete)
	mux.HandleFunc("/invoices/notes", ih.SetNotes)

	return middleware.Recover(logger)(middleware.Logging(logger)(mux))
}
