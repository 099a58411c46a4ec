package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ateliermtl/studio-billing/internal/httpx"
)

// Recover turns handler panics into a 500 JSON response.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
					httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
