package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	couponHandler *handler.CouponHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware order: Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api/coupons", func(r chi.Router) {
		r.Get("/", couponHandler.List)
		r.Post("/", couponHandler.Create)
		r.Post("/preview", couponHandler.Preview)
		r.Post("/redeem", couponHandler.Redeem)
		r.Get("/{code}", couponHandler.GetByCode)
		r.Put("/{code}", couponHandler.Update)
		r.Delete("/{code}", couponHandler.Delete)
	})

	return r
}
