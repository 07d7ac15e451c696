/**
 * @description
 * HTTP router setup for the ledger service using go-chi/chi.
 */
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// AuthOptions configures protection of the administrative routes.
type AuthOptions struct {
	InternalAPIKey     string
	InternalAPIKeyHash string
	AdminJWKSURL       string
}

// NewRouter creates a new Chi router and registers the ledger routes.
func NewRouter(h *Handler, auth AuthOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.handleHealth)

	r.Post("/onboard", h.handleOnboard)
	r.Post("/pay/chit-funds", h.handleChitPayment)
	r.Post("/loan/apply", h.handleLoanApply)
	r.Post("/loan/pay", h.handleLoanPayment)

	r.Get("/users/details", h.handleListUsers)
	r.Get("/users/details/{id}", h.handleGetUserDetails)
	r.Get("/users/search", h.handleSearchUsers)
	r.Get("/chits/unpaid", h.handleUnpaidChits)
	r.Get("/analytics", h.handleAnalytics)

	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(auth.InternalAPIKey, auth.InternalAPIKeyHash))
		r.Post("/update/weekly-chits", h.handleWeeklyCycle)

		// Deactivations are operator actions; the scheduler only runs the cycle.
		r.Group(func(r chi.Router) {
			if auth.AdminJWKSURL != "" {
				r.Use(AdminJWTMiddleware(auth.AdminJWKSURL))
			}
			r.Post("/chits/deactive", h.handleDeactivateChit)
			r.Post("/loan/deactive", h.handleDeactivateLoan)
		})
	})

	return r
}
