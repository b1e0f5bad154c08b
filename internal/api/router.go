/**
 * @description
 * HTTP router setup for the funding service using go-chi/chi. Webhook
 * endpoints are registered outside the authenticated groups; their
 * authentication is the provider signature, not a bearer token.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the funding-service routes.
func NewRouter(h *FundingHandlers, jwtSecret, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-Api-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Funding service is healthy"))
	})

	// Provider webhooks authenticate via signature verification.
	r.Post("/webhooks/stripe", h.StripeWebhookHandler)
	r.Post("/webhooks/paypal", h.PayPalWebhookHandler)

	// Public project view for campaign pages.
	r.Get("/projects/{projectID}", h.GetProjectHandler)
	r.Get("/projects/{projectID}/supports", h.ListProjectSupportsHandler)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Post("/projects", h.CreateProjectHandler)
		r.Post("/projects/{projectID}/checkout", h.CreateCheckoutHandler)
		r.Post("/verifications", h.SubmitVerificationHandler)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalKey))
		r.Post("/projects/{projectID}/approve", h.DecideProjectHandler(true))
		r.Post("/projects/{projectID}/reject", h.DecideProjectHandler(false))
		r.Post("/verifications/{verificationID}/approve", h.DecideVerificationHandler(true))
		r.Post("/verifications/{verificationID}/reject", h.DecideVerificationHandler(false))
		r.Post("/payouts/run", h.RunPayoutsHandler)
		r.Post("/payouts/{payoutID}/paid", h.MarkPayoutPaidHandler)
	})

	return r
}
