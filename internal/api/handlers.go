/**
 * @description
 * This file contains the HTTP handlers for the funding service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fundmythesis/funding-service/internal/app"
	"github.com/fundmythesis/funding-service/internal/domain"
	"github.com/fundmythesis/funding-service/internal/store"
)

// FundingHandlers holds the application service that handlers will use.
type FundingHandlers struct {
	service *app.Service

	stripeVerifier  StripeEventVerifier
	paypalVerifier  PayPalWebhookVerifier
	signatureBypass bool
}

// NewFundingHandlers creates a new instance of FundingHandlers.
func NewFundingHandlers(service *app.Service, stripeVerifier StripeEventVerifier, paypalVerifier PayPalWebhookVerifier, signatureBypass bool) *FundingHandlers {
	return &FundingHandlers{
		service:         service,
		stripeVerifier:  stripeVerifier,
		paypalVerifier:  paypalVerifier,
		signatureBypass: signatureBypass,
	}
}

// CreateProjectHandler handles researcher project submissions.
func (h *FundingHandlers) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var payload domain.CreateProjectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_project outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	project, err := h.service.CreateProject(r.Context(), ownerID, payload)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("level=warn component=api endpoint=create_project outcome=failed owner_id=%s err=%v", ownerID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

// GetProjectHandler returns a project with its progress figures.
func (h *FundingHandlers) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	view, err := h.service.GetProjectView(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api endpoint=get_project outcome=failed project_id=%s err=%v", projectID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ListProjectSupportsHandler returns a project's confirmed contributions.
func (h *FundingHandlers) ListProjectSupportsHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	supports, err := h.service.ListProjectSupports(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api endpoint=list_supports outcome=failed project_id=%s err=%v", projectID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if supports == nil {
		supports = []domain.Support{}
	}
	h.writeJSON(w, http.StatusOK, supports)
}

// DecideProjectHandler applies the administrator approve/reject decision.
func (h *FundingHandlers) DecideProjectHandler(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			http.Error(w, "Invalid project ID", http.StatusBadRequest)
			return
		}

		if err := h.service.DecideProject(r.Context(), projectID, approve); err != nil {
			switch {
			case errors.Is(err, store.ErrProjectNotFound):
				http.Error(w, "Project not found", http.StatusNotFound)
			case errors.Is(err, store.ErrProjectAlreadyDecided):
				http.Error(w, "Project has already been decided", http.StatusConflict)
			default:
				log.Printf("level=error component=api endpoint=decide_project outcome=failed project_id=%s err=%v", projectID, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "decided"})
	}
}

// CreateCheckoutHandler starts a provider checkout session for a contribution.
func (h *FundingHandlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	contributorID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=checkout outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateCheckout(r.Context(), contributorID, projectID, req)
	if err != nil {
		h.writeCheckoutError(w, contributorID, projectID, err)
		return
	}

	log.Printf("level=info component=api endpoint=checkout outcome=accepted contributor_id=%s project_id=%s provider=%s", contributorID, projectID, resp.Provider)
	h.writeJSON(w, http.StatusCreated, resp)
}

// writeCheckoutError maps checkout failures to their HTTP statuses. Goal
// violations carry enough detail for the client to correct the amount.
func (h *FundingHandlers) writeCheckoutError(w http.ResponseWriter, contributorID, projectID uuid.UUID, err error) {
	var limited *app.RateLimitedError
	var exceeded *app.GoalExceededError

	switch {
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		h.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": limited.Error()})
	case errors.Is(err, app.ErrGoalAlreadyReached):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &exceeded):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":     exceeded.Error(),
			"remaining": exceeded.Remaining.StringFixed(2),
		})
	case errors.Is(err, store.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, store.ErrProjectNotFound):
		http.Error(w, "Project not found", http.StatusNotFound)
	case errors.Is(err, app.ErrProjectNotOpen),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrUnknownProvider):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, app.ErrProviderUnavailable):
		http.Error(w, "Payment provider is unavailable", http.StatusBadGateway)
	default:
		log.Printf("level=error component=api endpoint=checkout outcome=failed contributor_id=%s project_id=%s err=%v", contributorID, projectID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// SubmitVerificationHandler records a researcher identity submission.
func (h *FundingHandlers) SubmitVerificationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var payload domain.SubmitVerificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	verification, err := h.service.SubmitVerification(r.Context(), userID, payload)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, store.ErrVerificationPending):
			http.Error(w, "A verification is already pending", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, verification)
}

// DecideVerificationHandler applies the administrator approve/reject decision
// to a pending identity verification.
func (h *FundingHandlers) DecideVerificationHandler(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verificationID, err := uuid.Parse(chi.URLParam(r, "verificationID"))
		if err != nil {
			http.Error(w, "Invalid verification ID", http.StatusBadRequest)
			return
		}

		if err := h.service.DecideVerification(r.Context(), verificationID, approve); err != nil {
			switch {
			case errors.Is(err, store.ErrVerificationNotFound):
				http.Error(w, "Verification not found", http.StatusNotFound)
			case errors.Is(err, store.ErrVerificationAlreadyDecided):
				http.Error(w, "Verification has already been decided", http.StatusConflict)
			default:
				log.Printf("level=error component=api endpoint=decide_verification outcome=failed verification_id=%s err=%v", verificationID, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "decided"})
	}
}

// RunPayoutsHandler triggers one payout batch on demand.
func (h *FundingHandlers) RunPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.GeneratePayouts(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=run_payouts outcome=failed err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// MarkPayoutPaidHandler flips a payout record to paid.
func (h *FundingHandlers) MarkPayoutPaidHandler(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		http.Error(w, "Invalid payout ID", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkPayoutPaid(r.Context(), payoutID); err != nil {
		switch {
		case errors.Is(err, store.ErrPayoutNotFound):
			http.Error(w, "Payout not found", http.StatusNotFound)
		case errors.Is(err, store.ErrPayoutAlreadyPaid):
			http.Error(w, "Payout has already been marked paid", http.StatusConflict)
		default:
			log.Printf("level=error component=api endpoint=mark_payout_paid outcome=failed payout_id=%s err=%v", payoutID, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// writeJSON is a helper for writing JSON responses.
func (h *FundingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
