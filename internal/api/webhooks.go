/**
 * @description
 * This file contains the webhook endpoints for the two payment providers.
 * Each handler reads the raw body, verifies the delivery's signature, and
 * hands the verified event to the reconciler. A failed verification is the
 * only 4xx these endpoints return; verified events are always acknowledged
 * with a 200 so the provider never retries what we have chosen to ignore
 * or drop.
 *
 * @dependencies
 * - encoding/json, io, log, net/http: Standard Go libraries.
 * - github.com/stripe/stripe-go/v74: Stripe event types.
 * - internal/app, pkg/paypalclient, pkg/stripeclient: Reconciliation and signature verification.
 */

package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v74"

	"github.com/fundmythesis/funding-service/pkg/paypalclient"
)

// Providers cap webhook payloads well below this; anything larger is hostile.
const maxWebhookBodyBytes = 1 << 20

// StripeEventVerifier checks the Stripe-Signature HMAC and parses the event.
type StripeEventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// PayPalWebhookVerifier verifies a PayPal delivery against the
// verify-webhook-signature API.
type PayPalWebhookVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers paypalclient.WebhookHeaders, rawEvent []byte) (bool, error)
}

// StripeWebhookHandler receives Stripe event deliveries.
func (h *FundingHandlers) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var event stripe.Event
	if h.signatureBypass {
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, "Invalid event payload", http.StatusBadRequest)
			return
		}
	} else {
		event, err = h.stripeVerifier.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
		if err != nil {
			log.Printf("level=warn component=api endpoint=stripe_webhook outcome=reject reason=signature_verification_failed err=%v", err)
			http.Error(w, "Signature verification failed", http.StatusBadRequest)
			return
		}
	}

	outcome, err := h.service.ProcessStripeEvent(r.Context(), event)
	if err != nil {
		// The delivery was genuine but we could not persist it; a 5xx makes
		// Stripe redeliver, and the idempotent insert absorbs the retry.
		log.Printf("level=error component=api endpoint=stripe_webhook outcome=failed event_id=%s err=%v", event.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// PayPalWebhookHandler receives PayPal event deliveries.
func (h *FundingHandlers) PayPalWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !h.signatureBypass {
		verified, err := h.paypalVerifier.VerifyWebhookSignature(r.Context(), paypalclient.WebhookHeadersFromRequest(r), body)
		if err != nil {
			log.Printf("level=error component=api endpoint=paypal_webhook outcome=failed reason=verification_unavailable err=%v", err)
			http.Error(w, "Signature verification unavailable", http.StatusInternalServerError)
			return
		}
		if !verified {
			log.Printf("level=warn component=api endpoint=paypal_webhook outcome=reject reason=signature_verification_failed")
			http.Error(w, "Signature verification failed", http.StatusBadRequest)
			return
		}
	}

	outcome, err := h.service.ProcessPayPalEvent(r.Context(), body)
	if err != nil {
		log.Printf("level=error component=api endpoint=paypal_webhook outcome=failed err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
