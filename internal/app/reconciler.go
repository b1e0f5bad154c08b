/**
 * @description
 * This file contains the webhook reconciler: the single code path that turns
 * verified provider notifications into ledger rows. Both providers are
 * normalized into a domain.CaptureEvent and written through one idempotent
 * insert, so redelivered webhooks converge to exactly one support row.
 *
 * Key features:
 * - Event types outside the allow-list are acknowledged and ignored; the
 *   provider must never be driven into retry storms by events we do not
 *   consume.
 * - Incomplete or malformed events are dropped with a log line, not
 *   retried: a payload that cannot be attributed to a contributor and a
 *   project can never become money.
 * - PayPal order approval triggers the server-side capture from here; the
 *   completed-capture webhook that follows is absorbed by idempotency.
 *
 * @dependencies
 * - encoding/json, log, strings, time: Standard Go libraries.
 * - github.com/stripe/stripe-go/v74: Stripe event and session types.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - internal/domain, pkg/paypalclient, pkg/stripeclient: Normalization targets.
 */

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"

	"github.com/fundmythesis/funding-service/internal/domain"
	"github.com/fundmythesis/funding-service/pkg/paypalclient"
	"github.com/fundmythesis/funding-service/pkg/stripeclient"
)

// WebhookOutcome describes what the reconciler did with a verified delivery.
// All three outcomes are acknowledged to the provider with a 2xx.
type WebhookOutcome string

const (
	// OutcomeProcessed means a ledger row was written (or already existed).
	OutcomeProcessed WebhookOutcome = "processed"
	// OutcomeIgnored means the event type is outside the allow-list.
	OutcomeIgnored WebhookOutcome = "ignored"
	// OutcomeDropped means the event was relevant but unusable.
	OutcomeDropped WebhookOutcome = "dropped"
)

// Stripe event types the reconciler consumes.
const stripeEventCheckoutCompleted = "checkout.session.completed"

// PayPal event types the reconciler consumes.
const (
	paypalEventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	paypalEventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
)

// ProcessStripeEvent handles a signature-verified Stripe event. Only
// checkout.session.completed reaches the ledger; everything else is ignored.
func (s *Service) ProcessStripeEvent(ctx context.Context, event stripe.Event) (WebhookOutcome, error) {
	if event.Type != stripeEventCheckoutCompleted {
		return OutcomeIgnored, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("level=warn component=reconciler msg=\"stripe event payload decode failed\" event_id=%s err=%v", event.ID, err)
		return OutcomeDropped, nil
	}

	contributorID, err := parseStripeMetadataUUID(session.Metadata, stripeclient.MetadataContributorID)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"stripe session dropped\" session_id=%s err=%v", session.ID, err)
		return OutcomeDropped, nil
	}
	projectID, err := parseStripeMetadataUUID(session.Metadata, stripeclient.MetadataProjectID)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"stripe session dropped\" session_id=%s err=%v", session.ID, err)
		return OutcomeDropped, nil
	}

	capture := domain.CaptureEvent{
		Provider:      domain.ProviderStripe,
		PaymentID:     session.ID,
		CorrelationID: session.ID,
		ContributorID: contributorID,
		ProjectID:     projectID,
		Amount:        decimal.New(session.AmountTotal, -2),
		Currency:      strings.ToUpper(string(session.Currency)),
		RawPayload:    event.Data.Raw,
		CapturedAt:    time.Unix(event.Created, 0).UTC(),
	}
	return s.recordCapture(ctx, capture)
}

// paypalWebhookEvent is the envelope PayPal posts to the webhook endpoint.
type paypalWebhookEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime time.Time       `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

// ProcessPayPalEvent handles a signature-verified PayPal event.
//
// CHECKOUT.ORDER.APPROVED triggers the server-side capture; the captures in
// the capture response are recorded immediately. PAYMENT.CAPTURE.COMPLETED
// records the capture carried by the event itself, absorbing the two payload
// shapes PayPal uses (a bare capture resource, or a full order with nested
// purchase units). The two paths meet at the same payment id, so whichever
// arrives second is a no-op.
func (s *Service) ProcessPayPalEvent(ctx context.Context, rawEvent []byte) (WebhookOutcome, error) {
	var event paypalWebhookEvent
	if err := json.Unmarshal(rawEvent, &event); err != nil {
		log.Printf("level=warn component=reconciler msg=\"paypal event decode failed\" err=%v", err)
		return OutcomeDropped, nil
	}

	switch event.EventType {
	case paypalEventOrderApproved:
		return s.capturePayPalOrder(ctx, event)
	case paypalEventCaptureCompleted:
		return s.recordPayPalCapture(ctx, event)
	default:
		return OutcomeIgnored, nil
	}
}

// capturePayPalOrder performs the capture for an approved order. A capture
// failure is logged and the delivery is still acknowledged; PayPal will send
// PAYMENT.CAPTURE.COMPLETED once the capture eventually succeeds, and the
// provider-side idempotency key keeps retries safe.
func (s *Service) capturePayPalOrder(ctx context.Context, event paypalWebhookEvent) (WebhookOutcome, error) {
	var order paypalclient.Order
	if err := json.Unmarshal(event.Resource, &order); err != nil || order.ID == "" {
		log.Printf("level=warn component=reconciler msg=\"paypal approved order dropped\" event_id=%s err=%v", event.ID, err)
		return OutcomeDropped, nil
	}

	captureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	result, err := s.paypal.CaptureOrder(captureCtx, order.ID)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"paypal capture failed\" order_id=%s err=%v", order.ID, err)
		return OutcomeDropped, nil
	}

	outcome := OutcomeDropped
	for _, unit := range result.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			captureOutcome, err := s.recordCaptureFromPayPal(ctx, result.ID, capture, event.Resource, eventTime(event))
			if err != nil {
				return captureOutcome, err
			}
			if captureOutcome == OutcomeProcessed {
				outcome = OutcomeProcessed
			}
		}
	}
	if outcome != OutcomeProcessed {
		log.Printf("level=warn component=reconciler msg=\"paypal capture result carried no usable captures\" order_id=%s status=%s", result.ID, result.Status)
	}
	return outcome, nil
}

// recordPayPalCapture normalizes the two shapes of a capture-completed event.
func (s *Service) recordPayPalCapture(ctx context.Context, event paypalWebhookEvent) (WebhookOutcome, error) {
	// Shape 1: resource is the capture object itself.
	var capture paypalclient.Capture
	if err := json.Unmarshal(event.Resource, &capture); err == nil && capture.ID != "" && capture.CustomID != "" {
		return s.recordCaptureFromPayPal(ctx, "", capture, event.Resource, eventTime(event))
	}

	// Shape 2: resource is an order carrying nested purchase units.
	var order paypalclient.CaptureResult
	if err := json.Unmarshal(event.Resource, &order); err == nil {
		for _, unit := range order.PurchaseUnits {
			for _, nested := range unit.Payments.Captures {
				if nested.ID != "" {
					return s.recordCaptureFromPayPal(ctx, order.ID, nested, event.Resource, eventTime(event))
				}
			}
		}
	}

	log.Printf("level=warn component=reconciler msg=\"paypal capture event unrecognized\" event_id=%s", event.ID)
	return OutcomeDropped, nil
}

// recordCaptureFromPayPal converts a PayPal capture into the canonical event
// and writes it through the shared path. The capture id is the idempotency
// key; the order id, when known, is kept as the correlation id.
func (s *Service) recordCaptureFromPayPal(ctx context.Context, orderID string, capture paypalclient.Capture, rawPayload []byte, capturedAt time.Time) (WebhookOutcome, error) {
	if capture.Status != "" && capture.Status != "COMPLETED" {
		log.Printf("level=info component=reconciler msg=\"paypal capture not completed, skipping\" capture_id=%s status=%s", capture.ID, capture.Status)
		return OutcomeIgnored, nil
	}

	contributorID, projectID, err := paypalclient.ParseCustomID(capture.CustomID)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"paypal capture dropped\" capture_id=%s custom_id=%q err=%v", capture.ID, capture.CustomID, err)
		return OutcomeDropped, nil
	}
	amount, err := capture.Amount.Decimal()
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"paypal capture amount unparseable\" capture_id=%s value=%q err=%v", capture.ID, capture.Amount.Value, err)
		return OutcomeDropped, nil
	}

	correlationID := orderID
	if correlationID == "" {
		correlationID = capture.ID
	}
	return s.recordCapture(ctx, domain.CaptureEvent{
		Provider:      domain.ProviderPayPal,
		PaymentID:     capture.ID,
		CorrelationID: correlationID,
		ContributorID: contributorID,
		ProjectID:     projectID,
		Amount:        amount,
		Currency:      capture.Amount.CurrencyCode,
		RawPayload:    rawPayload,
		CapturedAt:    capturedAt,
	})
}

// recordCapture is the single write path for both providers. The insert is
// keyed on the provider payment id, so a redelivered event finds its row
// already present and becomes a no-op.
func (s *Service) recordCapture(ctx context.Context, event domain.CaptureEvent) (WebhookOutcome, error) {
	if !event.Complete() {
		log.Printf("level=warn component=reconciler msg=\"capture event incomplete, dropping\" provider=%s payment_id=%s", event.Provider, event.PaymentID)
		return OutcomeDropped, nil
	}

	support := &domain.Support{
		ID:            uuid.New(),
		ProjectID:     event.ProjectID,
		ContributorID: event.ContributorID,
		Amount:        event.Amount.Round(2),
		Currency:      event.Currency,
		Provider:      event.Provider,
		PaymentID:     event.PaymentID,
		CorrelationID: event.CorrelationID,
		RawPayload:    event.RawPayload,
		CapturedAt:    event.CapturedAt,
	}
	inserted, err := s.repo.InsertSupportIfAbsent(ctx, support)
	if err != nil {
		return OutcomeDropped, fmt.Errorf("failed to record support: %w", err)
	}
	if !inserted {
		log.Printf("level=info component=reconciler msg=\"duplicate delivery, support already recorded\" provider=%s payment_id=%s", event.Provider, event.PaymentID)
		return OutcomeProcessed, nil
	}

	log.Printf("level=info component=reconciler msg=\"support recorded\" provider=%s payment_id=%s project_id=%s amount=%s",
		event.Provider, event.PaymentID, event.ProjectID, support.Amount.StringFixed(2))
	s.publishEvent(ctx, "support.recorded", domain.SupportRecordedEvent{
		SupportID:     support.ID,
		ProjectID:     support.ProjectID,
		ContributorID: support.ContributorID,
		Amount:        support.Amount,
		Currency:      support.Currency,
		Provider:      support.Provider,
		CapturedAt:    support.CapturedAt,
	})
	return OutcomeProcessed, nil
}

func parseStripeMetadataUUID(metadata map[string]string, key string) (uuid.UUID, error) {
	value, ok := metadata[key]
	if !ok || value == "" {
		return uuid.Nil, fmt.Errorf("metadata key %q missing", key)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("metadata key %q is not a uuid: %w", key, err)
	}
	return id, nil
}

func eventTime(event paypalWebhookEvent) time.Time {
	if event.CreateTime.IsZero() {
		return time.Now().UTC()
	}
	return event.CreateTime.UTC()
}
