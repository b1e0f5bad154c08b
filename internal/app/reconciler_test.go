package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"

	"github.com/fundmythesis/funding-service/internal/domain"
	"github.com/fundmythesis/funding-service/pkg/paypalclient"
)

func stripeCheckoutEvent(t *testing.T, sessionID string, amountMinor int64, contributorID, projectID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":           sessionID,
		"amount_total": amountMinor,
		"currency":     "usd",
		"metadata": map[string]string{
			"contributor_id": contributorID,
			"project_id":     projectID,
		},
	})
	if err != nil {
		t.Fatalf("failed to build event payload: %v", err)
	}
	return stripe.Event{
		ID:      "evt_" + sessionID,
		Type:    "checkout.session.completed",
		Created: 1756400000,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestProcessStripeEvent_RecordsSupport(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, producer := newTestService(repo)

	contributorID := uuid.New()
	projectID := uuid.New()
	event := stripeCheckoutEvent(t, "cs_live_1", 2550, contributorID.String(), projectID.String())

	outcome, err := svc.ProcessStripeEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", outcome)
	}
	if len(repo.supports) != 1 {
		t.Fatalf("expected 1 support row, got %d", len(repo.supports))
	}

	support := repo.supports[0]
	if support.Amount.StringFixed(2) != "25.50" {
		t.Fatalf("expected amount 25.50, got %s", support.Amount.StringFixed(2))
	}
	if support.PaymentID != "cs_live_1" || support.Provider != domain.ProviderStripe {
		t.Fatalf("unexpected support row: %+v", support)
	}
	if support.ContributorID != contributorID || support.ProjectID != projectID {
		t.Fatalf("expected attribution from metadata, got %+v", support)
	}
	if support.Currency != "USD" {
		t.Fatalf("expected uppercased currency, got %s", support.Currency)
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "support.recorded" {
		t.Fatalf("expected one support.recorded event, got %v", producer.routingKeys)
	}
}

func TestProcessStripeEvent_DuplicateDeliveriesConvergeToOneRow(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	event := stripeCheckoutEvent(t, "cs_dup", 1000, uuid.NewString(), uuid.NewString())

	for i := 0; i < 5; i++ {
		outcome, err := svc.ProcessStripeEvent(context.Background(), event)
		if err != nil {
			t.Fatalf("unexpected error on delivery %d: %v", i+1, err)
		}
		if outcome != OutcomeProcessed {
			t.Fatalf("expected processed on delivery %d, got %s", i+1, outcome)
		}
	}
	if len(repo.supports) != 1 {
		t.Fatalf("expected exactly 1 support row after redeliveries, got %d", len(repo.supports))
	}
}

func TestProcessStripeEvent_IgnoresOtherEventTypes(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	outcome, err := svc.ProcessStripeEvent(context.Background(), stripe.Event{Type: "payment_intent.succeeded"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
	if len(repo.supports) != 0 {
		t.Fatal("expected no support rows")
	}
}

func TestProcessStripeEvent_DropsMalformedMetadata(t *testing.T) {
	tests := []struct {
		name          string
		contributorID string
		projectID     string
	}{
		{name: "missing contributor", contributorID: "", projectID: uuid.NewString()},
		{name: "non-uuid contributor", contributorID: "7", projectID: uuid.NewString()},
		{name: "non-uuid project", contributorID: uuid.NewString(), projectID: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			svc, _, _, _ := newTestService(repo)

			event := stripeCheckoutEvent(t, "cs_bad", 1000, tt.contributorID, tt.projectID)
			outcome, err := svc.ProcessStripeEvent(context.Background(), event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != OutcomeDropped {
				t.Fatalf("expected dropped, got %s", outcome)
			}
			if len(repo.supports) != 0 {
				t.Fatal("expected no support rows for malformed metadata")
			}
		})
	}
}

func paypalEnvelope(t *testing.T, eventType string, resource interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          "WH-" + eventType,
		"event_type":  eventType,
		"create_time": "2026-08-28T16:20:00Z",
		"resource":    resource,
	})
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	return raw
}

func TestProcessPayPalEvent_CaptureCompletedBareShape(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	contributorID := uuid.New()
	projectID := uuid.New()
	raw := paypalEnvelope(t, "PAYMENT.CAPTURE.COMPLETED", map[string]interface{}{
		"id":        "CAP-100",
		"status":    "COMPLETED",
		"amount":    map[string]string{"currency_code": "USD", "value": "40.00"},
		"custom_id": fmt.Sprintf("%s:%s", contributorID, projectID),
	})

	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", outcome)
	}
	if len(repo.supports) != 1 {
		t.Fatalf("expected 1 support row, got %d", len(repo.supports))
	}

	support := repo.supports[0]
	if support.PaymentID != "CAP-100" || support.Provider != domain.ProviderPayPal {
		t.Fatalf("unexpected support row: %+v", support)
	}
	if support.Amount.StringFixed(2) != "40.00" {
		t.Fatalf("expected amount 40.00, got %s", support.Amount.StringFixed(2))
	}
	if support.ContributorID != contributorID || support.ProjectID != projectID {
		t.Fatalf("expected attribution from custom_id, got %+v", support)
	}
}

func TestProcessPayPalEvent_CaptureCompletedOrderShape(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	contributorID := uuid.New()
	projectID := uuid.New()
	raw := paypalEnvelope(t, "PAYMENT.CAPTURE.COMPLETED", map[string]interface{}{
		"id":     "ORDER-7",
		"status": "COMPLETED",
		"purchase_units": []map[string]interface{}{
			{
				"payments": map[string]interface{}{
					"captures": []map[string]interface{}{
						{
							"id":        "CAP-200",
							"status":    "COMPLETED",
							"amount":    map[string]string{"currency_code": "EUR", "value": "15.75"},
							"custom_id": fmt.Sprintf("%s:%s", contributorID, projectID),
						},
					},
				},
			},
		},
	})

	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", outcome)
	}
	if len(repo.supports) != 1 {
		t.Fatalf("expected 1 support row, got %d", len(repo.supports))
	}

	support := repo.supports[0]
	if support.PaymentID != "CAP-200" {
		t.Fatalf("expected the capture id as payment id, got %s", support.PaymentID)
	}
	if support.CorrelationID != "ORDER-7" {
		t.Fatalf("expected the order id as correlation id, got %s", support.CorrelationID)
	}
	if support.Amount.StringFixed(2) != "15.75" || support.Currency != "EUR" {
		t.Fatalf("unexpected amount on support row: %+v", support)
	}
}

func TestProcessPayPalEvent_BothShapesConvergeOnCaptureID(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	customID := fmt.Sprintf("%s:%s", uuid.New(), uuid.New())
	bare := paypalEnvelope(t, "PAYMENT.CAPTURE.COMPLETED", map[string]interface{}{
		"id":        "CAP-300",
		"status":    "COMPLETED",
		"amount":    map[string]string{"currency_code": "USD", "value": "10.00"},
		"custom_id": customID,
	})
	order := paypalEnvelope(t, "PAYMENT.CAPTURE.COMPLETED", map[string]interface{}{
		"id":     "ORDER-3",
		"status": "COMPLETED",
		"purchase_units": []map[string]interface{}{
			{
				"payments": map[string]interface{}{
					"captures": []map[string]interface{}{
						{
							"id":        "CAP-300",
							"status":    "COMPLETED",
							"amount":    map[string]string{"currency_code": "USD", "value": "10.00"},
							"custom_id": customID,
						},
					},
				},
			},
		},
	})

	if _, err := svc.ProcessPayPalEvent(context.Background(), bare); err != nil {
		t.Fatalf("unexpected error on bare shape: %v", err)
	}
	if _, err := svc.ProcessPayPalEvent(context.Background(), order); err != nil {
		t.Fatalf("unexpected error on order shape: %v", err)
	}
	if len(repo.supports) != 1 {
		t.Fatalf("expected both shapes to converge to 1 row, got %d", len(repo.supports))
	}
}

func TestProcessPayPalEvent_ApprovedOrderTriggersCapture(t *testing.T) {
	repo := newRepoStub()
	svc, _, paypalGateway, _ := newTestService(repo)

	contributorID := uuid.New()
	projectID := uuid.New()
	paypalGateway.captureResult = &paypalclient.CaptureResult{
		ID:     "ORDER-9",
		Status: "COMPLETED",
		PurchaseUnits: []paypalclient.CapturedUnit{
			{
				Payments: paypalclient.CapturedPayments{
					Captures: []paypalclient.Capture{
						{
							ID:       "CAP-900",
							Status:   "COMPLETED",
							Amount:   paypalclient.Amount{CurrencyCode: "USD", Value: "60.00"},
							CustomID: fmt.Sprintf("%s:%s", contributorID, projectID),
						},
					},
				},
			},
		},
	}

	raw := paypalEnvelope(t, "CHECKOUT.ORDER.APPROVED", map[string]interface{}{
		"id":     "ORDER-9",
		"status": "APPROVED",
	})
	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", outcome)
	}
	if len(paypalGateway.capturedOrders) != 1 || paypalGateway.capturedOrders[0] != "ORDER-9" {
		t.Fatalf("expected one capture call for ORDER-9, got %v", paypalGateway.capturedOrders)
	}
	if len(repo.supports) != 1 || repo.supports[0].PaymentID != "CAP-900" {
		t.Fatalf("expected the capture to be recorded, got %+v", repo.supports)
	}
}

func TestProcessPayPalEvent_CaptureFailureStillAcks(t *testing.T) {
	repo := newRepoStub()
	svc, _, paypalGateway, _ := newTestService(repo)
	paypalGateway.captureErr = errors.New("paypal 500")

	raw := paypalEnvelope(t, "CHECKOUT.ORDER.APPROVED", map[string]interface{}{
		"id": "ORDER-5",
	})
	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("a capture failure must not surface as a handler error, got %v", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("expected dropped, got %s", outcome)
	}
	if len(repo.supports) != 0 {
		t.Fatal("expected no support rows when the capture fails")
	}
}

func TestProcessPayPalEvent_MalformedCustomIDDropped(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	raw := paypalEnvelope(t, "PAYMENT.CAPTURE.COMPLETED", map[string]interface{}{
		"id":        "CAP-400",
		"status":    "COMPLETED",
		"amount":    map[string]string{"currency_code": "USD", "value": "10.00"},
		"custom_id": "7:42",
	})
	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("expected dropped, got %s", outcome)
	}
	if len(repo.supports) != 0 {
		t.Fatal("expected no support rows for a malformed custom_id")
	}
}

func TestProcessPayPalEvent_IgnoresOtherEventTypes(t *testing.T) {
	repo := newRepoStub()
	svc, _, _, _ := newTestService(repo)

	raw := paypalEnvelope(t, "PAYMENT.CAPTURE.REFUNDED", map[string]interface{}{"id": "CAP-500"})
	outcome, err := svc.ProcessPayPalEvent(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
}
