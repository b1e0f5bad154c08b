package paypalclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "client-id", "client-secret", "webhook-id")
	return server, client
}

func writeToken(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "token-123",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}); err != nil {
		t.Fatalf("failed to write token response: %v", err)
	}
}

func TestGetAccessToken_UsesBasicAuth(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/oauth2/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Fatalf("expected basic auth with client credentials, got %q/%q", user, pass)
		}
		writeToken(t, w)
	})

	token, err := client.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-123" {
		t.Fatalf("expected token-123, got %q", token)
	}
}

func TestGetAccessToken_FailsOnEmptyToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	})

	if _, err := client.GetAccessToken(context.Background()); err == nil {
		t.Fatal("expected an error for a response without access_token")
	}
}

func TestCreateOrder_CarriesAmountAndCustomID(t *testing.T) {
	contributorID := uuid.New()
	projectID := uuid.New()

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			writeToken(t, w)
			return
		}
		if r.URL.Path != "/v2/checkout/orders" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode order request: %v", err)
		}
		if req.Intent != "CAPTURE" {
			t.Fatalf("expected intent CAPTURE, got %q", req.Intent)
		}
		if len(req.PurchaseUnits) != 1 {
			t.Fatalf("expected 1 purchase unit, got %d", len(req.PurchaseUnits))
		}
		unit := req.PurchaseUnits[0]
		if unit.Amount.Value != "25.50" || unit.Amount.CurrencyCode != "USD" {
			t.Fatalf("unexpected amount: %+v", unit.Amount)
		}
		if unit.CustomID != BuildCustomID(contributorID, projectID) {
			t.Fatalf("unexpected custom_id: %q", unit.CustomID)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://paypal.test/approve/ORDER-1", "rel": "approve", "method": "GET"},
			},
		})
	})

	order, err := client.CreateOrder(context.Background(), decimal.RequireFromString("25.5"), "usd", contributorID, projectID, "https://fundmythesis.test/return", "https://fundmythesis.test/cancel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "ORDER-1" {
		t.Fatalf("expected ORDER-1, got %q", order.ID)
	}
	if order.ApproveURL() != "https://paypal.test/approve/ORDER-1" {
		t.Fatalf("unexpected approve url: %q", order.ApproveURL())
	}
}

func TestCaptureOrder_SendsIdempotencyKey(t *testing.T) {
	var requestIDs []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			writeToken(t, w)
			return
		}
		if r.URL.Path != "/v2/checkout/orders/ORDER-2/capture" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		requestIDs = append(requestIDs, r.Header.Get("PayPal-Request-Id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "ORDER-2", "status": "COMPLETED"})
	})

	for i := 0; i < 2; i++ {
		result, err := client.CaptureOrder(context.Background(), "ORDER-2")
		if err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i+1, err)
		}
		if result.Status != "COMPLETED" {
			t.Fatalf("unexpected status: %q", result.Status)
		}
	}
	if len(requestIDs) != 2 {
		t.Fatalf("expected 2 capture calls, got %d", len(requestIDs))
	}
	for _, id := range requestIDs {
		if id != "capture-ORDER-2" {
			t.Fatalf("expected stable idempotency key capture-ORDER-2, got %q", id)
		}
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	tests := []struct {
		name    string
		verdict string
		want    bool
	}{
		{name: "success verdict verifies", verdict: "SUCCESS", want: true},
		{name: "failure verdict rejects", verdict: "FAILURE", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/oauth2/token" {
					writeToken(t, w)
					return
				}
				if r.URL.Path != "/v1/notifications/verify-webhook-signature" {
					t.Fatalf("unexpected path %s", r.URL.Path)
				}

				var req verifyRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("failed to decode verify request: %v", err)
				}
				if req.WebhookID != "webhook-id" {
					t.Fatalf("expected the configured webhook id, got %q", req.WebhookID)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"verification_status": tt.verdict})
			})

			verified, err := client.VerifyWebhookSignature(context.Background(), WebhookHeaders{
				AuthAlgo:         "SHA256withRSA",
				CertURL:          "https://paypal.test/cert",
				TransmissionID:   "tx-1",
				TransmissionSig:  "sig",
				TransmissionTime: "2026-08-28T16:20:00Z",
			}, []byte(`{"id":"WH-1"}`))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verified != tt.want {
				t.Fatalf("expected verified=%t, got %t", tt.want, verified)
			}
		})
	}
}

func TestParseCustomID(t *testing.T) {
	contributorID := uuid.New()
	projectID := uuid.New()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "round trip", input: BuildCustomID(contributorID, projectID)},
		{name: "missing separator", input: contributorID.String(), wantErr: true},
		{name: "too many parts", input: contributorID.String() + ":" + projectID.String() + ":extra", wantErr: true},
		{name: "non-uuid halves", input: "7:42", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotContributor, gotProject, err := ParseCustomID(tt.input)
			if tt.wantErr {
				if err != ErrMalformedCorrelation {
					t.Fatalf("expected ErrMalformedCorrelation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotContributor != contributorID || gotProject != projectID {
				t.Fatalf("round trip mismatch: %s / %s", gotContributor, gotProject)
			}
		})
	}
}
