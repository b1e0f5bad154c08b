/**
 * @description
 * This package provides a client for the PayPal REST API. It encapsulates
 * the OAuth client-credentials token flow, checkout order creation, the
 * server-side capture call, and the webhook signature verification API.
 *
 * Key features:
 * - Amounts cross the wire as decimal strings with exactly 2 fractional
 *   digits, never floating point.
 * - The capture call carries a PayPal-Request-Id idempotency key derived
 *   from the order id, so repeated capture attempts execute at most once.
 * - The contributor/project correlation travels in the order's custom_id
 *   field as "{contributorID}:{projectID}" and is parsed back out on
 *   webhook receipt.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, net/url, time: Standard Go libraries.
 * - github.com/google/uuid: Correlation id parsing.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 */
package paypalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMalformedCorrelation indicates a custom_id that cannot be parsed back
// into a contributor/project pair. Events carrying one are dropped, not
// retried.
var ErrMalformedCorrelation = errors.New("malformed paypal correlation id")

// Client is a client for the PayPal REST API.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	HTTPClient   *http.Client
}

// NewClient creates a new PayPal API client. Every outbound call is bounded
// by the HTTP client timeout so a slow provider cannot pin webhook handlers.
func NewClient(baseURL, clientID, clientSecret, webhookID string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		WebhookID:    webhookID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BuildCustomID encodes the contributor/project correlation for an order.
func BuildCustomID(contributorID, projectID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", contributorID, projectID)
}

// ParseCustomID decodes a correlation id produced by BuildCustomID.
// A missing separator or an unparseable half yields ErrMalformedCorrelation.
func ParseCustomID(customID string) (contributorID, projectID uuid.UUID, err error) {
	parts := strings.Split(strings.TrimSpace(customID), ":")
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, ErrMalformedCorrelation
	}
	contributorID, err = uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrMalformedCorrelation
	}
	projectID, err = uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrMalformedCorrelation
	}
	return contributorID, projectID, nil
}

// tokenResponse is the OAuth client-credentials response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Amount is a PayPal money value: a currency code and a 2-digit decimal string.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// NewAmount formats a decimal into the wire representation.
func NewAmount(currency string, value decimal.Decimal) Amount {
	return Amount{CurrencyCode: strings.ToUpper(currency), Value: value.StringFixed(2)}
}

// Decimal parses the amount value back into an exact decimal.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Value)
}

// OrderRequest is the payload for POST /v2/checkout/orders.
type OrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []PurchaseUnit     `json:"purchase_units"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

// PurchaseUnit carries the amount and the correlation custom_id.
type PurchaseUnit struct {
	Amount   Amount `json:"amount"`
	CustomID string `json:"custom_id,omitempty"`
}

// ApplicationContext carries the supporter redirect URLs.
type ApplicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

// Order is the response from order creation.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link is a HATEOAS link in a PayPal response.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApproveURL returns the redirect URL the supporter must visit, or "".
func (o *Order) ApproveURL() string {
	for _, link := range o.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

// CaptureResult is the response from the order capture call. The same shape
// also appears as the resource of some capture webhooks.
type CaptureResult struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []CapturedUnit `json:"purchase_units"`
}

// CapturedUnit is one purchase unit of a captured order.
type CapturedUnit struct {
	Payments CapturedPayments `json:"payments"`
}

// CapturedPayments groups the captures inside a purchase unit.
type CapturedPayments struct {
	Captures []Capture `json:"captures"`
}

// Capture is one captured payment inside an order.
type Capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   Amount `json:"amount"`
	CustomID string `json:"custom_id"`
}

// APIError represents a non-success response from PayPal.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetAccessToken performs the OAuth client-credentials flow. Tokens are
// fetched per call; an auth failure is fatal to the request, not silently
// retried.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", errors.New("paypal credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("paypal token response decode failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("paypal token response missing access_token")
	}
	return token.AccessToken, nil
}

// CreateOrder creates a checkout order carrying the amount and the
// contributor/project correlation, and returns it with its approve link.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string, contributorID, projectID uuid.UUID, returnURL, cancelURL string) (*Order, error) {
	accessToken, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := OrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{
			{
				Amount:   NewAmount(currency, amount),
				CustomID: BuildCustomID(contributorID, projectID),
			},
		},
		ApplicationContext: ApplicationContext{
			ReturnURL: returnURL,
			CancelURL: cancelURL,
		},
	}

	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", accessToken, "", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder performs the server-side capture of an approved order. The
// PayPal-Request-Id header scoped to the order id makes the capture
// idempotent on the provider side.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	accessToken, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var result CaptureResult
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID)
	idempotencyKey := "capture-" + orderID
	if err := c.doJSON(ctx, http.MethodPost, path, accessToken, idempotencyKey, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WebhookHeaders are the transmission headers PayPal sends with each
// webhook delivery; all five are required for verification.
type WebhookHeaders struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

// FromRequest extracts the transmission headers from an inbound request.
func WebhookHeadersFromRequest(r *http.Request) WebhookHeaders {
	return WebhookHeaders{
		AuthAlgo:         r.Header.Get("PayPal-Auth-Algo"),
		CertURL:          r.Header.Get("PayPal-Cert-Url"),
		TransmissionID:   r.Header.Get("PayPal-Transmission-Id"),
		TransmissionSig:  r.Header.Get("PayPal-Transmission-Sig"),
		TransmissionTime: r.Header.Get("PayPal-Transmission-Time"),
	}
}

// verifyRequest is the payload for the verify-webhook-signature API.
type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature asks PayPal whether a webhook delivery is genuine.
// Returns true only on an explicit SUCCESS verdict.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, rawEvent []byte) (bool, error) {
	accessToken, err := c.GetAccessToken(ctx)
	if err != nil {
		return false, err
	}

	payload := verifyRequest{
		AuthAlgo:         headers.AuthAlgo,
		CertURL:          headers.CertURL,
		TransmissionID:   headers.TransmissionID,
		TransmissionSig:  headers.TransmissionSig,
		TransmissionTime: headers.TransmissionTime,
		WebhookID:        c.WebhookID,
		WebhookEvent:     json.RawMessage(rawEvent),
	}

	var verdict verifyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", accessToken, "", payload, &verdict); err != nil {
		return false, err
	}
	return verdict.VerificationStatus == "SUCCESS", nil
}

// doJSON performs an authenticated JSON request against the PayPal API.
func (c *Client) doJSON(ctx context.Context, method, path, accessToken, idempotencyKey string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if idempotencyKey != "" {
		req.Header.Set("PayPal-Request-Id", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("paypal response decode failed: %w", err)
		}
	}
	return nil
}
