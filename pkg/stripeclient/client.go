/**
 * @description
 * This package wraps the official Stripe SDK for the two things the funding
 * service needs: creating hosted checkout sessions and verifying inbound
 * webhook signatures.
 *
 * Key features:
 * - Amounts are converted to Stripe's minor-unit integers exactly once, at
 *   this boundary, via a lossless decimal shift.
 * - The contributor/project correlation travels in the session metadata and
 *   comes back on the checkout.session.completed webhook.
 *
 * @dependencies
 * - github.com/stripe/stripe-go/v74: Official Stripe SDK (API client + webhook HMAC verification).
 * - github.com/shopspring/decimal: Exact decimal amounts.
 */
package stripeclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Metadata keys round-tripped through the checkout session.
const (
	MetadataContributorID = "contributor_id"
	MetadataProjectID     = "project_id"
)

// Client wraps the Stripe API for checkout and webhook verification.
type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient creates a Stripe client from the secret API key and the webhook
// endpoint signing secret.
func NewClient(secretKey, webhookSecret string) *Client {
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: 30 * time.Second}))
	return &Client{api: api, webhookSecret: webhookSecret}
}

// CheckoutSession is the subset of the created session the service needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// MinorUnits converts an exact 2-digit decimal into Stripe's minor-unit
// integer representation.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

// CreateCheckoutSession creates a hosted checkout session carrying the
// amount as a minor-unit integer and the contributor/project correlation as
// session metadata. The session id is the Stripe-side correlation key.
func (c *Client) CreateCheckoutSession(ctx context.Context, amount decimal.Decimal, currency, title string, contributorID, projectID uuid.UUID, successURL, cancelURL string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(currency)),
					UnitAmount: stripe.Int64(MinorUnits(amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(title),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataContributorID, contributorID.String())
	params.AddMetadata(MetadataProjectID, projectID.String())

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// VerifyEvent checks the Stripe-Signature HMAC over the raw body and parses
// the event. Verification failure means the delivery must be rejected before
// any data mutation.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, errors.New("stripe webhook secret is not configured")
	}
	// The SDK pins its own API version; events produced under a different
	// pin are still authentic, so only the signature decides here.
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
