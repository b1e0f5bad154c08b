/**
 * @description
 * This file defines the Support ledger model and the canonical capture event
 * that both payment providers are normalized into. A Support is one
 * confirmed, immutable monetary contribution; the sum of a project's
 * supports is the sole source of truth for "raised".
 *
 * @notes
 * - `PaymentID` is the provider-issued payment identifier (Stripe checkout
 *   session id, PayPal capture id) and is the idempotency key: the store
 *   enforces uniqueness on it, so redelivered webhooks converge to one row.
 * - The raw provider payload is stored opaquely for audit/replay and is
 *   never re-parsed for accounting.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment provider tags persisted on each support row.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Support represents one confirmed contribution. Maps to the `supports`
// table. Rows are immutable once written.
type Support struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	ContributorID uuid.UUID       `json:"contributor_id"`
	Amount        decimal.Decimal `json:"amount"` // exact decimal, 2 fractional digits
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`       // 'stripe' | 'paypal'
	PaymentID     string          `json:"payment_id"`     // provider payment id, unique
	CorrelationID string          `json:"correlation_id"` // provider session/order id
	RawPayload    []byte          `json:"-"`              // opaque provider payload, audit only
	CapturedAt    time.Time       `json:"captured_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CaptureEvent is the canonical, provider-neutral capture notification the
// webhook reconciler produces after verifying and normalizing a delivery.
// Every field is mandatory; an event missing any of them is dropped.
type CaptureEvent struct {
	Provider      string
	PaymentID     string
	CorrelationID string
	ContributorID uuid.UUID
	ProjectID     uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	RawPayload    []byte
	CapturedAt    time.Time
}

// Complete reports whether the event carries everything needed to write a
// ledger row.
func (e *CaptureEvent) Complete() bool {
	return e.PaymentID != "" &&
		e.ContributorID != uuid.Nil &&
		e.ProjectID != uuid.Nil &&
		e.Amount.IsPositive()
}

// CheckoutRequest is the DTO for contribution checkout-session creation.
type CheckoutRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Provider string          `json:"provider"` // 'stripe' | 'paypal'
}

// CheckoutResponse carries the provider redirect URL back to the supporter.
type CheckoutResponse struct {
	Provider    string `json:"provider"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}
