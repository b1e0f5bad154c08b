/**
 * @description
 * This file defines the PayoutRecord domain model: a one-time, immutable
 * snapshot of a closed project's final raised total and platform fee,
 * pending administrator-marked disbursement.
 *
 * @notes
 * - At most one PayoutRecord ever exists per project; the store enforces a
 *   uniqueness constraint on project_id.
 * - Owner name/email are copied at generation time so the record stays
 *   accurate even if the owner later edits their profile.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutRecord maps to the `payout_records` table.
type PayoutRecord struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	OwnerName   string          `json:"owner_name"`  // snapshot at generation time
	OwnerEmail  string          `json:"owner_email"` // snapshot at generation time
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	ReadyAt     time.Time       `json:"ready_at"`
	Paid        bool            `json:"paid"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

// PayoutCandidate is a closed, not-yet-recorded project selected by the
// payout generator's scan, with its owner snapshot and ledger total already
// aggregated by the store.
type PayoutCandidate struct {
	ProjectID  uuid.UUID
	OwnerName  string
	OwnerEmail string
	Total      decimal.Decimal
}
