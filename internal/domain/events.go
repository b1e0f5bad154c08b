/**
 * @description
 * Message payloads published to RabbitMQ after money-affecting state
 * changes. Consumers (notification delivery, analytics) are outside this
 * service; publishing is best-effort and never fails the money path.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupportRecordedEvent is published after a ledger insert.
type SupportRecordedEvent struct {
	SupportID     uuid.UUID       `json:"support_id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	ContributorID uuid.UUID       `json:"contributor_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`
	CapturedAt    time.Time       `json:"captured_at"`
}

// PayoutReadyEvent is published after the payout generator writes a record.
type PayoutReadyEvent struct {
	PayoutID    uuid.UUID       `json:"payout_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	OwnerEmail  string          `json:"owner_email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
}

// ProjectDecidedEvent is published after an administrator decides a project.
type ProjectDecidedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Approved  bool      `json:"approved"`
}
