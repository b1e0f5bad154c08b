/**
 * @description
 * Minimal user view consumed by the funding service. Authentication and
 * profile management live in the surrounding platform; this service only
 * needs the identity and the payout snapshot fields.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the simplified view of a platform user.
type User struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// IdentityVerification represents one researcher identity submission.
// At most one pending submission may exist per user at a time.
type IdentityVerification struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	DocumentURL string     `json:"document_url"`
	Status      string     `json:"status"` // 'pending', 'approved', 'rejected'
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Identity verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// SubmitVerificationPayload is the DTO for identity verification submission.
type SubmitVerificationPayload struct {
	DocumentURL string `json:"document_url"`
}
