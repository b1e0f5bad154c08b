/**
 * @description
 * This file defines the Project domain model and its DTOs. A project is the
 * unit of crowdfunding: it carries an exact-decimal goal amount, a deadline,
 * and a one-way moderation lifecycle (submitted -> approved | rejected).
 *
 * @notes
 * - Monetary values are carried as shopspring decimals end-to-end and
 *   round-trip through the API as fixed-precision decimal strings. Native
 *   floating point is never used for money.
 * - There is no stored "closed" flag: closure is derived from the deadline
 *   and the ledger so it can never drift from the source of truth.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project represents a funding project. Maps to the `projects` table.
type Project struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GoalAmount  decimal.Decimal `json:"goal_amount"` // exact decimal, 2 fractional digits
	Deadline    time.Time       `json:"deadline"`
	Submitted   bool            `json:"submitted"`
	Approved    bool            `json:"approved"`
	Rejected    bool            `json:"rejected"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Decided reports whether an administrator has already approved or rejected
// the project. Decisions are one-way; a decided project cannot be re-decided.
func (p *Project) Decided() bool {
	return p.Approved || p.Rejected
}

// Closed reports whether the project no longer accepts contributions because
// its deadline has passed or its goal has been reached. `raised` is the
// ledger sum for the project at the moment of evaluation.
func (p *Project) Closed(raised decimal.Decimal, now time.Time) bool {
	return !now.Before(p.Deadline) || raised.GreaterThanOrEqual(p.GoalAmount)
}

// AcceptsContributions evaluates the full contribution predicate:
// submitted, approved, not rejected, before the deadline, goal not reached.
func (p *Project) AcceptsContributions(raised decimal.Decimal, now time.Time) bool {
	return p.Submitted && p.Approved && !p.Rejected && !p.Closed(raised, now)
}

// CreateProjectPayload is the DTO for project creation requests.
type CreateProjectPayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GoalAmount  decimal.Decimal `json:"goal_amount"`
	Deadline    time.Time       `json:"deadline"`
}

// ProjectView is the read-side representation returned by the API. It embeds
// the ledger-derived raised and remaining amounts as decimal strings, and the
// payout record once the project has closed into one.
type ProjectView struct {
	Project
	Raised    decimal.Decimal `json:"raised"`
	Remaining decimal.Decimal `json:"remaining"`
	Payout    *PayoutRecord   `json:"payout,omitempty"`
}
