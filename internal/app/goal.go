/**
 * @description
 * Goal accounting: the single source of truth for how much a project has
 * raised and how much room remains. All arithmetic is exact decimal with a
 * consistent half-up rounding at 2 fractional digits; totals are always
 * recomputed from the ledger, never cached.
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrGoalAlreadyReached is returned when a project has no remaining room at
// all; the HTTP layer maps it to 409.
var ErrGoalAlreadyReached = errors.New("project goal already reached")

// GoalExceededError is returned when a requested amount overshoots the
// remaining room. It carries the exact remaining value so a client can
// offer a corrected amount; the HTTP layer maps it to 422.
type GoalExceededError struct {
	Remaining decimal.Decimal
}

func (e *GoalExceededError) Error() string {
	return fmt.Sprintf("contribution exceeds remaining goal of %s", e.Remaining.StringFixed(2))
}

// Raised returns the ledger sum for a project, freshly aggregated.
func (s *Service) Raised(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	raised, err := s.repo.SumSupportAmounts(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	return raised.Round(2), nil
}

// Remaining returns max(goal - raised, 0) at 2 fractional digits.
func (s *Service) Remaining(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	project, err := s.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	raised, err := s.repo.SumSupportAmounts(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	return remainingAmount(project.GoalAmount, raised), nil
}

// AssertCanContribute checks a requested amount against the remaining room.
// An amount exactly equal to the remaining room is permitted.
func (s *Service) AssertCanContribute(ctx context.Context, projectID uuid.UUID, requested decimal.Decimal) error {
	project, err := s.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	raised, err := s.repo.SumSupportAmounts(ctx, projectID)
	if err != nil {
		return err
	}
	return assertWithinGoal(project.GoalAmount, raised, requested)
}

func remainingAmount(goal, raised decimal.Decimal) decimal.Decimal {
	remaining := goal.Sub(raised).Round(2)
	if remaining.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return remaining
}

func assertWithinGoal(goal, raised, requested decimal.Decimal) error {
	remaining := remainingAmount(goal, raised)
	if !remaining.IsPositive() {
		return ErrGoalAlreadyReached
	}
	if requested.Round(2).GreaterThan(remaining) {
		return &GoalExceededError{Remaining: remaining}
	}
	return nil
}
