/**
 * @description
 * This file contains the payout generator: the batch operation the scheduler
 * runs to turn closed, funded projects into immutable payout records. Each
 * eligible project gets exactly one record, across any number of runs; the
 * store enforces the one-record-per-project rule, so the generator itself
 * needs no memory between runs.
 *
 * Key features:
 * - Candidate selection happens in SQL: approved projects with at least one
 *   support whose deadline has passed or whose ledger total has met the
 *   goal, and which have no payout record yet.
 * - The platform fee is 20 percent of the gross total by default, rounded
 *   half-up to the nearest currency unit.
 * - One failing project never blocks the rest of the batch; failures are
 *   logged per project and the run continues.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundmythesis/funding-service/internal/domain"
)

// ComputePlatformFee returns the platform's cut of a gross payout total,
// rounded half-up to the nearest whole currency unit.
func ComputePlatformFee(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(0)
}

// GeneratePayouts runs one payout batch and returns the number of records
// written. Re-running over the same data writes nothing new.
func (s *Service) GeneratePayouts(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	candidates, err := s.repo.ListPayoutCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, candidate := range candidates {
		if !candidate.Total.IsPositive() {
			// Nothing was raised; a closed project with an empty ledger
			// gets no record.
			continue
		}

		record := &domain.PayoutRecord{
			ID:          uuid.New(),
			ProjectID:   candidate.ProjectID,
			OwnerName:   candidate.OwnerName,
			OwnerEmail:  candidate.OwnerEmail,
			TotalAmount: candidate.Total.Round(2),
			PlatformFee: ComputePlatformFee(candidate.Total, s.feeRate),
			ReadyAt:     now,
		}

		inserted, err := s.repo.CreatePayoutRecord(ctx, record)
		if err != nil {
			log.Printf("level=error component=payouts msg=\"payout record creation failed\" project_id=%s total=%s err=%v",
				candidate.ProjectID, candidate.Total.StringFixed(2), err)
			continue
		}
		if !inserted {
			// Another run got here first; nothing to do.
			continue
		}

		created++
		log.Printf("level=info component=payouts msg=\"payout record created\" project_id=%s total=%s fee=%s owner_email=%s",
			record.ProjectID, record.TotalAmount.StringFixed(2), record.PlatformFee.StringFixed(2), record.OwnerEmail)
		s.publishEvent(ctx, "payout.ready", domain.PayoutReadyEvent{
			PayoutID:    record.ID,
			ProjectID:   record.ProjectID,
			OwnerEmail:  record.OwnerEmail,
			TotalAmount: record.TotalAmount,
			PlatformFee: record.PlatformFee,
		})
	}

	if created > 0 || len(candidates) > 0 {
		log.Printf("level=info component=payouts msg=\"payout batch finished\" candidates=%d created=%d", len(candidates), created)
	}
	return created, nil
}
