/**
 * @description
 * Payout persistence. Candidate selection aggregates the ledger inside the
 * database (no support rows are loaded into memory), and record creation is
 * a conflict-safe insert inside its own transaction so a mid-batch crash
 * never leaves a project double-counted on the next run.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: PayoutRecord and PayoutCandidate models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fundmythesis/funding-service/internal/domain"
)

// ListPayoutCandidates selects approved projects that have closed (deadline
// passed or goal reached), have a positive ledger total, and have no payout
// record yet. Totals and the owner snapshot are aggregated in one query.
func (r *PostgresRepository) ListPayoutCandidates(ctx context.Context, now time.Time) ([]domain.PayoutCandidate, error) {
	query := `
		SELECT p.id, u.full_name, u.email, COALESCE(s.total, 0)::text
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		LEFT JOIN (
			SELECT project_id, SUM(amount) AS total
			FROM supports
			GROUP BY project_id
		) s ON s.project_id = p.id
		WHERE p.approved = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM payout_records pr WHERE pr.project_id = p.id
		  )
		  AND (p.deadline < $1 OR COALESCE(s.total, 0) >= p.goal_amount)
		  AND COALESCE(s.total, 0) > 0
		ORDER BY p.deadline ASC
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.PayoutCandidate
	for rows.Next() {
		var candidate domain.PayoutCandidate
		var total string
		if err := rows.Scan(&candidate.ProjectID, &candidate.OwnerName, &candidate.OwnerEmail, &total); err != nil {
			return nil, err
		}
		if candidate.Total, err = scanDecimal(total); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// CreatePayoutRecord inserts one payout record in its own transaction.
// The unique constraint on project_id plus ON CONFLICT DO NOTHING make the
// insert idempotent across batch re-runs; returns true when a row was
// actually written.
func (r *PostgresRepository) CreatePayoutRecord(ctx context.Context, record *domain.PayoutRecord) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO payout_records (
			id, project_id, owner_name, owner_email, total_amount, platform_fee, ready_at, paid
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		ON CONFLICT (project_id) DO NOTHING
	`
	result, err := tx.Exec(ctx, query,
		record.ID,
		record.ProjectID,
		record.OwnerName,
		record.OwnerEmail,
		record.TotalAmount.StringFixed(2),
		record.PlatformFee.StringFixed(2),
		record.ReadyAt,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// MarkPayoutPaid flips paid false->true exactly once. Re-marking an already
// paid record surfaces as ErrPayoutAlreadyPaid, never a silent no-op.
func (r *PostgresRepository) MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID) error {
	query := `
		UPDATE payout_records
		SET paid = TRUE, paid_at = NOW()
		WHERE id = $1 AND paid = FALSE
	`
	result, err := r.db.Exec(ctx, query, payoutID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payout_records WHERE id = $1)", payoutID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPayoutNotFound
		}
		return ErrPayoutAlreadyPaid
	}
	return nil
}

// FindPayoutByProjectID returns the payout record for a project, if any.
func (r *PostgresRepository) FindPayoutByProjectID(ctx context.Context, projectID uuid.UUID) (*domain.PayoutRecord, error) {
	var record domain.PayoutRecord
	var total, fee string
	query := `
		SELECT id, project_id, owner_name, owner_email, total_amount::text,
		       platform_fee::text, ready_at, paid, paid_at
		FROM payout_records
		WHERE project_id = $1
	`
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&record.ID,
		&record.ProjectID,
		&record.OwnerName,
		&record.OwnerEmail,
		&total,
		&fee,
		&record.ReadyAt,
		&record.Paid,
		&record.PaidAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	if record.TotalAmount, err = scanDecimal(total); err != nil {
		return nil, err
	}
	if record.PlatformFee, err = scanDecimal(fee); err != nil {
		return nil, err
	}
	return &record, nil
}
