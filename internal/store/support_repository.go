/**
 * @description
 * Ledger persistence for supports. The unique constraint on payment_id plus
 * the conflict-safe insert turn concurrent duplicate webhook deliveries into
 * one success and N-1 no-ops; there is no read-then-write race.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: Support model.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundmythesis/funding-service/internal/domain"
)

// InsertSupportIfAbsent writes a ledger row unless one already exists for
// the same provider payment id. Returns true when a row was inserted, false
// on an idempotent no-op.
func (r *PostgresRepository) InsertSupportIfAbsent(ctx context.Context, support *domain.Support) (bool, error) {
	query := `
		INSERT INTO supports (
			id, project_id, contributor_id, amount, currency,
			provider, payment_id, correlation_id, raw_payload, captured_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (payment_id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query,
		support.ID,
		support.ProjectID,
		support.ContributorID,
		support.Amount.StringFixed(2),
		support.Currency,
		support.Provider,
		support.PaymentID,
		support.CorrelationID,
		support.RawPayload,
		support.CapturedAt,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// SumSupportAmounts aggregates the ledger for one project. The sum is
// computed by the database in exact NUMERIC arithmetic and returned as text
// so no precision is lost in transit.
func (r *PostgresRepository) SumSupportAmounts(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var raw string
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM supports WHERE project_id = $1`
	if err := r.db.QueryRow(ctx, query, projectID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return scanDecimal(raw)
}

// ListSupportsByProject returns the ledger rows for a project, newest first.
func (r *PostgresRepository) ListSupportsByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Support, error) {
	query := `
		SELECT id, project_id, contributor_id, amount::text, currency,
		       provider, payment_id, correlation_id, captured_at, created_at
		FROM supports
		WHERE project_id = $1
		ORDER BY captured_at DESC
	`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var supports []domain.Support
	for rows.Next() {
		var support domain.Support
		var amount string
		if err := rows.Scan(
			&support.ID,
			&support.ProjectID,
			&support.ContributorID,
			&amount,
			&support.Currency,
			&support.Provider,
			&support.PaymentID,
			&support.CorrelationID,
			&support.CapturedAt,
			&support.CreatedAt,
		); err != nil {
			return nil, err
		}
		if support.Amount, err = scanDecimal(amount); err != nil {
			return nil, err
		}
		supports = append(supports, support)
	}
	return supports, rows.Err()
}
