/**
 * @description
 * Identity verification persistence. A partial unique index on
 * (user_id) WHERE status = 'pending' turns a duplicate submission into a
 * constraint violation that surfaces as ErrVerificationPending.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pgconn error codes.
 * - internal/domain: IdentityVerification model.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fundmythesis/funding-service/internal/domain"
)

// SubmitVerification inserts a new pending identity verification.
func (r *PostgresRepository) SubmitVerification(ctx context.Context, verification *domain.IdentityVerification) error {
	query := `
		INSERT INTO identity_verifications (id, user_id, document_url, status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query,
		verification.ID,
		verification.UserID,
		verification.DocumentURL,
		domain.VerificationPending,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrVerificationPending
		}
		return err
	}
	return nil
}

// DecideVerification applies the one-way approve/reject transition to a
// pending submission.
func (r *PostgresRepository) DecideVerification(ctx context.Context, verificationID uuid.UUID, approve bool) error {
	status := domain.VerificationRejected
	if approve {
		status = domain.VerificationApproved
	}
	query := `
		UPDATE identity_verifications
		SET status = $2, decided_at = NOW()
		WHERE id = $1 AND status = $3
	`
	result, err := r.db.Exec(ctx, query, verificationID, status, domain.VerificationPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM identity_verifications WHERE id = $1)", verificationID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrVerificationNotFound
		}
		return ErrVerificationAlreadyDecided
	}
	return nil
}
