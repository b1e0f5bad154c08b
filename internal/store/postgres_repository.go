/**
 * @description
 * This file provides the PostgreSQL implementation of the data access layer
 * for users and projects. It contains the SQL for project creation, lookup,
 * and the one-way administrator decision transition.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact decimal parsing for NUMERIC columns.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fundmythesis/funding-service/internal/domain"
)

var (
	ErrUserNotFound               = errors.New("user not found")
	ErrProjectNotFound            = errors.New("project not found")
	ErrProjectAlreadyDecided      = errors.New("project already approved or rejected")
	ErrPayoutNotFound             = errors.New("payout record not found")
	ErrPayoutAlreadyPaid          = errors.New("payout record already marked paid")
	ErrVerificationNotFound       = errors.New("identity verification not found")
	ErrVerificationAlreadyDecided = errors.New("identity verification already decided")
	ErrVerificationPending        = errors.New("a pending identity verification already exists")
)

// PostgresRepository is the concrete pgx-backed repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// scanDecimal parses a NUMERIC column selected with a ::text cast.
func scanDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

// FindUserByID retrieves the minimal user view needed by this service.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, full_name, email FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.FullName, &user.Email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateProject inserts a new project record. Projects start submitted and
// undecided; goal_amount is validated by the service before reaching here.
func (r *PostgresRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, title, description, goal_amount, deadline, submitted, approved, rejected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Title,
		project.Description,
		project.GoalAmount.StringFixed(2),
		project.Deadline,
		project.Submitted,
		project.Approved,
		project.Rejected,
	)
	return err
}

// FindProjectByID retrieves a project by its id.
func (r *PostgresRepository) FindProjectByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	var goal string
	query := `
		SELECT id, owner_id, title, description, goal_amount::text, deadline,
		       submitted, approved, rejected, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Title,
		&project.Description,
		&goal,
		&project.Deadline,
		&project.Submitted,
		&project.Approved,
		&project.Rejected,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.GoalAmount, err = scanDecimal(goal); err != nil {
		return nil, err
	}
	return &project, nil
}

// DecideProject applies the one-way approve/reject transition. The WHERE
// clause only matches undecided projects, so re-deciding an already-decided
// project affects zero rows and surfaces as ErrProjectAlreadyDecided.
func (r *PostgresRepository) DecideProject(ctx context.Context, projectID uuid.UUID, approve bool) error {
	query := `
		UPDATE projects
		SET approved = $2, rejected = $3, updated_at = NOW()
		WHERE id = $1 AND approved = FALSE AND rejected = FALSE
	`
	result, err := r.db.Exec(ctx, query, projectID, approve, !approve)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProjectNotFound
		}
		return ErrProjectAlreadyDecided
	}
	return nil
}
