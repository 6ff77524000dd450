package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vibedb/internal/domain"
)

// AssignmentRepository manages user-to-database assignments.
type AssignmentRepository struct {
	store *Store
}

const assignmentColumns = `id, user_id, database_name, connection_string_encrypted,
	is_active, created_at, updated_at`

// Create inserts a new assignment. master_db is rejected before any write.
func (r *AssignmentRepository) Create(ctx context.Context, a *domain.DatabaseAssignment) error {
	if domain.IsMasterDatabase(a.DatabaseName) {
		return domain.ErrMasterDBForbidden
	}
	if a.ID == "" {
		a.ID = domain.AssignmentID(uuid.NewString())
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO database_assignments (id, user_id, database_name,
			connection_string_encrypted, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.DatabaseName, a.ConnectionStringEncrypted,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAssignmentExists
	}
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Get retrieves the assignment for a user and database.
func (r *AssignmentRepository) Get(ctx context.Context, userID domain.UserID, database string) (*domain.DatabaseAssignment, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM database_assignments
		WHERE user_id = $1 AND database_name = $2`,
		userID, database)
	return scanAssignment(row)
}

// GetActive retrieves an active assignment for a user and database, used by
// the authorizer on every data-plane request.
func (r *AssignmentRepository) GetActive(ctx context.Context, userID domain.UserID, database string) (*domain.DatabaseAssignment, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM database_assignments
		WHERE user_id = $1 AND database_name = $2 AND is_active = TRUE`,
		userID, database)
	return scanAssignment(row)
}

// ListByUser returns all assignments for a user.
func (r *AssignmentRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.DatabaseAssignment, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM database_assignments
		WHERE user_id = $1 ORDER BY database_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.DatabaseAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// UpdateConnectionString replaces the encrypted connection string. Used when
// a materialized role's password rotates.
func (r *AssignmentRepository) UpdateConnectionString(ctx context.Context, userID domain.UserID, database, encrypted string) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE database_assignments
		SET connection_string_encrypted = $3, updated_at = $4
		WHERE user_id = $1 AND database_name = $2`,
		userID, database, encrypted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// Delete removes the assignment for a user and database.
func (r *AssignmentRepository) Delete(ctx context.Context, userID domain.UserID, database string) error {
	tag, err := r.store.pool.Exec(ctx, `
		DELETE FROM database_assignments
		WHERE user_id = $1 AND database_name = $2`,
		userID, database)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// DeleteByUser removes all assignments for a user and returns the count.
func (r *AssignmentRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM database_assignments WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanAssignment(row pgx.Row) (*domain.DatabaseAssignment, error) {
	var a domain.DatabaseAssignment
	err := row.Scan(
		&a.ID, &a.UserID, &a.DatabaseName, &a.ConnectionStringEncrypted,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return &a, nil
}
