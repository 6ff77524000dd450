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

// PGUserRepository manages the catalog mirror of materialized PostgreSQL
// login roles.
type PGUserRepository struct {
	store *Store
}

const pgUserColumns = `id, vibe_user_id, database_name, pg_username,
	pg_password_encrypted, connection_string_encrypted, is_active,
	created_by, notes, created_at, updated_at`

// Create inserts a new role record after the role exists on the target.
func (r *PGUserRepository) Create(ctx context.Context, u *domain.PGDatabaseUser) error {
	if u.ID == "" {
		u.ID = domain.PGUserID(uuid.NewString())
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO pg_database_users (id, vibe_user_id, database_name, pg_username,
			pg_password_encrypted, connection_string_encrypted, is_active,
			created_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.VibeUserID, u.DatabaseName, u.PGUsername,
		u.PGPasswordEncrypted, u.ConnectionStringEncrypted, u.IsActive,
		nullString(string(u.CreatedBy)), nullString(u.Notes),
		u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrPGUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create pg user record: %w", err)
	}
	return nil
}

// Get retrieves the role record for a user and database.
func (r *PGUserRepository) Get(ctx context.Context, userID domain.UserID, database string) (*domain.PGDatabaseUser, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+pgUserColumns+` FROM pg_database_users
		WHERE vibe_user_id = $1 AND database_name = $2`,
		userID, database)
	return scanPGUser(row)
}

// GetActive retrieves an active role record for a user and database.
func (r *PGUserRepository) GetActive(ctx context.Context, userID domain.UserID, database string) (*domain.PGDatabaseUser, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+pgUserColumns+` FROM pg_database_users
		WHERE vibe_user_id = $1 AND database_name = $2 AND is_active = TRUE`,
		userID, database)
	return scanPGUser(row)
}

// ListByUser returns all role records for a user across databases.
func (r *PGUserRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.PGDatabaseUser, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+pgUserColumns+` FROM pg_database_users
		WHERE vibe_user_id = $1 ORDER BY database_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pg user records: %w", err)
	}
	defer rows.Close()
	return collectPGUsers(rows)
}

// ListByDatabase returns all role records on one database.
func (r *PGUserRepository) ListByDatabase(ctx context.Context, database string) ([]*domain.PGDatabaseUser, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+pgUserColumns+` FROM pg_database_users
		WHERE database_name = $1 ORDER BY pg_username`, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list pg user records: %w", err)
	}
	defer rows.Close()
	return collectPGUsers(rows)
}

// UpdatePassword replaces the encrypted password and connection string
// after a rotation on the target.
func (r *PGUserRepository) UpdatePassword(ctx context.Context, id domain.PGUserID, passwordEncrypted, connStrEncrypted string) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE pg_database_users
		SET pg_password_encrypted = $2, connection_string_encrypted = $3,
			updated_at = $4
		WHERE id = $1`,
		id, passwordEncrypted, connStrEncrypted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update pg user record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoPGUser
	}
	return nil
}

// Delete removes the role record for a user and database.
func (r *PGUserRepository) Delete(ctx context.Context, userID domain.UserID, database string) error {
	tag, err := r.store.pool.Exec(ctx, `
		DELETE FROM pg_database_users
		WHERE vibe_user_id = $1 AND database_name = $2`,
		userID, database)
	if err != nil {
		return fmt.Errorf("failed to delete pg user record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoPGUser
	}
	return nil
}

// DeleteByUser removes all role records for a user and returns the count.
func (r *PGUserRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM pg_database_users WHERE vibe_user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pg user records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectPGUsers(rows pgx.Rows) ([]*domain.PGDatabaseUser, error) {
	var users []*domain.PGDatabaseUser
	for rows.Next() {
		u, err := scanPGUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanPGUser(row pgx.Row) (*domain.PGDatabaseUser, error) {
	var u domain.PGDatabaseUser
	var createdBy, notes *string
	err := row.Scan(
		&u.ID, &u.VibeUserID, &u.DatabaseName, &u.PGUsername,
		&u.PGPasswordEncrypted, &u.ConnectionStringEncrypted, &u.IsActive,
		&createdBy, &notes, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoPGUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pg user record: %w", err)
	}
	u.CreatedBy = domain.UserID(stringOrEmpty(createdBy))
	u.Notes = stringOrEmpty(notes)
	return &u, nil
}
