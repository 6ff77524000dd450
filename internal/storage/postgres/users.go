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

// UserRepository manages control-plane user accounts.
type UserRepository struct {
	store *Store
}

const userColumns = `id, email, username, password_hash, organization, is_active,
	password_changed_at, password_expires_at, password_reset_required,
	failed_login_attempts, locked_until, created_at, updated_at`

// Create inserts a new user. The ID is generated here when empty.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = domain.UserID(uuid.NewString())
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, organization, is_active,
			password_changed_at, password_expires_at, password_reset_required,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		nullString(user.Organization), user.IsActive,
		user.PasswordChangedAt, user.PasswordExpiresAt, user.PasswordResetRequired,
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := r.store.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.store.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetActive enables or disables a user account.
func (r *UserRepository) SetActive(ctx context.Context, id domain.UserID, active bool) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdatePassword sets a new password hash and resets the expiry window.
func (r *UserRepository) UpdatePassword(ctx context.Context, id domain.UserID, hash string, expiresAt *time.Time) error {
	now := time.Now().UTC()
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, password_expires_at = $4,
			password_reset_required = FALSE, failed_login_attempts = 0,
			locked_until = NULL, updated_at = $3
		WHERE id = $1`,
		id, hash, now, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordFailedLogin increments the failure counter and locks the account
// after maxAttempts for the given duration.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id domain.UserID, maxAttempts int, lockFor time.Duration) error {
	now := time.Now().UTC()
	_, err := r.store.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3::timestamptz
				ELSE locked_until
			END,
			updated_at = $4
		WHERE id = $1`,
		id, maxAttempts, now.Add(lockFor), now)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// ClearFailedLogins resets the failure counter after a successful login.
func (r *UserRepository) ClearFailedLogins(ctx context.Context, id domain.UserID) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to clear login failures: %w", err)
	}
	return nil
}

// SetResetRequired flags the user as needing a password reset.
func (r *UserRepository) SetResetRequired(ctx context.Context, id domain.UserID, required bool) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE users SET password_reset_required = $2, updated_at = $3 WHERE id = $1`,
		id, required, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListExpiringPasswords returns active users whose password expires within
// the window. Used by the expiry notification job.
func (r *UserRepository) ListExpiringPasswords(ctx context.Context, within time.Duration) ([]*domain.User, error) {
	now := time.Now().UTC()
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active = TRUE
		  AND password_expires_at IS NOT NULL
		  AND password_expires_at > $1
		  AND password_expires_at <= $2
		ORDER BY password_expires_at`,
		now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring passwords: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Delete removes a user row. Dependent rows are removed by the lifecycle
// coordinator before this is called.
func (r *UserRepository) Delete(ctx context.Context, id domain.UserID) error {
	tag, err := r.store.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var organization *string
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&organization, &user.IsActive,
		&user.PasswordChangedAt, &user.PasswordExpiresAt, &user.PasswordResetRequired,
		&user.FailedLoginAttempts, &user.LockedUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Organization = stringOrEmpty(organization)
	return &user, nil
}
