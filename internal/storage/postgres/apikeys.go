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

// APIKeyRepository manages hashed API credentials.
type APIKeyRepository struct {
	store *Store
}

const apiKeyColumns = `id, user_id, key_hash, key_prefix, name, is_active,
	expires_at, last_used_at, created_at`

// Create inserts a new API key record. Only the digest is stored.
func (r *APIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	if key.ID == "" {
		key.ID = domain.APIKeyID(uuid.NewString())
	}
	key.CreatedAt = time.Now().UTC()

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, is_active,
			expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Name,
		key.IsActive, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetByHash looks up an active key by its salted digest, joining the owning
// user. This is the authentication hot path.
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*domain.APIKey, *domain.User, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT k.id, k.user_id, k.key_hash, k.key_prefix, k.name, k.is_active,
			k.expires_at, k.last_used_at, k.created_at,
			`+prefixedUserColumns("u")+`
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1 AND k.is_active = TRUE`, hash)

	var key domain.APIKey
	var user domain.User
	var organization *string
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, &key.Name,
		&key.IsActive, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt,
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&organization, &user.IsActive,
		&user.PasswordChangedAt, &user.PasswordExpiresAt, &user.PasswordResetRequired,
		&user.FailedLoginAttempts, &user.LockedUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrAuthInvalid
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	user.Organization = stringOrEmpty(organization)
	return &key, &user, nil
}

// ListByUser returns all keys owned by a user, newest first.
func (r *APIKeyRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.APIKey, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(
			&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, &key.Name,
			&key.IsActive, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

// Revoke deactivates a key without deleting its record.
func (r *APIKeyRepository) Revoke(ctx context.Context, id domain.APIKeyID) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

// TouchLastUsed updates the last-used timestamp. Best effort; callers
// ignore the error.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id domain.APIKeyID) error {
	_, err := r.store.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

// DeleteByUser removes all keys owned by a user and returns the count.
func (r *APIKeyRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete api keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// prefixedUserColumns qualifies the user column list with a table alias for
// join queries.
func prefixedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.username, ` +
		alias + `.password_hash, ` + alias + `.organization, ` + alias + `.is_active, ` +
		alias + `.password_changed_at, ` + alias + `.password_expires_at, ` +
		alias + `.password_reset_required, ` + alias + `.failed_login_attempts, ` +
		alias + `.locked_until, ` + alias + `.created_at, ` + alias + `.updated_at`
}
