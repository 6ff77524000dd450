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

// PasswordRepository manages reset tokens and the password-reuse history.
type PasswordRepository struct {
	store *Store
}

// CreateResetToken stores the digest of a newly minted reset token.
func (r *PasswordRepository) CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, email,
			expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.TokenHash, t.Email, t.ExpiresAt,
		nullString(t.IPAddress), nullString(t.UserAgent), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// GetResetToken looks up an outstanding token by digest. Expired and used
// tokens map to distinct errors so callers can report precisely.
func (r *PasswordRepository) GetResetToken(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, email, expires_at, used_at,
			ip_address, user_agent, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1`, tokenHash)

	var t domain.PasswordResetToken
	var ip, agent *string
	err := row.Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.Email, &t.ExpiresAt, &t.UsedAt,
		&ip, &agent, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}
	t.IPAddress = stringOrEmpty(ip)
	t.UserAgent = stringOrEmpty(agent)

	if t.UsedAt != nil {
		return nil, domain.ErrTokenUsed
	}
	if t.ExpiresAt.Before(time.Now().UTC()) {
		return nil, domain.ErrTokenInvalid
	}
	return &t, nil
}

// MarkTokenUsed consumes a reset token. A token is single use.
func (r *PasswordRepository) MarkTokenUsed(ctx context.Context, id string) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE id = $1 AND used_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenUsed
	}
	return nil
}

// InvalidateUserTokens consumes all outstanding tokens for a user. Called
// when a new token is minted or the password changes.
func (r *PasswordRepository) InvalidateUserTokens(ctx context.Context, userID domain.UserID) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE user_id = $1 AND used_at IS NULL`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to invalidate reset tokens: %w", err)
	}
	return nil
}

// AddHistory records a password hash and trims the history to keep.
func (r *PasswordRepository) AddHistory(ctx context.Context, userID domain.UserID, hash string, keep int) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO password_history (user_id, password_hash, created_at)
		VALUES ($1, $2, $3)`,
		userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record password history: %w", err)
	}

	_, err = r.store.pool.Exec(ctx, `
		DELETE FROM password_history
		WHERE user_id = $1 AND created_at NOT IN (
			SELECT created_at FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`, userID, keep)
	if err != nil {
		return fmt.Errorf("failed to trim password history: %w", err)
	}
	return nil
}

// RecentHashes returns the newest password hashes for reuse checking.
func (r *PasswordRepository) RecentHashes(ctx context.Context, userID domain.UserID, limit int) ([]string, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT password_hash FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list password history: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan password history: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// DeleteByUser removes a user's history and tokens during removal.
func (r *PasswordRepository) DeleteByUser(ctx context.Context, userID domain.UserID) error {
	if _, err := r.store.pool.Exec(ctx,
		`DELETE FROM password_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete password history: %w", err)
	}
	if _, err := r.store.pool.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}
	return nil
}
