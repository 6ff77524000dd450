// Package auth authenticates API requests against hashed API keys.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vibedb/internal/domain"
	"vibedb/internal/storage/postgres"
	"vibedb/internal/vault"
)

// KeyPrefix is the fixed prefix of every minted API key. Requests whose
// credential lacks it are rejected before any catalog lookup.
const KeyPrefix = "vibe_"

// Authenticator resolves API keys to identities.
type Authenticator struct {
	store *postgres.Store
	vault *vault.Vault
	log   *slog.Logger

	// trustGateway enables X-User-Id delegation. Only set when the daemon
	// sits behind a gateway that has already authenticated the end user.
	trustGateway bool
}

// New creates an authenticator.
func New(store *postgres.Store, v *vault.Vault, log *slog.Logger, trustGateway bool) *Authenticator {
	return &Authenticator{
		store:        store,
		vault:        v,
		log:          log,
		trustGateway: trustGateway,
	}
}

// Authenticate resolves the given plaintext API key to an identity.
// delegateUserID substitutes the effective user when gateway trust is
// enabled; it is ignored otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey, delegateUserID string) (*domain.Identity, error) {
	if apiKey == "" {
		return nil, domain.ErrAuthMissing
	}
	if !strings.HasPrefix(apiKey, KeyPrefix) {
		return nil, domain.ErrAuthInvalid
	}

	digest := a.vault.HashAPIKey(apiKey)
	key, user, err := a.store.APIKeys().GetByHash(ctx, digest)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if key.Expired(now) {
		return nil, domain.ErrAuthExpired
	}
	if !user.IsActive {
		return nil, domain.ErrAuthInvalid
	}
	if user.Locked(now) {
		return nil, domain.ErrUserLocked
	}

	// Best effort; a failed timestamp write never fails the request.
	if err := a.store.APIKeys().TouchLastUsed(ctx, key.ID); err != nil {
		a.log.Debug("failed to update key last_used_at", "key_id", key.ID, "error", err)
	}

	identity := &domain.Identity{
		UserID:          user.ID,
		KeyID:           key.ID,
		Email:           user.Email,
		Organization:    user.Organization,
		PasswordExpired: user.PasswordExpired(now),
		ResetRequired:   user.PasswordResetRequired,
	}

	if a.trustGateway && delegateUserID != "" && delegateUserID != string(user.ID) {
		delegate, err := a.store.Users().Get(ctx, domain.UserID(delegateUserID))
		if err != nil {
			return nil, domain.ErrAuthInvalid
		}
		if !delegate.IsActive {
			return nil, domain.ErrAuthInvalid
		}
		identity.UserID = delegate.ID
		identity.Email = delegate.Email
		identity.Organization = delegate.Organization
		identity.PasswordExpired = delegate.PasswordExpired(now)
		identity.ResetRequired = delegate.PasswordResetRequired
		identity.Delegated = true
		a.log.Info("gateway delegation", "key_user", user.ID, "effective_user", delegate.ID)
	}

	return identity, nil
}
