package domain

import "time"

// APIKeyID is a unique identifier for an API key.
type APIKeyID string

// String returns the string representation.
func (id APIKeyID) String() string {
	return string(id)
}

// APIKey is a hashed API credential. The plaintext is returned exactly once
// at creation and never stored; lookups go through the salted digest.
type APIKey struct {
	ID         APIKeyID
	UserID     UserID
	KeyHash    string
	KeyPrefix  string
	Name       string
	IsActive   bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// Identity is the result of a successful authentication: the effective
// user plus the key that authenticated the request.
type Identity struct {
	UserID          UserID
	KeyID           APIKeyID
	Email           string
	Organization    string
	PasswordExpired bool
	ResetRequired   bool

	// Delegated is true when a trusted gateway substituted the effective
	// user via the X-User-Id header.
	Delegated bool
}
