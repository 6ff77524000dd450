// Package domain defines the catalog entities managed by the control plane.
package domain

import (
	"net/mail"
	"strings"
	"time"
)

// UserID is a unique identifier for a control-plane user.
type UserID string

// String returns the string representation.
func (id UserID) String() string {
	return string(id)
}

// User is a control-plane account. A user owns API keys, database
// assignments, and the PostgreSQL roles materialized on target clusters.
type User struct {
	ID                    UserID
	Email                 string
	Username              string
	PasswordHash          string
	Organization          string
	IsActive              bool
	PasswordChangedAt     *time.Time
	PasswordExpiresAt     *time.Time
	PasswordResetRequired bool
	FailedLoginAttempts   int
	LockedUntil           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate checks the user for structural validity.
func (u *User) Validate() error {
	if u.Email == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(u.Username) == "" {
		return ErrInvalidUsername
	}
	return nil
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// PasswordExpired reports whether the password has passed its expiry.
// API keys keep working after expiry; only interactive login is affected.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresAt != nil && u.PasswordExpiresAt.Before(now)
}
