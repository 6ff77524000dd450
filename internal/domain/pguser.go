package domain

import (
	"regexp"
	"time"
)

// PGUserID is a unique identifier for a materialized PostgreSQL role record.
type PGUserID string

// String returns the string representation.
func (id PGUserID) String() string {
	return string(id)
}

// pgUsernamePattern matches usernames minted by the vault:
// vibe_user_ followed by 12 lowercase alphanumerics.
var pgUsernamePattern = regexp.MustCompile(`^vibe_user_[a-z0-9]{12}$`)

// ValidPGUsername reports whether name has the minted-role form.
func ValidPGUsername(name string) bool {
	return pgUsernamePattern.MatchString(name)
}

// PGDatabaseUser records a native PostgreSQL login role created on a target
// cluster on behalf of a control-plane user. Password and connection string
// are vault ciphertexts. Unique per (user, database).
type PGDatabaseUser struct {
	ID                        PGUserID
	VibeUserID                UserID
	DatabaseName              string
	PGUsername                string
	PGPasswordEncrypted       string
	ConnectionStringEncrypted string
	IsActive                  bool
	CreatedBy                 UserID
	Notes                     string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// PGCredentials is the one-time result of provisioning a PostgreSQL role.
// The password is shown to the caller once and persisted only encrypted.
type PGCredentials struct {
	PGUsername       string
	PGPassword       string
	ConnectionString string
}
