package domain

import "time"

// AuditEntry is one row of the append-only operation log. Entries are
// written best-effort and may be dropped under pressure without failing the
// request that produced them.
type AuditEntry struct {
	UserID          UserID
	APIKeyID        APIKeyID
	Endpoint        string
	Method          string
	DatabaseName    string
	SchemaName      string
	TableName       string
	Operation       string
	RequestBody     map[string]any
	ResponseStatus  int
	ErrorMessage    string
	ExecutionTimeMS int64
	CreatedAt       time.Time
}

// CleanupStats counts what a user-removal cascade actually deleted.
type CleanupStats struct {
	PGUsersDropped           int      `json:"pg_users_dropped"`
	SchemaPermissionsRevoked int      `json:"schema_permissions_revoked"`
	TablePermissionsRevoked  int      `json:"table_permissions_revoked"`
	RLSPoliciesDropped       int      `json:"rls_policies_dropped"`
	AssignmentsRemoved       int      `json:"assignments_removed"`
	APIKeysDeleted           int      `json:"api_keys_deleted"`
	DatabasesAffected        []string `json:"databases_affected"`
}

// UserCleanupAudit records the outcome of a user-removal cascade. A failed
// insert here never masks a completed cleanup.
type UserCleanupAudit struct {
	UserID      UserID
	UserEmail   string
	CleanupType string
	PerformedBy UserID
	Stats       CleanupStats
	CreatedAt   time.Time
}

// PasswordResetToken stores the SHA-256 digest of an outstanding reset
// token; the plaintext travels only in the outbound email.
type PasswordResetToken struct {
	ID        string
	UserID    UserID
	TokenHash string
	Email     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// PasswordHistoryEntry is a prior password hash kept to prevent reuse.
type PasswordHistoryEntry struct {
	UserID       UserID
	PasswordHash string
	CreatedAt    time.Time
}
