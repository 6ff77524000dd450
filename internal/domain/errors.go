package domain

import "errors"

// Domain errors. The HTTP layer maps these to status codes exactly once.
var (
	// Authentication errors
	ErrAuthMissing = errors.New("API key required")
	ErrAuthInvalid = errors.New("invalid API key")
	ErrAuthExpired = errors.New("API key expired")
	ErrUserLocked  = errors.New("account is locked")

	// Authorization errors
	ErrAuthzDenied        = errors.New("permission denied")
	ErrMasterDBForbidden  = errors.New("master_db is reserved for administrative use and cannot be assigned or granted")
	ErrInvariantViolation = errors.New("invariant violation")

	// Validation errors
	ErrIdentifierInvalid  = errors.New("invalid identifier")
	ErrParameterInvalid   = errors.New("invalid parameter")
	ErrMissingWhereClause = errors.New("WHERE clause is required to prevent affecting all rows")
	ErrBlockedSQL         = errors.New("query contains a blocked operation")
	ErrNotReadOnly        = errors.New("query is not read-only")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password does not meet complexity requirements")
	ErrPasswordReused     = errors.New("password was used recently")

	// Catalog errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrKeyNotFound        = errors.New("API key not found")
	ErrServerNotFound     = errors.New("database server not found")
	ErrServerExists       = errors.New("database server already exists")
	ErrAssignmentNotFound = errors.New("database assignment not found")
	ErrAssignmentExists   = errors.New("database assignment already exists")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrPolicyNotFound     = errors.New("RLS policy not found")
	ErrNoPGUser           = errors.New("no PostgreSQL user exists for this user and database")
	ErrPGUserExists       = errors.New("PostgreSQL user already exists")
	ErrTokenInvalid       = errors.New("invalid or expired reset token")
	ErrTokenUsed          = errors.New("reset token has already been used")

	// Infrastructure errors
	ErrCredentialUnreadable = errors.New("stored credential could not be decrypted; re-enter the secret")
	ErrQueryTimeout         = errors.New("query execution timed out")
	ErrPoolClosed           = errors.New("connection pool registry is closed")
)
