package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// stringOrEmpty converts a nullable scan target back to a plain string.
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
