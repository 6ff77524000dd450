// Package ident validates SQL identifiers before they are embedded into
// dynamic statements. Values never pass through here; they go through
// parameter binding.
package ident

import (
	"regexp"
	"strings"

	"vibedb/internal/domain"
)

// identifierPattern is the general form accepted at the API boundary:
// a letter followed by up to 62 letters, digits, underscores, or hyphens.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,62}$`)

// strictPattern drops the hyphen; used where identifiers are concatenated
// into privileged DDL.
var strictPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,62}$`)

// Valid reports whether s is a safe identifier for schema, table, column,
// or role positions.
func Valid(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate returns domain.ErrIdentifierInvalid if s is not a safe
// identifier.
func Validate(s string) error {
	if !Valid(s) {
		return domain.ErrIdentifierInvalid
	}
	return nil
}

// ValidateStrict applies the tighter form used by the permission
// materializer and role manager: no hyphens, max 63 characters, and an
// explicit scan for comment and statement-separator sequences.
func ValidateStrict(s string) error {
	if s == "" || len(s) > 63 {
		return domain.ErrIdentifierInvalid
	}
	for _, bad := range []string{";", "--", "/*", "*/", "\x00"} {
		if strings.Contains(s, bad) {
			return domain.ErrIdentifierInvalid
		}
	}
	if !strictPattern.MatchString(s) {
		return domain.ErrIdentifierInvalid
	}
	return nil
}
