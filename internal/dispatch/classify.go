package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"vibedb/internal/domain"
)

// Operation classes recognized by the dispatcher.
const (
	OpSelect   = "select"
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpCreate   = "create"
	OpAlter    = "alter"
	OpDrop     = "drop"
	OpTruncate = "truncate"
	OpUnknown  = "unknown"
)

// Classify determines the operation class from the first keyword.
func Classify(query string) string {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return OpSelect
	case strings.HasPrefix(upper, "INSERT"):
		return OpInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return OpUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return OpDelete
	case strings.HasPrefix(upper, "CREATE"):
		return OpCreate
	case strings.HasPrefix(upper, "ALTER"):
		return OpAlter
	case strings.HasPrefix(upper, "DROP"):
		return OpDrop
	case strings.HasPrefix(upper, "TRUNCATE"):
		return OpTruncate
	default:
		return OpUnknown
	}
}

// blockedPatterns match statements that must never run through the data
// plane regardless of the caller's privileges. Role and database lifecycle
// belongs to the control plane only.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bDROP\s+DATABASE\b`),
	regexp.MustCompile(`\bCREATE\s+DATABASE\b`),
	regexp.MustCompile(`\bALTER\s+DATABASE\b`),
	regexp.MustCompile(`\bGRANT\b`),
	regexp.MustCompile(`\bREVOKE\b`),
	regexp.MustCompile(`\bCREATE\s+USER\b`),
	regexp.MustCompile(`\bDROP\s+USER\b`),
	regexp.MustCompile(`\bALTER\s+USER\b`),
	regexp.MustCompile(`\bCREATE\s+ROLE\b`),
	regexp.MustCompile(`\bDROP\s+ROLE\b`),
	regexp.MustCompile(`\bALTER\s+ROLE\b`),
}

// CheckBlocked rejects queries containing a blocked statement class.
func CheckBlocked(query string) error {
	upper := strings.ToUpper(query)
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(upper) {
			return fmt.Errorf("%w: %s", domain.ErrBlockedSQL, pattern.String())
		}
	}
	return nil
}

// dangerousFragments mark queries flagged in the response but still
// allowed to run.
var dangerousFragments = []string{"DROP TABLE", "TRUNCATE", "DELETE FROM"}

// IsDangerous reports whether the query contains a destructive fragment.
func IsDangerous(query string) bool {
	upper := strings.ToUpper(query)
	for _, fragment := range dangerousFragments {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// schemaPatterns locate a schema-qualified table reference. Order matters:
// CREATE TABLE IF NOT EXISTS is checked before the generic clause pattern.
var schemaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([a-zA-Z_][a-zA-Z0-9_]*)\.`),
	regexp.MustCompile(`(?i)(?:FROM|JOIN|INTO|UPDATE|DELETE\s+FROM|INSERT\s+INTO|DROP\s+TABLE|ALTER\s+TABLE)\s+([a-zA-Z_][a-zA-Z0-9_]*)\.`),
	regexp.MustCompile(`(?i)(?:TABLE)\s+([a-zA-Z_][a-zA-Z0-9_]*)\.`),
}

// ExtractSchema finds the schema a query touches, defaulting to public
// when no reference is schema-qualified.
func ExtractSchema(query string) string {
	for _, pattern := range schemaPatterns {
		if match := pattern.FindStringSubmatch(query); match != nil {
			return match[1]
		}
	}
	return "public"
}
