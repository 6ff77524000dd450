package server

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"vibedb/internal/domain"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrAuthMissing, http.StatusUnauthorized, "auth_missing"},
		{domain.ErrAuthInvalid, http.StatusUnauthorized, "auth_invalid"},
		{domain.ErrAuthExpired, http.StatusUnauthorized, "auth_expired"},
		{domain.ErrUserLocked, http.StatusUnauthorized, "account_locked"},
		{domain.ErrAuthzDenied, http.StatusForbidden, "permission_denied"},
		{domain.ErrMasterDBForbidden, http.StatusForbidden, "master_db_forbidden"},
		{domain.ErrMissingWhereClause, http.StatusBadRequest, "invalid_request"},
		{domain.ErrBlockedSQL, http.StatusBadRequest, "invalid_request"},
		{domain.ErrNotReadOnly, http.StatusBadRequest, "invalid_request"},
		{domain.ErrIdentifierInvalid, http.StatusBadRequest, "invalid_request"},
		{domain.ErrWeakPassword, http.StatusBadRequest, "invalid_request"},
		{domain.ErrPasswordReused, http.StatusBadRequest, "invalid_request"},
		{domain.ErrTokenInvalid, http.StatusBadRequest, "invalid_request"},
		{domain.ErrUserExists, http.StatusBadRequest, "already_exists"},
		{domain.ErrPGUserExists, http.StatusBadRequest, "already_exists"},
		{domain.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrNoPGUser, http.StatusNotFound, "not_found"},
		{domain.ErrQueryTimeout, http.StatusRequestTimeout, "query_timeout"},
		{domain.ErrCredentialUnreadable, http.StatusInternalServerError, "credential_unreadable"},
		{errors.New("anything else"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("errorStatus(%v) = (%d, %q), want (%d, %q)",
				tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestErrorStatus_WrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), domain.ErrMasterDBForbidden)
	status, code := errorStatus(wrapped)
	if status != http.StatusForbidden || code != "master_db_forbidden" {
		t.Errorf("wrapped sentinel lost: got (%d, %q)", status, code)
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Secret123", true},
		{"long valid", "CorrectHorse9Battery", true},
		{"too short", "Ab1", false},
		{"no upper", "secret123", false},
		{"no lower", "SECRET123", false},
		{"no digit", "SecretPass", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPasswordPolicy(tt.password)
			if tt.ok && err != nil {
				t.Errorf("checkPasswordPolicy(%q) = %v, want nil", tt.password, err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrWeakPassword) {
				t.Errorf("checkPasswordPolicy(%q) = %v, want ErrWeakPassword", tt.password, err)
			}
		})
	}
}

func TestCanRequestReset(t *testing.T) {
	tests := []struct {
		name string
		user *domain.User
		want bool
	}{
		{"unknown email", nil, false},
		{"deactivated account", &domain.User{ID: "u1", IsActive: false}, false},
		{"active account", &domain.User{ID: "u1", IsActive: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canRequestReset(tt.user); got != tt.want {
				t.Errorf("canRequestReset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{`we"ird`, `"we""ird"`},
		{"Mixed_Case", `"Mixed_Case"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestBuildWhere(t *testing.T) {
	clause, args, err := buildWhere(map[string]any{"b": 2, "a": 1}, 0)
	if err != nil {
		t.Fatalf("buildWhere failed: %v", err)
	}
	if clause != `"a" = $1 AND "b" = $2` {
		t.Errorf("clause = %s", clause)
	}
	if len(args) != 2 || args[0] != 1 || args[1] != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_Offset(t *testing.T) {
	clause, args, err := buildWhere(map[string]any{"id": 7}, 3)
	if err != nil {
		t.Fatalf("buildWhere failed: %v", err)
	}
	if clause != `"id" = $4` {
		t.Errorf("clause = %s", clause)
	}
	if len(args) != 1 || args[0] != 7 {
		t.Errorf("args = %v", args)
	}
}

func TestQueryPreview(t *testing.T) {
	short := "SELECT 1"
	if got := queryPreview(short); got != short {
		t.Errorf("queryPreview(%q) = %q", short, got)
	}

	long := "SELECT " + strings.Repeat("x", 200)
	got := queryPreview(long)
	if len(got) != 103 {
		t.Errorf("len(queryPreview(long)) = %d, want 103", len(got))
	}
	if got[:100] != long[:100] {
		t.Error("preview should keep the first 100 characters")
	}
}

func TestBuildWhere_RejectsBadColumn(t *testing.T) {
	if _, _, err := buildWhere(map[string]any{"id; DROP TABLE x": 1}, 0); !errors.Is(err, domain.ErrIdentifierInvalid) {
		t.Errorf("expected ErrIdentifierInvalid, got %v", err)
	}
}
