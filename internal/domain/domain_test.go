package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestIsMasterDatabase(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"master_db", true},
		{"MASTER_DB", true},
		{"Master_Db", true},
		{"masterdb", false},
		{"master_db2", false},
		{"sales", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMasterDatabase(tt.name); got != tt.want {
			t.Errorf("IsMasterDatabase(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name string
		user User
		want error
	}{
		{"valid", User{Email: "a@example.com", Username: "alice"}, nil},
		{"empty email", User{Username: "alice"}, ErrInvalidEmail},
		{"malformed email", User{Email: "not-an-email", Username: "alice"}, ErrInvalidEmail},
		{"empty username", User{Email: "a@example.com"}, ErrInvalidUsername},
		{"whitespace username", User{Email: "a@example.com", Username: "   "}, ErrInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Validate(); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if (&User{}).Locked(now) {
		t.Error("user with no lockout should not be locked")
	}
	if !(&User{LockedUntil: &future}).Locked(now) {
		t.Error("user locked until the future should be locked")
	}
	if (&User{LockedUntil: &past}).Locked(now) {
		t.Error("expired lockout should not be locked")
	}
}

func TestUserPasswordExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (&User{}).PasswordExpired(now) {
		t.Error("user with no expiry should not be expired")
	}
	if !(&User{PasswordExpiresAt: &past}).PasswordExpired(now) {
		t.Error("past expiry should report expired")
	}
	if (&User{PasswordExpiresAt: &future}).PasswordExpired(now) {
		t.Error("future expiry should not report expired")
	}
}

func TestTableVerbsList_Order(t *testing.T) {
	verbs := TableVerbs{
		Select: true, Insert: true, Update: true, Delete: true,
		Truncate: true, References: true, Trigger: true,
	}
	want := []string{"SELECT", "INSERT", "UPDATE", "DELETE", "TRUNCATE", "REFERENCES", "TRIGGER"}
	if got := verbs.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	partial := TableVerbs{Insert: true, Select: true}
	if got := partial.List(); !reflect.DeepEqual(got, []string{"SELECT", "INSERT"}) {
		t.Errorf("List() = %v, want [SELECT INSERT]", got)
	}
}

func TestTableVerbsEmpty(t *testing.T) {
	if !(TableVerbs{}).Empty() {
		t.Error("zero verbs should be empty")
	}
	if (TableVerbs{Trigger: true}).Empty() {
		t.Error("one verb should not be empty")
	}
}

func TestRLSPolicyType(t *testing.T) {
	valid := []RLSPolicyType{PolicySelect, PolicyInsert, PolicyUpdate, PolicyDelete, PolicyAll}
	for _, pt := range valid {
		if !pt.IsValid() {
			t.Errorf("%s should be valid", pt)
		}
	}
	if RLSPolicyType("MERGE").IsValid() {
		t.Error("MERGE should be invalid")
	}
	if RLSPolicyType("select").IsValid() {
		t.Error("lowercase select should be invalid")
	}
}

func TestRLSPolicyType_AllowsWithCheck(t *testing.T) {
	tests := []struct {
		pt   RLSPolicyType
		want bool
	}{
		{PolicyInsert, true},
		{PolicyUpdate, true},
		{PolicyAll, true},
		{PolicySelect, false},
		{PolicyDelete, false},
	}
	for _, tt := range tests {
		if got := tt.pt.AllowsWithCheck(); got != tt.want {
			t.Errorf("%s.AllowsWithCheck() = %v, want %v", tt.pt, got, tt.want)
		}
	}
}

func TestRLSCommandType(t *testing.T) {
	if !PolicyPermissive.IsValid() || !PolicyRestrictive.IsValid() {
		t.Error("PERMISSIVE and RESTRICTIVE should be valid")
	}
	if RLSCommandType("BOTH").IsValid() {
		t.Error("BOTH should be invalid")
	}
}

func TestValidPGUsername(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"vibe_user_abc123def456", true},
		{"vibe_user_000000000000", true},
		{"vibe_user_ABC123DEF456", false},
		{"vibe_user_short", false},
		{"vibe_user_abc123def4567", false},
		{"other_user_abc123def456", false},
		{"vibe_user_", false},
	}
	for _, tt := range tests {
		if got := ValidPGUsername(tt.name); got != tt.want {
			t.Errorf("ValidPGUsername(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSchemaPermissionLevel(t *testing.T) {
	if !PermissionReadOnly.IsValid() || !PermissionReadWrite.IsValid() {
		t.Error("read_only and read_write should be valid")
	}
	if SchemaPermissionLevel("admin").IsValid() {
		t.Error("admin should be invalid")
	}
}
