package authz

import "testing"

func TestIsReadOperation(t *testing.T) {
	tests := []struct {
		op   string
		want bool
	}{
		{"select", true},
		{"SELECT", true},
		{" Select ", true},
		{"read", true},
		{"get", true},
		{"list", true},
		{"describe", true},
		{"show", true},
		{"explain", true},
		{"insert", false},
		{"update", false},
		{"delete", false},
		{"create", false},
		{"drop", false},
		{"truncate", false},
		{"unknown", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsReadOperation(tt.op); got != tt.want {
			t.Errorf("IsReadOperation(%q) = %v, want %v", tt.op, got, tt.want)
		}
	}
}
