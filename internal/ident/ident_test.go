package ident

import (
	"strings"
	"testing"

	"vibedb/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "users", true},
		{"with digits", "orders2024", true},
		{"with underscore", "order_items", true},
		{"with hyphen", "tenant-data", true},
		{"max length", "a" + strings.Repeat("b", 62), true},
		{"empty", "", false},
		{"leading digit", "1users", false},
		{"leading underscore", "_users", false},
		{"too long", "a" + strings.Repeat("b", 63), false},
		{"semicolon", "users;drop", false},
		{"space", "user table", false},
		{"quote", `us"ers`, false},
		{"dot", "public.users", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.ok && err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.input, err)
			}
			if !tt.ok && err != domain.ErrIdentifierInvalid {
				t.Errorf("Validate(%q) = %v, want ErrIdentifierInvalid", tt.input, err)
			}
		})
	}
}

func TestValidateStrict(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "sales", true},
		{"underscore", "sales_2024", true},
		{"hyphen rejected", "tenant-data", false},
		{"comment sequence", "users--", false},
		{"block comment", "users/*x*/", false},
		{"semicolon", "a;b", false},
		{"null byte", "a\x00b", false},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 64), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStrict(tt.input)
			if tt.ok && err != nil {
				t.Errorf("ValidateStrict(%q) = %v, want nil", tt.input, err)
			}
			if !tt.ok && err != domain.ErrIdentifierInvalid {
				t.Errorf("ValidateStrict(%q) = %v, want ErrIdentifierInvalid", tt.input, err)
			}
		})
	}
}
