package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"vibedb/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr && err == nil {
			t.Errorf("ParseLevel(%q): expected error", tt.input)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ParseLevel(%q) = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "nope", Output: "stderr"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestSetLevel(t *testing.T) {
	log, err := New(config.LogConfig{Level: "info", Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer log.Close()

	if err := log.SetLevel("debug"); err != nil {
		t.Errorf("SetLevel(debug) = %v", err)
	}
	if err := log.SetLevel("invalid"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRedactingHandler(slog.NewTextHandler(&buf, nil), []string{"custom_field"})
	log := slog.New(handler)

	log.Info("created role",
		"pg_username", "vibe_user_abc123def456",
		"pg_password", "supersecret",
		"connection_string", "postgres://u:p@h/db",
		"api_key", "vibe_prod_abc",
		"reset_token", "rst_9f8e7d6c",
		"custom_field", "hidden",
		"database", "sales",
	)

	out := buf.String()
	for _, secret := range []string{"supersecret", "postgres://u:p@h/db", "vibe_prod_abc", "rst_9f8e7d6c", "hidden"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected [REDACTED] markers in output")
	}
	if !strings.Contains(out, "vibe_user_abc123def456") {
		t.Error("pg_username should not be redacted")
	}
	if !strings.Contains(out, "sales") {
		t.Error("database should not be redacted")
	}
}

func TestRedactingHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRedactingHandler(slog.NewTextHandler(&buf, nil), nil)
	log := slog.New(handler)

	log.Info("request", slog.Group("auth", slog.String("token", "abc"), slog.String("user", "alice")))

	out := buf.String()
	if strings.Contains(out, "abc") {
		t.Errorf("grouped token leaked: %s", out)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("grouped non-secret redacted: %s", out)
	}
}
