package dispatch

import (
	"errors"
	"testing"

	"vibedb/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM users", OpSelect},
		{"  select 1", OpSelect},
		{"INSERT INTO t VALUES ($1)", OpInsert},
		{"UPDATE t SET a = 1", OpUpdate},
		{"DELETE FROM t WHERE id = 1", OpDelete},
		{"CREATE TABLE t (id int)", OpCreate},
		{"ALTER TABLE t ADD COLUMN b int", OpAlter},
		{"DROP TABLE t", OpDrop},
		{"TRUNCATE t", OpTruncate},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", OpUnknown},
		{"EXPLAIN SELECT 1", OpUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestCheckBlocked(t *testing.T) {
	blocked := []string{
		"DROP DATABASE sales",
		"drop database sales",
		"CREATE DATABASE evil",
		"ALTER DATABASE sales RENAME TO other",
		"GRANT ALL ON t TO someone",
		"REVOKE SELECT ON t FROM someone",
		"CREATE USER intruder",
		"DROP USER vibe_user_abc123def456",
		"ALTER USER postgres WITH PASSWORD 'x'",
		"CREATE ROLE r",
		"DROP ROLE r",
		"ALTER ROLE r",
		"SELECT 1; DROP DATABASE sales",
	}
	for _, query := range blocked {
		if err := CheckBlocked(query); !errors.Is(err, domain.ErrBlockedSQL) {
			t.Errorf("CheckBlocked(%q) = %v, want ErrBlockedSQL", query, err)
		}
	}

	allowed := []string{
		"SELECT * FROM users",
		"INSERT INTO granted_items VALUES (1)", // GRANT only matches as a word
		"SELECT revoked_at FROM tokens",
		"CREATE TABLE sales.orders (id int)",
		"DROP TABLE sales.orders",
	}
	for _, query := range allowed {
		if err := CheckBlocked(query); err != nil {
			t.Errorf("CheckBlocked(%q) = %v, want nil", query, err)
		}
	}
}

func TestIsDangerous(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"DROP TABLE t", true},
		{"drop table t", true},
		{"TRUNCATE t", true},
		{"DELETE FROM t WHERE id = 1", true},
		{"SELECT * FROM t", false},
		{"UPDATE t SET a = 1", false},
	}
	for _, tt := range tests {
		if got := IsDangerous(tt.query); got != tt.want {
			t.Errorf("IsDangerous(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestExtractSchema(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM sales.orders", "sales"},
		{"SELECT * FROM orders", "public"},
		{"INSERT INTO inventory.items VALUES (1)", "inventory"},
		{"UPDATE hr.employees SET salary = 1", "hr"},
		{"DELETE FROM audit.entries WHERE id = 1", "audit"},
		{"CREATE TABLE reporting.daily (id int)", "reporting"},
		{"CREATE TABLE IF NOT EXISTS reporting.daily (id int)", "reporting"},
		{"DROP TABLE staging.tmp", "staging"},
		{"ALTER TABLE finance.ledger ADD COLUMN note text", "finance"},
		{"SELECT a.id FROM sales.orders a JOIN sales.items b ON a.id = b.oid", "sales"},
		{"SELECT 1", "public"},
	}
	for _, tt := range tests {
		if got := ExtractSchema(tt.query); got != tt.want {
			t.Errorf("ExtractSchema(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestTimeout(t *testing.T) {
	d := New(configLimits(30), nil)

	tests := []struct {
		requested int
		wantSec   int
	}{
		{0, 30},
		{-5, 30},
		{10, 10},
		{60, 60},
		{120, 60},
	}
	for _, tt := range tests {
		if got := d.Timeout(tt.requested); got.Seconds() != float64(tt.wantSec) {
			t.Errorf("Timeout(%d) = %v, want %ds", tt.requested, got, tt.wantSec)
		}
	}
}
