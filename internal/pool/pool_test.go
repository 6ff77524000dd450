package pool

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"vibedb/internal/domain"
)

const testConnStr = "postgres://vibe_user_abc123def456:pw@localhost:5432/sales?sslmode=disable"

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.DiscardHandler), nil)
}

func TestRegistry_GetCachesPerUserAndDatabase(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	ctx := context.Background()

	a, err := r.Get(ctx, "user-1", "sales", testConnStr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, err := r.Get(ctx, "user-1", "sales", testConnStr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a != b {
		t.Error("same (user, database) should return the cached pool")
	}

	c, err := r.Get(ctx, "user-2", "sales", testConnStr)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a == c {
		t.Error("different users must not share a pool")
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRegistry_GetRejectsBadConnString(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	if _, err := r.Get(context.Background(), "user-1", "sales", "::not a url::"); err == nil {
		t.Error("expected error for malformed connection string")
	}
	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestRegistry_Invalidate(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	ctx := context.Background()

	if _, err := r.Get(ctx, "user-1", "sales", testConnStr); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := r.Get(ctx, "user-1", "inventory", testConnStr); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	r.Invalidate("user-1", "sales")
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after Invalidate = %d, want 1", got)
	}

	// Invalidating a missing pool is a no-op.
	r.Invalidate("user-1", "sales")
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after repeat Invalidate = %d, want 1", got)
	}
}

func TestRegistry_InvalidateUser(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	ctx := context.Background()

	for _, db := range []string{"sales", "inventory"} {
		if _, err := r.Get(ctx, "user-1", db, testConnStr); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if _, err := r.Get(ctx, "user-2", "sales", testConnStr); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	r.InvalidateUser("user-1")
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after InvalidateUser = %d, want 1", got)
	}
}

func TestAdminConnString(t *testing.T) {
	server := &domain.DatabaseServer{
		Host:          "db.example.com",
		Port:          5432,
		AdminUsername: "admin",
		SSLMode:       "require",
	}

	// Passwords with URL-reserved characters must not corrupt the host.
	connStr := AdminConnString(server, "p@ss/w:rd", "sales")
	u, err := url.Parse(connStr)
	if err != nil {
		t.Fatalf("AdminConnString produced an unparseable URL: %v", err)
	}
	if u.Host != "db.example.com:5432" {
		t.Errorf("host = %q, want db.example.com:5432", u.Host)
	}
	if u.Path != "/sales" {
		t.Errorf("path = %q, want /sales", u.Path)
	}
	if got, _ := u.User.Password(); got != "p@ss/w:rd" {
		t.Errorf("password = %q, want p@ss/w:rd", got)
	}
	if u.User.Username() != "admin" {
		t.Errorf("username = %q, want admin", u.User.Username())
	}
	if u.Query().Get("sslmode") != "require" {
		t.Errorf("sslmode = %q, want require", u.Query().Get("sslmode"))
	}
}

func TestAdminConnString_DefaultSSLMode(t *testing.T) {
	server := &domain.DatabaseServer{Host: "localhost", Port: 5432, AdminUsername: "admin"}
	u, err := url.Parse(AdminConnString(server, "pw", "sales"))
	if err != nil {
		t.Fatalf("AdminConnString produced an unparseable URL: %v", err)
	}
	if u.Query().Get("sslmode") != "prefer" {
		t.Errorf("sslmode = %q, want prefer", u.Query().Get("sslmode"))
	}
}

func TestAdminConnect_RejectsBadConnString(t *testing.T) {
	if _, err := AdminConnect(context.Background(), "::not a url::"); err == nil {
		t.Error("expected error for malformed connection string")
	}
}

func TestRegistry_ClosedRejectsGet(t *testing.T) {
	r := newTestRegistry()
	r.Close()

	if _, err := r.Get(context.Background(), "user-1", "sales", testConnStr); !errors.Is(err, domain.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	// Double close must not panic.
	r.Close()
}
