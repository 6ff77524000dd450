// Package postgres implements the catalog store on PostgreSQL. The catalog
// is authoritative for users, keys, assignments, grants, and policies; it
// is accessed through one admin-privileged pool owned by the process and is
// never itself assignable to users.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vibedb/internal/config"
)

// Store holds the master pool and the catalog repositories.
type Store struct {
	pool    *pgxpool.Pool
	connStr string

	users       *UserRepository
	apiKeys     *APIKeyRepository
	servers     *ServerRepository
	assignments *AssignmentRepository
	pgUsers     *PGUserRepository
	schemaPerms *SchemaPermissionRepository
	tablePerms  *TablePermissionRepository
	rlsPolicies *RLSPolicyRepository
	passwords   *PasswordRepository
	audit       *AuditRepository

	mu     sync.RWMutex
	closed bool
}

// New connects to the catalog database and initializes the repositories.
func New(ctx context.Context, cfg config.CatalogConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog connection string: %w", err)
	}

	poolConfig.MinConns = int32(cfg.MinPoolSize)
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 5
	}
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	return newStore(pool, cfg.URL), nil
}

// NewWithPool creates a store with an existing pool (for testing).
func NewWithPool(pool *pgxpool.Pool) *Store {
	return newStore(pool, "")
}

func newStore(pool *pgxpool.Pool, connStr string) *Store {
	s := &Store{pool: pool, connStr: connStr}

	s.users = &UserRepository{store: s}
	s.apiKeys = &APIKeyRepository{store: s}
	s.servers = &ServerRepository{store: s}
	s.assignments = &AssignmentRepository{store: s}
	s.pgUsers = &PGUserRepository{store: s}
	s.schemaPerms = &SchemaPermissionRepository{store: s}
	s.tablePerms = &TablePermissionRepository{store: s}
	s.rlsPolicies = &RLSPolicyRepository{store: s}
	s.passwords = &PasswordRepository{store: s}
	s.audit = &AuditRepository{store: s}

	return s
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return s.users }

// APIKeys returns the API-key repository.
func (s *Store) APIKeys() *APIKeyRepository { return s.apiKeys }

// Servers returns the database-server repository.
func (s *Store) Servers() *ServerRepository { return s.servers }

// Assignments returns the database-assignment repository.
func (s *Store) Assignments() *AssignmentRepository { return s.assignments }

// PGUsers returns the materialized-role repository.
func (s *Store) PGUsers() *PGUserRepository { return s.pgUsers }

// SchemaPermissions returns the schema-permission repository.
func (s *Store) SchemaPermissions() *SchemaPermissionRepository { return s.schemaPerms }

// TablePermissions returns the table-permission repository.
func (s *Store) TablePermissions() *TablePermissionRepository { return s.tablePerms }

// RLSPolicies returns the RLS-policy repository.
func (s *Store) RLSPolicies() *RLSPolicyRepository { return s.rlsPolicies }

// Passwords returns the reset-token and password-history repository.
func (s *Store) Passwords() *PasswordRepository { return s.passwords }

// Audit returns the audit-log repository.
func (s *Store) Audit() *AuditRepository { return s.audit }

// ConnString returns the catalog connection string, used by migrations.
func (s *Store) ConnString() string { return s.connStr }

// Ping verifies catalog reachability; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the catalog pool.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pool.Close()
}
