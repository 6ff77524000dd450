// Package pgrole materializes catalog users as native PostgreSQL login
// roles on target databases. Every operation mutates the target first and
// the catalog mirror second, so a crash can only leave an orphaned native
// role, never a catalog row pointing at a missing one.
package pgrole

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"vibedb/internal/domain"
	"vibedb/internal/pool"
	"vibedb/internal/storage/postgres"
	"vibedb/internal/vault"
)

// Manager creates, drops, and rotates native PostgreSQL roles.
type Manager struct {
	store *postgres.Store
	vault *vault.Vault
	pools *pool.Registry
	log   *slog.Logger
}

// New creates a role manager.
func New(store *postgres.Store, v *vault.Vault, pools *pool.Registry, log *slog.Logger) *Manager {
	return &Manager{store: store, vault: v, pools: pools, log: log}
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a string literal, doubling embedded quotes.
// CREATE USER cannot take a bind parameter for the password, so the
// minted password is escaped and inlined. Minted passwords are URL-safe
// base64 and never contain quotes; the escaping is for correctness.
func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// rewriteConnectionString swaps the userinfo of base for the given role
// credentials, preserving host, port, database, and query parameters.
func rewriteConnectionString(base, username, password string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// databaseFromConnString extracts the database name from a connection URL.
func databaseFromConnString(connStr string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("connection string has no database path")
	}
	return db, nil
}

// usernameFromConnString extracts the user from a connection URL.
func usernameFromConnString(connStr string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	if u.User == nil {
		return "", fmt.Errorf("connection string has no user")
	}
	return u.User.Username(), nil
}

// CreatePGUser provisions a native login role for (user, database) using
// the given admin connection string, records the encrypted credentials,
// and upserts the user's assignment. The plaintext credentials are
// returned exactly once.
func (m *Manager) CreatePGUser(ctx context.Context, userID domain.UserID, database, adminConnStr string, createdBy domain.UserID, notes string) (*domain.PGCredentials, error) {
	if domain.IsMasterDatabase(database) {
		return nil, domain.ErrMasterDBForbidden
	}

	if _, err := m.store.PGUsers().Get(ctx, userID, database); err == nil {
		return nil, domain.ErrPGUserExists
	} else if err != domain.ErrNoPGUser {
		return nil, err
	}

	username, password, err := vault.NewPGCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to mint credentials: %w", err)
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx,
		"CREATE USER "+quoteIdent(username)+" WITH LOGIN PASSWORD "+quoteLiteral(password)); err != nil {
		return nil, fmt.Errorf("failed to create role %s: %w", username, err)
	}

	dbName, err := databaseFromConnString(adminConnStr)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx,
		"GRANT CONNECT ON DATABASE "+quoteIdent(dbName)+" TO "+quoteIdent(username)); err != nil {
		return nil, fmt.Errorf("failed to grant connect: %w", err)
	}

	connStr, err := rewriteConnectionString(adminConnStr, username, password)
	if err != nil {
		return nil, err
	}

	passwordEnc, err := m.vault.Encrypt(password)
	if err != nil {
		return nil, err
	}
	connStrEnc, err := m.vault.Encrypt(connStr)
	if err != nil {
		return nil, err
	}

	record := &domain.PGDatabaseUser{
		VibeUserID:                userID,
		DatabaseName:              database,
		PGUsername:                username,
		PGPasswordEncrypted:       passwordEnc,
		ConnectionStringEncrypted: connStrEnc,
		IsActive:                  true,
		CreatedBy:                 createdBy,
		Notes:                     notes,
	}
	if err := m.store.PGUsers().Create(ctx, record); err != nil {
		return nil, err
	}

	// The assignment carries the same scoped connection string so the
	// data plane can build the user's pool.
	assignment := &domain.DatabaseAssignment{
		UserID:                    userID,
		DatabaseName:              database,
		ConnectionStringEncrypted: connStrEnc,
		IsActive:                  true,
	}
	if err := m.store.Assignments().Create(ctx, assignment); err == domain.ErrAssignmentExists {
		if err := m.store.Assignments().UpdateConnectionString(ctx, userID, database, connStrEnc); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	m.log.Info("created pg role", "user_id", userID, "database", database, "pg_username", username)

	return &domain.PGCredentials{
		PGUsername:       username,
		PGPassword:       password,
		ConnectionString: connStr,
	}, nil
}

// DropPGUser removes the native role for (user, database) and hard-deletes
// the catalog rows. Each target-side step is best effort: a half-dropped
// role still loses its catalog rows so the cleanup converges.
func (m *Manager) DropPGUser(ctx context.Context, userID domain.UserID, database, adminConnStr string) error {
	record, err := m.store.PGUsers().Get(ctx, userID, database)
	if err != nil {
		return err
	}
	username := record.PGUsername

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	adminUser, err := usernameFromConnString(adminConnStr)
	if err != nil {
		return err
	}
	dbName, err := databaseFromConnString(adminConnStr)
	if err != nil {
		return err
	}

	steps := []string{
		"REASSIGN OWNED BY " + quoteIdent(username) + " TO " + quoteIdent(adminUser),
		"DROP OWNED BY " + quoteIdent(username),
		"REVOKE ALL PRIVILEGES ON DATABASE " + quoteIdent(dbName) + " FROM " + quoteIdent(username),
		"DROP USER IF EXISTS " + quoteIdent(username),
	}
	for _, stmt := range steps {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			m.log.Warn("role drop step failed", "pg_username", username, "statement", stmt, "error", err)
		}
	}

	m.pools.Invalidate(userID, database)

	if err := m.store.PGUsers().Delete(ctx, userID, database); err != nil && err != domain.ErrNoPGUser {
		return err
	}
	if err := m.store.Assignments().Delete(ctx, userID, database); err != nil && err != domain.ErrAssignmentNotFound {
		return err
	}

	m.log.Info("dropped pg role", "user_id", userID, "database", database, "pg_username", username)
	return nil
}

// ResetPGPassword rotates the native role's password and re-encrypts the
// stored credentials. Existing pools for the pair are invalidated so new
// queries pick up the rotated password.
func (m *Manager) ResetPGPassword(ctx context.Context, userID domain.UserID, database, adminConnStr string) (*domain.PGCredentials, error) {
	record, err := m.store.PGUsers().Get(ctx, userID, database)
	if err != nil {
		return nil, err
	}

	password, err := vault.NewPGPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to mint password: %w", err)
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	// ALTER USER is a utility statement and cannot take a bind parameter
	// for the password; the escaped literal is the only form PostgreSQL
	// accepts here.
	if _, err := conn.Exec(ctx,
		"ALTER USER "+quoteIdent(record.PGUsername)+" WITH PASSWORD "+quoteLiteral(password)); err != nil {
		return nil, fmt.Errorf("failed to alter role password: %w", err)
	}

	connStr, err := rewriteConnectionString(adminConnStr, record.PGUsername, password)
	if err != nil {
		return nil, err
	}

	passwordEnc, err := m.vault.Encrypt(password)
	if err != nil {
		return nil, err
	}
	connStrEnc, err := m.vault.Encrypt(connStr)
	if err != nil {
		return nil, err
	}

	if err := m.store.PGUsers().UpdatePassword(ctx, record.ID, passwordEnc, connStrEnc); err != nil {
		return nil, err
	}
	if err := m.store.Assignments().UpdateConnectionString(ctx, userID, database, connStrEnc); err != nil && err != domain.ErrAssignmentNotFound {
		return nil, err
	}

	m.pools.Invalidate(userID, database)
	m.log.Info("reset pg role password", "user_id", userID, "database", database, "pg_username", record.PGUsername)

	return &domain.PGCredentials{
		PGUsername:       record.PGUsername,
		PGPassword:       password,
		ConnectionString: connStr,
	}, nil
}

// ConnectionString decrypts the stored scoped connection string for
// (user, database).
func (m *Manager) ConnectionString(ctx context.Context, userID domain.UserID, database string) (string, error) {
	record, err := m.store.PGUsers().GetActive(ctx, userID, database)
	if err != nil {
		return "", err
	}
	return m.vault.Decrypt(record.ConnectionStringEncrypted)
}
