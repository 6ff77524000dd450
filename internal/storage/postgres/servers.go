package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vibedb/internal/domain"
)

// ServerRepository manages registered PostgreSQL clusters.
type ServerRepository struct {
	store *Store
}

const serverColumns = `id, server_name, host, port, admin_username,
	admin_password_encrypted, ssl_mode, is_active, created_at, updated_at`

// Create registers a new database server.
func (r *ServerRepository) Create(ctx context.Context, server *domain.DatabaseServer) error {
	if server.ID == "" {
		server.ID = domain.ServerID(uuid.NewString())
	}
	now := time.Now().UTC()
	server.CreatedAt = now
	server.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO database_servers (id, server_name, host, port, admin_username,
			admin_password_encrypted, ssl_mode, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		server.ID, server.ServerName, server.Host, server.Port,
		server.AdminUsername, server.AdminPasswordEncrypted, server.SSLMode,
		server.IsActive, server.CreatedAt, server.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrServerExists
	}
	if err != nil {
		return fmt.Errorf("failed to create database server: %w", err)
	}
	return nil
}

// Get retrieves a server by ID.
func (r *ServerRepository) Get(ctx context.Context, id domain.ServerID) (*domain.DatabaseServer, error) {
	row := r.store.pool.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM database_servers WHERE id = $1`, id)
	return scanServer(row)
}

// GetByName retrieves a server by its unique name.
func (r *ServerRepository) GetByName(ctx context.Context, name string) (*domain.DatabaseServer, error) {
	row := r.store.pool.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM database_servers WHERE server_name = $1`, name)
	return scanServer(row)
}

// List returns all registered servers.
func (r *ServerRepository) List(ctx context.Context) ([]*domain.DatabaseServer, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT `+serverColumns+` FROM database_servers ORDER BY server_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list database servers: %w", err)
	}
	defer rows.Close()

	var servers []*domain.DatabaseServer
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

// Update rewrites the mutable server fields.
func (r *ServerRepository) Update(ctx context.Context, server *domain.DatabaseServer) error {
	server.UpdatedAt = time.Now().UTC()
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE database_servers
		SET server_name = $2, host = $3, port = $4, admin_username = $5,
			admin_password_encrypted = $6, ssl_mode = $7, is_active = $8,
			updated_at = $9
		WHERE id = $1`,
		server.ID, server.ServerName, server.Host, server.Port,
		server.AdminUsername, server.AdminPasswordEncrypted, server.SSLMode,
		server.IsActive, server.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrServerExists
	}
	if err != nil {
		return fmt.Errorf("failed to update database server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrServerNotFound
	}
	return nil
}

// Delete removes a server registration.
func (r *ServerRepository) Delete(ctx context.Context, id domain.ServerID) error {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM database_servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete database server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrServerNotFound
	}
	return nil
}

func scanServer(row pgx.Row) (*domain.DatabaseServer, error) {
	var server domain.DatabaseServer
	err := row.Scan(
		&server.ID, &server.ServerName, &server.Host, &server.Port,
		&server.AdminUsername, &server.AdminPasswordEncrypted, &server.SSLMode,
		&server.IsActive, &server.CreatedAt, &server.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan database server: %w", err)
	}
	return &server, nil
}
