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

// SchemaPermissionRepository manages the catalog mirror of schema-level
// grants.
type SchemaPermissionRepository struct {
	store *Store
}

const schemaPermColumns = `id, user_id, database_name, schema_name, permission,
	created_at, updated_at`

// Upsert records a schema grant, replacing the level if one already exists
// for (user, database, schema).
func (r *SchemaPermissionRepository) Upsert(ctx context.Context, p *domain.SchemaPermission) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO schema_permissions (id, user_id, database_name, schema_name,
			permission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, database_name, schema_name)
		DO UPDATE SET permission = EXCLUDED.permission, updated_at = EXCLUDED.updated_at`,
		p.ID, p.UserID, p.DatabaseName, p.SchemaName, p.Permission,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schema permission: %w", err)
	}
	return nil
}

// Get retrieves the permission for (user, database, schema).
func (r *SchemaPermissionRepository) Get(ctx context.Context, userID domain.UserID, database, schema string) (*domain.SchemaPermission, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+schemaPermColumns+` FROM schema_permissions
		WHERE user_id = $1 AND database_name = $2 AND schema_name = $3`,
		userID, database, schema)
	return scanSchemaPermission(row)
}

// ListByUser returns all schema permissions for a user.
func (r *SchemaPermissionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.SchemaPermission, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+schemaPermColumns+` FROM schema_permissions
		WHERE user_id = $1 ORDER BY database_name, schema_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema permissions: %w", err)
	}
	defer rows.Close()
	return collectSchemaPermissions(rows)
}

// ListByUserAndDatabase returns the user's schema permissions on one
// database. The authorizer calls this per request.
func (r *SchemaPermissionRepository) ListByUserAndDatabase(ctx context.Context, userID domain.UserID, database string) ([]*domain.SchemaPermission, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+schemaPermColumns+` FROM schema_permissions
		WHERE user_id = $1 AND database_name = $2 ORDER BY schema_name`,
		userID, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema permissions: %w", err)
	}
	defer rows.Close()
	return collectSchemaPermissions(rows)
}

// Delete removes the permission for (user, database, schema).
func (r *SchemaPermissionRepository) Delete(ctx context.Context, userID domain.UserID, database, schema string) error {
	tag, err := r.store.pool.Exec(ctx, `
		DELETE FROM schema_permissions
		WHERE user_id = $1 AND database_name = $2 AND schema_name = $3`,
		userID, database, schema)
	if err != nil {
		return fmt.Errorf("failed to delete schema permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPermissionNotFound
	}
	return nil
}

// DeleteByUser removes all schema permissions for a user and returns the
// count.
func (r *SchemaPermissionRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM schema_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schema permissions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectSchemaPermissions(rows pgx.Rows) ([]*domain.SchemaPermission, error) {
	var perms []*domain.SchemaPermission
	for rows.Next() {
		p, err := scanSchemaPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanSchemaPermission(row pgx.Row) (*domain.SchemaPermission, error) {
	var p domain.SchemaPermission
	err := row.Scan(
		&p.ID, &p.UserID, &p.DatabaseName, &p.SchemaName, &p.Permission,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan schema permission: %w", err)
	}
	return &p, nil
}
