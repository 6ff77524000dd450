package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vibedb/internal/domain"
)

// TablePermissionRepository manages the catalog mirror of table and
// column-level grants. Column permissions are stored as JSONB.
type TablePermissionRepository struct {
	store *Store
}

const tablePermColumns = `id, vibe_user_id, database_name, schema_name, table_name,
	can_select, can_insert, can_update, can_delete, can_truncate,
	can_references, can_trigger, column_permissions, created_at, updated_at`

// Upsert records a table grant, replacing the verb set if one already
// exists for (user, database, schema, table).
func (r *TablePermissionRepository) Upsert(ctx context.Context, p *domain.TablePermission) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	var columnJSON []byte
	if len(p.ColumnPermissions) > 0 {
		var err error
		columnJSON, err = json.Marshal(p.ColumnPermissions)
		if err != nil {
			return fmt.Errorf("failed to encode column permissions: %w", err)
		}
	}

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO table_permissions (id, vibe_user_id, database_name, schema_name,
			table_name, can_select, can_insert, can_update, can_delete,
			can_truncate, can_references, can_trigger, column_permissions,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (vibe_user_id, database_name, schema_name, table_name)
		DO UPDATE SET
			can_select = EXCLUDED.can_select,
			can_insert = EXCLUDED.can_insert,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete,
			can_truncate = EXCLUDED.can_truncate,
			can_references = EXCLUDED.can_references,
			can_trigger = EXCLUDED.can_trigger,
			column_permissions = EXCLUDED.column_permissions,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.VibeUserID, p.DatabaseName, p.SchemaName, p.TableName,
		p.Verbs.Select, p.Verbs.Insert, p.Verbs.Update, p.Verbs.Delete,
		p.Verbs.Truncate, p.Verbs.References, p.Verbs.Trigger,
		columnJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert table permission: %w", err)
	}
	return nil
}

// Get retrieves the grant for (user, database, schema, table).
func (r *TablePermissionRepository) Get(ctx context.Context, userID domain.UserID, database, schema, table string) (*domain.TablePermission, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+tablePermColumns+` FROM table_permissions
		WHERE vibe_user_id = $1 AND database_name = $2
		  AND schema_name = $3 AND table_name = $4`,
		userID, database, schema, table)
	return scanTablePermission(row)
}

// ListByUser returns all table permissions for a user.
func (r *TablePermissionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.TablePermission, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+tablePermColumns+` FROM table_permissions
		WHERE vibe_user_id = $1
		ORDER BY database_name, schema_name, table_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table permissions: %w", err)
	}
	defer rows.Close()
	return collectTablePermissions(rows)
}

// ListByUserAndDatabase returns the user's table permissions on one
// database.
func (r *TablePermissionRepository) ListByUserAndDatabase(ctx context.Context, userID domain.UserID, database string) ([]*domain.TablePermission, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+tablePermColumns+` FROM table_permissions
		WHERE vibe_user_id = $1 AND database_name = $2
		ORDER BY schema_name, table_name`, userID, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list table permissions: %w", err)
	}
	defer rows.Close()
	return collectTablePermissions(rows)
}

// Delete removes the grant for (user, database, schema, table).
func (r *TablePermissionRepository) Delete(ctx context.Context, userID domain.UserID, database, schema, table string) error {
	tag, err := r.store.pool.Exec(ctx, `
		DELETE FROM table_permissions
		WHERE vibe_user_id = $1 AND database_name = $2
		  AND schema_name = $3 AND table_name = $4`,
		userID, database, schema, table)
	if err != nil {
		return fmt.Errorf("failed to delete table permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPermissionNotFound
	}
	return nil
}

// DeleteByUser removes all table permissions for a user and returns the
// count.
func (r *TablePermissionRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM table_permissions WHERE vibe_user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete table permissions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectTablePermissions(rows pgx.Rows) ([]*domain.TablePermission, error) {
	var perms []*domain.TablePermission
	for rows.Next() {
		p, err := scanTablePermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanTablePermission(row pgx.Row) (*domain.TablePermission, error) {
	var p domain.TablePermission
	var columnJSON []byte
	err := row.Scan(
		&p.ID, &p.VibeUserID, &p.DatabaseName, &p.SchemaName, &p.TableName,
		&p.Verbs.Select, &p.Verbs.Insert, &p.Verbs.Update, &p.Verbs.Delete,
		&p.Verbs.Truncate, &p.Verbs.References, &p.Verbs.Trigger,
		&columnJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan table permission: %w", err)
	}
	if len(columnJSON) > 0 {
		if err := json.Unmarshal(columnJSON, &p.ColumnPermissions); err != nil {
			return nil, fmt.Errorf("failed to decode column permissions: %w", err)
		}
	}
	return &p, nil
}
