package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vibedb/internal/domain"
)

// AuditRepository appends to the operation log and the cleanup log.
type AuditRepository struct {
	store *Store
}

// Insert appends one entry to the operation log.
func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var bodyJSON []byte
	if len(e.RequestBody) > 0 {
		var err error
		bodyJSON, err = json.Marshal(e.RequestBody)
		if err != nil {
			bodyJSON = nil
		}
	}

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO audit_log (id, user_id, api_key_id, endpoint, method,
			database_name, schema_name, table_name, operation, request_body,
			response_status, error_message, execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.NewString(),
		nullString(string(e.UserID)), nullString(string(e.APIKeyID)),
		e.Endpoint, e.Method,
		nullString(e.DatabaseName), nullString(e.SchemaName), nullString(e.TableName),
		nullString(e.Operation), bodyJSON,
		e.ResponseStatus, nullString(e.ErrorMessage), e.ExecutionTimeMS,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// InsertCleanup records the outcome of a user-removal cascade.
func (r *AuditRepository) InsertCleanup(ctx context.Context, a *domain.UserCleanupAudit) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(a.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode cleanup stats: %w", err)
	}

	_, err = r.store.pool.Exec(ctx, `
		INSERT INTO user_cleanup_audit (id, user_id, user_email, cleanup_type,
			performed_by, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), a.UserID, a.UserEmail, a.CleanupType,
		nullString(string(a.PerformedBy)), statsJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cleanup audit: %w", err)
	}
	return nil
}

// DeleteByUser removes a user's operation-log entries during removal.
func (r *AuditRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM audit_log WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByUser returns recent operation-log entries for one user.
func (r *AuditRepository) ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.store.pool.Query(ctx, `
		SELECT user_id, api_key_id, endpoint, method, database_name,
			schema_name, table_name, operation, request_body,
			response_status, error_message, execution_time_ms, created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var userID, keyID, database, schema, table, operation, errMsg *string
		var bodyJSON []byte
		if err := rows.Scan(
			&userID, &keyID, &e.Endpoint, &e.Method, &database,
			&schema, &table, &operation, &bodyJSON,
			&e.ResponseStatus, &errMsg, &e.ExecutionTimeMS, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.UserID = domain.UserID(stringOrEmpty(userID))
		e.APIKeyID = domain.APIKeyID(stringOrEmpty(keyID))
		e.DatabaseName = stringOrEmpty(database)
		e.SchemaName = stringOrEmpty(schema)
		e.TableName = stringOrEmpty(table)
		e.Operation = stringOrEmpty(operation)
		e.ErrorMessage = stringOrEmpty(errMsg)
		if len(bodyJSON) > 0 {
			_ = json.Unmarshal(bodyJSON, &e.RequestBody)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
