// Package grants materializes logical permissions as native GRANTs and
// row-level-security policies on target databases. Every operation runs
// against the target first and mirrors into the catalog second.
package grants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vibedb/internal/domain"
	"vibedb/internal/ident"
	"vibedb/internal/pool"
	"vibedb/internal/storage/postgres"
)

// Materializer applies grants and policies.
type Materializer struct {
	store *postgres.Store
	log   *slog.Logger
}

// New creates a materializer.
func New(store *postgres.Store, log *slog.Logger) *Materializer {
	return &Materializer{store: store, log: log}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgUsername resolves the native role for (user, database) or fails with
// ErrNoPGUser. Grants can only target a materialized role.
func (m *Materializer) pgUsername(ctx context.Context, userID domain.UserID, database string) (string, error) {
	record, err := m.store.PGUsers().GetActive(ctx, userID, database)
	if err != nil {
		return "", err
	}
	return record.PGUsername, nil
}

// SchemaGrant describes a schema-level grant request.
type SchemaGrant struct {
	Verbs           domain.TableVerbs
	CanCreateTable  bool
	ApplyToExisting bool
	ApplyToFuture   bool
}

// GrantSchema grants USAGE plus the requested verbs across a schema and
// mirrors the logical level into schema_permissions.
func (m *Materializer) GrantSchema(ctx context.Context, userID domain.UserID, database, adminConnStr, schema string, grant SchemaGrant) error {
	if domain.IsMasterDatabase(database) {
		return domain.ErrMasterDBForbidden
	}
	if err := ident.ValidateStrict(schema); err != nil {
		return err
	}

	username, err := m.pgUsername(ctx, userID, database)
	if err != nil {
		return err
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx,
		"GRANT USAGE ON SCHEMA "+quoteIdent(schema)+" TO "+quoteIdent(username)); err != nil {
		return fmt.Errorf("failed to grant usage on %s: %w", schema, err)
	}

	verbs := grant.Verbs.List()
	if len(verbs) > 0 {
		verbList := strings.Join(verbs, ", ")
		if grant.ApplyToExisting {
			if _, err := conn.Exec(ctx,
				"GRANT "+verbList+" ON ALL TABLES IN SCHEMA "+quoteIdent(schema)+" TO "+quoteIdent(username)); err != nil {
				return fmt.Errorf("failed to grant on existing tables: %w", err)
			}
		}
		if grant.ApplyToFuture {
			if _, err := conn.Exec(ctx,
				"ALTER DEFAULT PRIVILEGES IN SCHEMA "+quoteIdent(schema)+
					" GRANT "+verbList+" ON TABLES TO "+quoteIdent(username)); err != nil {
				return fmt.Errorf("failed to grant default privileges: %w", err)
			}
		}
	}

	// SERIAL columns need sequence access for inserts and updates.
	if grant.Verbs.Insert || grant.Verbs.Update {
		if grant.ApplyToExisting {
			if _, err := conn.Exec(ctx,
				"GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA "+quoteIdent(schema)+" TO "+quoteIdent(username)); err != nil {
				return fmt.Errorf("failed to grant on sequences: %w", err)
			}
		}
		if grant.ApplyToFuture {
			if _, err := conn.Exec(ctx,
				"ALTER DEFAULT PRIVILEGES IN SCHEMA "+quoteIdent(schema)+
					" GRANT USAGE, SELECT ON SEQUENCES TO "+quoteIdent(username)); err != nil {
				return fmt.Errorf("failed to grant default sequence privileges: %w", err)
			}
		}
	}

	if grant.CanCreateTable {
		if _, err := conn.Exec(ctx,
			"GRANT CREATE ON SCHEMA "+quoteIdent(schema)+" TO "+quoteIdent(username)); err != nil {
			return fmt.Errorf("failed to grant create on %s: %w", schema, err)
		}
	}

	level := domain.PermissionReadOnly
	if grant.Verbs.Insert || grant.Verbs.Update || grant.Verbs.Delete ||
		grant.Verbs.Truncate || grant.CanCreateTable {
		level = domain.PermissionReadWrite
	}
	if err := m.store.SchemaPermissions().Upsert(ctx, &domain.SchemaPermission{
		UserID:       userID,
		DatabaseName: database,
		SchemaName:   schema,
		Permission:   level,
	}); err != nil {
		return err
	}

	m.log.Info("granted schema permissions",
		"user_id", userID, "database", database, "schema", schema,
		"pg_username", username, "level", level)
	return nil
}

// GrantTable grants the requested verbs on one table, plus optional
// column-scoped verbs, and mirrors the grant into table_permissions.
func (m *Materializer) GrantTable(ctx context.Context, userID domain.UserID, database, adminConnStr, schema, table string, verbs domain.TableVerbs, columnPerms map[string][]string) error {
	if domain.IsMasterDatabase(database) {
		return domain.ErrMasterDBForbidden
	}
	if err := ident.ValidateStrict(schema); err != nil {
		return err
	}
	if err := ident.ValidateStrict(table); err != nil {
		return err
	}
	for column := range columnPerms {
		if err := ident.ValidateStrict(column); err != nil {
			return err
		}
	}

	username, err := m.pgUsername(ctx, userID, database)
	if err != nil {
		return err
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx,
		"GRANT USAGE ON SCHEMA "+quoteIdent(schema)+" TO "+quoteIdent(username)); err != nil {
		return fmt.Errorf("failed to grant usage on %s: %w", schema, err)
	}

	qualified := quoteIdent(schema) + "." + quoteIdent(table)
	if list := verbs.List(); len(list) > 0 {
		if _, err := conn.Exec(ctx,
			"GRANT "+strings.Join(list, ", ")+" ON "+qualified+" TO "+quoteIdent(username)); err != nil {
			return fmt.Errorf("failed to grant on %s.%s: %w", schema, table, err)
		}
	}

	for column, colVerbs := range columnPerms {
		if len(colVerbs) == 0 {
			continue
		}
		if _, err := conn.Exec(ctx,
			"GRANT "+strings.Join(colVerbs, ", ")+" ("+quoteIdent(column)+") ON "+qualified+" TO "+quoteIdent(username)); err != nil {
			return fmt.Errorf("failed to grant column %s: %w", column, err)
		}
	}

	if err := m.store.TablePermissions().Upsert(ctx, &domain.TablePermission{
		VibeUserID:        userID,
		DatabaseName:      database,
		SchemaName:        schema,
		TableName:         table,
		Verbs:             verbs,
		ColumnPermissions: columnPerms,
	}); err != nil {
		return err
	}

	m.log.Info("granted table permissions",
		"user_id", userID, "database", database,
		"table", schema+"."+table, "pg_username", username)
	return nil
}

// CreateRLSPolicy enables row-level security on the table and creates a
// policy scoped to the user's role, then mirrors it into rls_policies.
func (m *Materializer) CreateRLSPolicy(ctx context.Context, adminConnStr string, policy *domain.RLSPolicy) error {
	if domain.IsMasterDatabase(policy.DatabaseName) {
		return domain.ErrMasterDBForbidden
	}
	if err := ident.ValidateStrict(policy.SchemaName); err != nil {
		return err
	}
	if err := ident.ValidateStrict(policy.TableName); err != nil {
		return err
	}
	if err := ident.ValidateStrict(policy.PolicyName); err != nil {
		return err
	}
	if !policy.PolicyType.IsValid() {
		return fmt.Errorf("%w: policy type %q", domain.ErrParameterInvalid, policy.PolicyType)
	}
	if policy.CommandType == "" {
		policy.CommandType = domain.PolicyPermissive
	}
	if !policy.CommandType.IsValid() {
		return fmt.Errorf("%w: command type %q", domain.ErrParameterInvalid, policy.CommandType)
	}

	username, err := m.pgUsername(ctx, policy.VibeUserID, policy.DatabaseName)
	if err != nil {
		return err
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	qualified := quoteIdent(policy.SchemaName) + "." + quoteIdent(policy.TableName)
	if _, err := conn.Exec(ctx,
		"ALTER TABLE "+qualified+" ENABLE ROW LEVEL SECURITY"); err != nil {
		return fmt.Errorf("failed to enable row level security: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("CREATE POLICY " + quoteIdent(policy.PolicyName) + " ON " + qualified)
	sb.WriteString(" AS " + string(policy.CommandType))
	sb.WriteString(" FOR " + string(policy.PolicyType))
	sb.WriteString(" TO " + quoteIdent(username))
	if policy.UsingExpression != "" {
		sb.WriteString(" USING (" + policy.UsingExpression + ")")
	}
	if policy.WithCheckExpression != "" && policy.PolicyType.AllowsWithCheck() {
		sb.WriteString(" WITH CHECK (" + policy.WithCheckExpression + ")")
	}

	if _, err := conn.Exec(ctx, sb.String()); err != nil {
		return fmt.Errorf("failed to create policy %s: %w", policy.PolicyName, err)
	}

	policy.IsActive = true
	if err := m.store.RLSPolicies().Create(ctx, policy); err != nil {
		return err
	}

	m.log.Info("created rls policy",
		"user_id", policy.VibeUserID, "database", policy.DatabaseName,
		"table", policy.SchemaName+"."+policy.TableName, "policy", policy.PolicyName)
	return nil
}

// DropRLSPolicy drops the native policy and flips the catalog mirror to
// inactive. The record is retained so operators can see what was dropped.
func (m *Materializer) DropRLSPolicy(ctx context.Context, adminConnStr string, policyID domain.RLSPolicyID) error {
	policy, err := m.store.RLSPolicies().Get(ctx, policyID)
	if err != nil {
		return err
	}
	if err := ident.ValidateStrict(policy.SchemaName); err != nil {
		return err
	}
	if err := ident.ValidateStrict(policy.TableName); err != nil {
		return err
	}
	if err := ident.ValidateStrict(policy.PolicyName); err != nil {
		return err
	}

	conn, err := pool.AdminConnect(ctx, adminConnStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	qualified := quoteIdent(policy.SchemaName) + "." + quoteIdent(policy.TableName)
	if _, err := conn.Exec(ctx,
		"DROP POLICY IF EXISTS "+quoteIdent(policy.PolicyName)+" ON "+qualified); err != nil {
		return fmt.Errorf("failed to drop policy %s: %w", policy.PolicyName, err)
	}

	if err := m.store.RLSPolicies().SetActive(ctx, policyID, false); err != nil {
		return err
	}

	m.log.Info("dropped rls policy",
		"user_id", policy.VibeUserID, "database", policy.DatabaseName,
		"table", policy.SchemaName+"."+policy.TableName, "policy", policy.PolicyName)
	return nil
}

// RevokeSchema removes the catalog mirror of a schema grant. Native
// privileges on the target are revoked during role drop.
func (m *Materializer) RevokeSchema(ctx context.Context, userID domain.UserID, database, schema string) error {
	return m.store.SchemaPermissions().Delete(ctx, userID, database, schema)
}

// RevokeTable removes the catalog mirror of a table grant.
func (m *Materializer) RevokeTable(ctx context.Context, userID domain.UserID, database, schema, table string) error {
	return m.store.TablePermissions().Delete(ctx, userID, database, schema, table)
}
