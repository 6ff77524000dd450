// Package authz decides whether an authenticated user may run an operation
// against a database and schema. Decisions come from the catalog mirror;
// PostgreSQL remains the final enforcer through the user's own role.
package authz

import (
	"context"
	"log/slog"
	"strings"

	"vibedb/internal/domain"
	"vibedb/internal/storage/postgres"
)

// readOperations classify as read-only. Everything else requires
// read_write.
var readOperations = map[string]struct{}{
	"select":   {},
	"read":     {},
	"get":      {},
	"list":     {},
	"describe": {},
	"show":     {},
	"explain":  {},
}

// IsReadOperation reports whether op is read-class, case-insensitively.
func IsReadOperation(op string) bool {
	_, ok := readOperations[strings.ToLower(strings.TrimSpace(op))]
	return ok
}

// Authorizer checks assignments and schema permissions.
type Authorizer struct {
	store *postgres.Store
	log   *slog.Logger
}

// New creates an authorizer.
func New(store *postgres.Store, log *slog.Logger) *Authorizer {
	return &Authorizer{store: store, log: log}
}

// CheckDatabase verifies the user holds an active assignment to database
// and returns the assignment. master_db is rejected unconditionally.
func (a *Authorizer) CheckDatabase(ctx context.Context, userID domain.UserID, database string) (*domain.DatabaseAssignment, error) {
	if domain.IsMasterDatabase(database) {
		return nil, domain.ErrMasterDBForbidden
	}

	assignment, err := a.store.Assignments().GetActive(ctx, userID, database)
	if err != nil {
		if err == domain.ErrAssignmentNotFound {
			return nil, domain.ErrAuthzDenied
		}
		return nil, err
	}
	return assignment, nil
}

// CheckSchema verifies the user may run op against schema. Every assigned
// user can read information_schema; other schemas require an explicit
// permission, and write-class operations require read_write.
func (a *Authorizer) CheckSchema(ctx context.Context, userID domain.UserID, database, schema, op string) error {
	read := IsReadOperation(op)

	if strings.EqualFold(schema, "information_schema") {
		if read {
			return nil
		}
		return domain.ErrAuthzDenied
	}

	perm, err := a.store.SchemaPermissions().Get(ctx, userID, database, schema)
	if err != nil {
		if err == domain.ErrPermissionNotFound {
			return domain.ErrAuthzDenied
		}
		return err
	}

	if read {
		return nil
	}
	if perm.Permission == domain.PermissionReadWrite {
		return nil
	}
	return domain.ErrAuthzDenied
}

// Check verifies database assignment and schema permission in one call,
// returning the assignment for pool construction.
func (a *Authorizer) Check(ctx context.Context, userID domain.UserID, database, schema, op string) (*domain.DatabaseAssignment, error) {
	assignment, err := a.CheckDatabase(ctx, userID, database)
	if err != nil {
		return nil, err
	}
	if err := a.CheckSchema(ctx, userID, database, schema, op); err != nil {
		return nil, err
	}
	return assignment, nil
}

// UserPermissions summarizes a user's access for the permissions endpoint.
type UserPermissions struct {
	Databases         []string                   `json:"databases"`
	SchemaPermissions []*domain.SchemaPermission `json:"schema_permissions"`
	TablePermissions  []*domain.TablePermission  `json:"table_permissions"`
}

// Summarize collects the user's assignments and grants.
func (a *Authorizer) Summarize(ctx context.Context, userID domain.UserID) (*UserPermissions, error) {
	assignments, err := a.store.Assignments().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	schemaPerms, err := a.store.SchemaPermissions().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tablePerms, err := a.store.TablePermissions().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	perms := &UserPermissions{
		SchemaPermissions: schemaPerms,
		TablePermissions:  tablePerms,
	}
	for _, assignment := range assignments {
		if assignment.IsActive {
			perms.Databases = append(perms.Databases, assignment.DatabaseName)
		}
	}
	return perms, nil
}
