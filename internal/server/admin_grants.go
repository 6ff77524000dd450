package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"vibedb/internal/domain"
	"vibedb/internal/grants"
)

type verbsRequest struct {
	Select     bool `json:"select"`
	Insert     bool `json:"insert"`
	Update     bool `json:"update"`
	Delete     bool `json:"delete"`
	Truncate   bool `json:"truncate"`
	References bool `json:"references"`
	Trigger    bool `json:"trigger"`
}

func (v verbsRequest) toDomain() domain.TableVerbs {
	return domain.TableVerbs{
		Select:     v.Select,
		Insert:     v.Insert,
		Update:     v.Update,
		Delete:     v.Delete,
		Truncate:   v.Truncate,
		References: v.References,
		Trigger:    v.Trigger,
	}
}

func (s *Server) handleListSchemaPermissions(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = string(identity(r).UserID)
	}
	database := r.URL.Query().Get("database")

	var (
		perms []*domain.SchemaPermission
		err   error
	)
	if database != "" {
		perms, err = s.store.SchemaPermissions().ListByUserAndDatabase(r.Context(), domain.UserID(userID), database)
	} else {
		perms, err = s.store.SchemaPermissions().ListByUser(r.Context(), domain.UserID(userID))
	}
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type permResponse struct {
		UserID       domain.UserID                `json:"user_id"`
		DatabaseName string                       `json:"database_name"`
		SchemaName   string                       `json:"schema_name"`
		Permission   domain.SchemaPermissionLevel `json:"permission"`
	}
	out := make([]permResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permResponse{
			UserID:       p.UserID,
			DatabaseName: p.DatabaseName,
			SchemaName:   p.SchemaName,
			Permission:   p.Permission,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

type grantSchemaRequest struct {
	UserID          string       `json:"user_id"`
	Database        string       `json:"database"`
	Schema          string       `json:"schema"`
	ServerID        string       `json:"server_id"`
	Permission      string       `json:"permission"`
	Verbs           *verbsRequest `json:"verbs"`
	CanCreateTable  bool         `json:"can_create_table"`
	ApplyToExisting *bool        `json:"apply_to_existing"`
	ApplyToFuture   *bool        `json:"apply_to_future"`
}

// handleGrantSchema materializes a schema-level grant on the target and
// mirrors it into the catalog. Callers may send explicit verbs or a
// read_only/read_write level shorthand.
func (s *Server) handleGrantSchema(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req grantSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" || req.Schema == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database, and schema are required")
		return
	}

	grant := grants.SchemaGrant{
		CanCreateTable:  req.CanCreateTable,
		ApplyToExisting: true,
		ApplyToFuture:   true,
	}
	if req.ApplyToExisting != nil {
		grant.ApplyToExisting = *req.ApplyToExisting
	}
	if req.ApplyToFuture != nil {
		grant.ApplyToFuture = *req.ApplyToFuture
	}
	switch {
	case req.Verbs != nil:
		grant.Verbs = req.Verbs.toDomain()
	case strings.EqualFold(req.Permission, string(domain.PermissionReadWrite)):
		grant.Verbs = domain.TableVerbs{Select: true, Insert: true, Update: true, Delete: true}
	default:
		grant.Verbs = domain.TableVerbs{Select: true}
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, ""))
		return
	}

	if err := s.grants.GrantSchema(r.Context(), domain.UserID(req.UserID), req.Database, adminConnStr, req.Schema, grant); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, ""))
		return
	}

	s.record(r, rc, req.Database, req.Schema, "", "grant_schema", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "verbs": grant.Verbs.List(), "can_create_table": grant.CanCreateTable,
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"user_id":  req.UserID,
		"database": req.Database,
		"schema":   req.Schema,
		"verbs":    grant.Verbs.List(),
	}, rc.metadata(req.Database, req.Schema, ""))
}

func (s *Server) handleRevokeSchema(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req struct {
		UserID   string `json:"user_id"`
		Database string `json:"database"`
		Schema   string `json:"schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" || req.Schema == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database, and schema are required")
		return
	}

	if err := s.grants.RevokeSchema(r.Context(), domain.UserID(req.UserID), req.Database, req.Schema); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, ""))
		return
	}

	s.record(r, rc, req.Database, req.Schema, "", "revoke_schema", http.StatusOK, "", map[string]any{
		"user_id": req.UserID,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{"revoked": true}, rc.metadata(req.Database, req.Schema, ""))
}

func (s *Server) handleListTablePermissions(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = string(identity(r).UserID)
	}
	database := r.URL.Query().Get("database")

	var (
		perms []*domain.TablePermission
		err   error
	)
	if database != "" {
		perms, err = s.store.TablePermissions().ListByUserAndDatabase(r.Context(), domain.UserID(userID), database)
	} else {
		perms, err = s.store.TablePermissions().ListByUser(r.Context(), domain.UserID(userID))
	}
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type permResponse struct {
		UserID            domain.UserID       `json:"user_id"`
		DatabaseName      string              `json:"database_name"`
		SchemaName        string              `json:"schema_name"`
		TableName         string              `json:"table_name"`
		Verbs             []string            `json:"verbs"`
		ColumnPermissions map[string][]string `json:"column_permissions,omitempty"`
	}
	out := make([]permResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permResponse{
			UserID:            p.VibeUserID,
			DatabaseName:      p.DatabaseName,
			SchemaName:        p.SchemaName,
			TableName:         p.TableName,
			Verbs:             p.Verbs.List(),
			ColumnPermissions: p.ColumnPermissions,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

type grantTableRequest struct {
	UserID            string              `json:"user_id"`
	Database          string              `json:"database"`
	Schema            string              `json:"schema"`
	Table             string              `json:"table"`
	ServerID          string              `json:"server_id"`
	Verbs             verbsRequest        `json:"verbs"`
	ColumnPermissions map[string][]string `json:"column_permissions"`
}

func (s *Server) handleGrantTable(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req grantTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" || req.Schema == "" || req.Table == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database, schema, and table are required")
		return
	}
	verbs := req.Verbs.toDomain()
	if verbs.Empty() && len(req.ColumnPermissions) == 0 {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"at least one verb or column permission is required")
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, req.Table))
		return
	}

	if err := s.grants.GrantTable(r.Context(), domain.UserID(req.UserID), req.Database, adminConnStr,
		req.Schema, req.Table, verbs, req.ColumnPermissions); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, req.Table))
		return
	}

	s.record(r, rc, req.Database, req.Schema, req.Table, "grant_table", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "verbs": verbs.List(),
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"user_id":  req.UserID,
		"database": req.Database,
		"schema":   req.Schema,
		"table":    req.Table,
		"verbs":    verbs.List(),
	}, rc.metadata(req.Database, req.Schema, req.Table))
}

func (s *Server) handleRevokeTable(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req struct {
		UserID   string `json:"user_id"`
		Database string `json:"database"`
		Schema   string `json:"schema"`
		Table    string `json:"table"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" || req.Schema == "" || req.Table == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database, schema, and table are required")
		return
	}

	if err := s.grants.RevokeTable(r.Context(), domain.UserID(req.UserID), req.Database, req.Schema, req.Table); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, req.Table))
		return
	}

	s.record(r, rc, req.Database, req.Schema, req.Table, "revoke_table", http.StatusOK, "", map[string]any{
		"user_id": req.UserID,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{"revoked": true}, rc.metadata(req.Database, req.Schema, req.Table))
}
