package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"vibedb/internal/domain"
	"vibedb/internal/ident"
)

// userPool authorizes (database, schema, op) for the authenticated user and
// returns their per-user pool, built from the assignment's scoped
// connection string.
func (s *Server) userPool(r *http.Request, database, schema, op string) (*pgxpool.Pool, error) {
	id := identity(r)

	assignment, err := s.authorizer.Check(r.Context(), id.UserID, database, schema, op)
	if err != nil {
		return nil, err
	}

	connStr, err := s.vault.Decrypt(assignment.ConnectionStringEncrypted)
	if err != nil {
		return nil, err
	}
	return s.pools.Get(r.Context(), id.UserID, database, connStr)
}

// requireDatabase pulls the target database from the query string.
func requireDatabase(r *http.Request) (string, bool) {
	db := r.URL.Query().Get("database")
	return db, db != ""
}

func schemaOrPublic(r *http.Request) string {
	if schema := r.URL.Query().Get("schema"); schema != "" {
		return schema
	}
	return "public"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	schema := schemaOrPublic(r)
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, ""))
		return
	}

	pool, err := s.userPool(r, database, schema, "select")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, ""))
		return
	}

	result, err := s.dispatcher.Query(r.Context(), pool,
		`SELECT table_name, table_type FROM information_schema.tables
		 WHERE table_schema = $1 ORDER BY table_name`,
		[]any{schema}, 0)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, ""))
		return
	}

	s.record(r, rc, database, schema, "", "list_tables", http.StatusOK, "", nil)
	s.ok(w, rc, http.StatusOK, map[string]any{
		"tables": result.Rows,
		"count":  result.RowCount,
	}, rc.metadata(database, schema, ""))
}

// columnTypePattern accepts the common PostgreSQL type spellings, with
// optional length or precision arguments and an array suffix.
var columnTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\(\s*\d+(\s*,\s*\d+)?\s*\))?(\[\])?$`)

type createTableColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Constraints string `json:"constraints"`
}

type createTableRequest struct {
	Database    string              `json:"database"`
	Schema      string              `json:"schema"`
	TableName   string              `json:"table_name"`
	Columns     []createTableColumn `json:"columns"`
	IfNotExists bool                `json:"if_not_exists"`
}

// constraintPattern limits per-column constraint clauses to the safe
// subset; anything with parentheses or quoting goes through raw query.
var constraintPattern = regexp.MustCompile(`(?i)^(NOT NULL|NULL|UNIQUE|PRIMARY KEY|DEFAULT [A-Za-z0-9_' .\-]+)( (NOT NULL|NULL|UNIQUE|PRIMARY KEY))*$`)

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Database == "" || req.TableName == "" || len(req.Columns) == 0 {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"database, table_name, and columns are required")
		return
	}
	schema := req.Schema
	if schema == "" {
		schema = "public"
	}

	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, schema, req.TableName))
		return
	}
	if err := ident.Validate(req.TableName); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, schema, req.TableName))
		return
	}

	defs := make([]string, 0, len(req.Columns))
	for _, col := range req.Columns {
		if err := ident.Validate(col.Name); err != nil {
			s.fail(w, rc, err, rc.metadata(req.Database, schema, req.TableName))
			return
		}
		if !columnTypePattern.MatchString(strings.TrimSpace(col.Type)) {
			s.fail(w, rc, fmt.Errorf("%w: column type %q", domain.ErrParameterInvalid, col.Type),
				rc.metadata(req.Database, schema, req.TableName))
			return
		}
		def := quoteIdent(col.Name) + " " + strings.TrimSpace(col.Type)
		if c := strings.TrimSpace(col.Constraints); c != "" {
			if !constraintPattern.MatchString(c) {
				s.fail(w, rc, fmt.Errorf("%w: column constraint %q", domain.ErrParameterInvalid, c),
					rc.metadata(req.Database, schema, req.TableName))
				return
			}
			def += " " + c
		}
		defs = append(defs, def)
	}

	pool, err := s.userPool(r, req.Database, schema, "create")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, schema, req.TableName))
		return
	}

	stmt := "CREATE TABLE "
	if req.IfNotExists {
		stmt += "IF NOT EXISTS "
	}
	stmt += quoteIdent(schema) + "." + quoteIdent(req.TableName) + " (" + strings.Join(defs, ", ") + ")"

	result, err := s.dispatcher.Exec(r.Context(), pool, stmt, nil, 0)
	if err != nil {
		s.record(r, rc, req.Database, schema, req.TableName, "create_table",
			errStatusOf(err), err.Error(), nil)
		s.fail(w, rc, err, rc.metadata(req.Database, schema, req.TableName))
		return
	}

	s.record(r, rc, req.Database, schema, req.TableName, "create_table", http.StatusCreated, "", map[string]any{
		"columns": len(req.Columns),
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"table":   schema + "." + req.TableName,
		"message": result.Message,
	}, rc.metadata(req.Database, schema, req.TableName))
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	schema := schemaOrPublic(r)
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	pool, err := s.userPool(r, database, schema, "describe")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	result, err := s.dispatcher.Query(r.Context(), pool,
		`SELECT column_name, data_type, is_nullable, column_default,
		        character_maximum_length, numeric_precision
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		[]any{schema, table}, 0)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if result.RowCount == 0 {
		s.failMsg(w, rc, http.StatusNotFound, "not_found",
			fmt.Sprintf("table %s.%s not found", schema, table))
		return
	}

	s.record(r, rc, database, schema, table, "describe_table", http.StatusOK, "", nil)
	s.ok(w, rc, http.StatusOK, map[string]any{
		"table":   schema + "." + table,
		"columns": result.Rows,
	}, rc.metadata(database, schema, table))
}

func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	schema := schemaOrPublic(r)
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	pool, err := s.userPool(r, database, schema, "drop")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	stmt := "DROP TABLE IF EXISTS " + quoteIdent(schema) + "." + quoteIdent(table)
	if r.URL.Query().Get("cascade") == "true" {
		stmt += " CASCADE"
	}

	if _, err := s.dispatcher.Exec(r.Context(), pool, stmt, nil, 0); err != nil {
		s.record(r, rc, database, schema, table, "drop_table", errStatusOf(err), err.Error(), nil)
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	s.record(r, rc, database, schema, table, "drop_table", http.StatusOK, "", nil)
	s.ok(w, rc, http.StatusOK, map[string]any{
		"table":   schema + "." + table,
		"dropped": true,
	}, rc.metadata(database, schema, table))
}

// errStatusOf is the audit-side view of errorStatus.
func errStatusOf(err error) int {
	status, _ := errorStatus(err)
	return status
}
