package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"vibedb/internal/domain"
	"vibedb/internal/ident"
)

// reservedParams are query parameters with structural meaning on the row
// endpoints; everything else is treated as an equality filter.
var reservedParams = map[string]struct{}{
	"database":  {},
	"limit":     {},
	"offset":    {},
	"order_by":  {},
	"order_dir": {},
}

// handleSelectRows reads a window of rows. Query parameters other than the
// reserved set become column = value filters, combined with AND.
func (s *Server) handleSelectRows(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	schema := r.PathValue("schema")
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	limit := s.cfg.Limits.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if max := s.cfg.Limits.MaxRowsPerQuery; max > 0 && limit > max {
		limit = max
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	// Deterministic filter order keeps generated SQL stable for tests and
	// audit trails.
	var filterCols []string
	for key := range r.URL.Query() {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		filterCols = append(filterCols, key)
	}
	sort.Strings(filterCols)

	var where []string
	var args []any
	for _, col := range filterCols {
		if err := ident.Validate(col); err != nil {
			s.fail(w, rc, err, rc.metadata(database, schema, table))
			return
		}
		args = append(args, r.URL.Query().Get(col))
		where = append(where, quoteIdent(col)+" = $"+strconv.Itoa(len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	orderClause := ""
	if orderBy := r.URL.Query().Get("order_by"); orderBy != "" {
		if err := ident.Validate(orderBy); err != nil {
			s.fail(w, rc, err, rc.metadata(database, schema, table))
			return
		}
		dir := "ASC"
		if strings.EqualFold(r.URL.Query().Get("order_dir"), "desc") {
			dir = "DESC"
		}
		orderClause = " ORDER BY " + quoteIdent(orderBy) + " " + dir
	}

	pool, err := s.userPool(r, database, schema, "select")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	qualified := quoteIdent(schema) + "." + quoteIdent(table)

	countResult, err := s.dispatcher.Query(r.Context(), pool,
		"SELECT COUNT(*) AS total FROM "+qualified+whereClause, args, 0)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	total := 0
	if countResult.RowCount > 0 {
		if n, ok := countResult.Rows[0]["total"].(int64); ok {
			total = int(n)
		}
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	query := "SELECT * FROM " + qualified + whereClause + orderClause +
		" LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)

	result, err := s.dispatcher.Query(r.Context(), pool, query, pageArgs, 0)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	s.record(r, rc, database, schema, table, "select", http.StatusOK, "", nil)
	s.okPaged(w, rc, result.Rows, rc.metadata(database, schema, table), &Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasNext: offset+result.RowCount < total,
		HasPrev: offset > 0,
	})
}

type insertRowRequest struct {
	Data map[string]any `json:"data"`
}

func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	schema := r.PathValue("schema")
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	var req insertRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "data object with at least one column is required")
		return
	}

	cols := make([]string, 0, len(req.Data))
	for col := range req.Data {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		if err := ident.Validate(col); err != nil {
			s.fail(w, rc, err, rc.metadata(database, schema, table))
			return
		}
		quoted = append(quoted, quoteIdent(col))
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, req.Data[col])
	}

	pool, err := s.userPool(r, database, schema, "insert")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	query := "INSERT INTO " + quoteIdent(schema) + "." + quoteIdent(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ") RETURNING *"

	result, err := s.dispatcher.Query(r.Context(), pool, query, args, 0)
	if err != nil {
		s.record(r, rc, database, schema, table, "insert", errStatusOf(err), err.Error(), nil)
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	var row map[string]any
	if result.RowCount > 0 {
		row = result.Rows[0]
	}
	s.record(r, rc, database, schema, table, "insert", http.StatusCreated, "", map[string]any{
		"columns": len(cols),
	})
	s.ok(w, rc, http.StatusCreated, row, rc.metadata(database, schema, table))
}

type mutateRowsRequest struct {
	Data  map[string]any `json:"data"`
	Where map[string]any `json:"where"`
}

// buildWhere renders equality predicates from a where object, continuing
// the placeholder numbering at argOffset.
func buildWhere(where map[string]any, argOffset int) (string, []any, error) {
	cols := make([]string, 0, len(where))
	for col := range where {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clauses []string
	var args []any
	for _, col := range cols {
		if err := ident.Validate(col); err != nil {
			return "", nil, err
		}
		args = append(args, where[col])
		clauses = append(clauses, quoteIdent(col)+" = $"+strconv.Itoa(argOffset+len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// handleUpdateRows updates rows matched by the where object. An empty
// where is rejected; full-table updates go through the raw endpoint where
// the query is explicit.
func (s *Server) handleUpdateRows(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	schema := r.PathValue("schema")
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	var req mutateRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "data object with at least one column is required")
		return
	}
	if len(req.Where) == 0 {
		s.fail(w, rc, domain.ErrMissingWhereClause, rc.metadata(database, schema, table))
		return
	}

	setCols := make([]string, 0, len(req.Data))
	for col := range req.Data {
		setCols = append(setCols, col)
	}
	sort.Strings(setCols)

	var sets []string
	var args []any
	for _, col := range setCols {
		if err := ident.Validate(col); err != nil {
			s.fail(w, rc, err, rc.metadata(database, schema, table))
			return
		}
		args = append(args, req.Data[col])
		sets = append(sets, quoteIdent(col)+" = $"+strconv.Itoa(len(args)))
	}

	whereClause, whereArgs, err := buildWhere(req.Where, len(args))
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	args = append(args, whereArgs...)

	pool, err := s.userPool(r, database, schema, "update")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	query := "UPDATE " + quoteIdent(schema) + "." + quoteIdent(table) +
		" SET " + strings.Join(sets, ", ") + " WHERE " + whereClause

	result, err := s.dispatcher.Exec(r.Context(), pool, query, args, 0)
	if err != nil {
		s.record(r, rc, database, schema, table, "update", errStatusOf(err), err.Error(), nil)
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	s.record(r, rc, database, schema, table, "update", http.StatusOK, "", map[string]any{
		"affected_rows": result.AffectedRows,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{
		"affected_rows": result.AffectedRows,
	}, rc.metadata(database, schema, table))
}

// handleDeleteRows deletes rows matched by the where object; an empty
// where is rejected.
func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	schema := r.PathValue("schema")
	table := r.PathValue("table")

	database, ok := requireDatabase(r)
	if !ok {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database query parameter is required")
		return
	}
	if err := ident.Validate(schema); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}
	if err := ident.Validate(table); err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	var req mutateRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if len(req.Where) == 0 {
		s.fail(w, rc, domain.ErrMissingWhereClause, rc.metadata(database, schema, table))
		return
	}

	whereClause, args, err := buildWhere(req.Where, 0)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	pool, err := s.userPool(r, database, schema, "delete")
	if err != nil {
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	query := "DELETE FROM " + quoteIdent(schema) + "." + quoteIdent(table) + " WHERE " + whereClause

	result, err := s.dispatcher.Exec(r.Context(), pool, query, args, 0)
	if err != nil {
		s.record(r, rc, database, schema, table, "delete", errStatusOf(err), err.Error(), nil)
		s.fail(w, rc, err, rc.metadata(database, schema, table))
		return
	}

	s.record(r, rc, database, schema, table, "delete", http.StatusOK, "", map[string]any{
		"affected_rows": result.AffectedRows,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{
		"affected_rows": result.AffectedRows,
	}, rc.metadata(database, schema, table))
}
