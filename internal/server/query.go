package server

import (
	"encoding/json"
	"net/http"

	"vibedb/internal/dispatch"
)

// queryPreview keeps error payloads readable when the statement is large.
func queryPreview(query string) string {
	if len(query) > 100 {
		return query[:100] + "..."
	}
	return query
}

type rawQueryRequest struct {
	Database       string           `json:"database"`
	Query          string           `json:"query"`
	Params         []dispatch.Param `json:"params"`
	ReadOnly       bool             `json:"read_only"`
	TimeoutSeconds int              `json:"timeout_seconds"`
}

// handleRawQuery runs caller-written SQL on the user's own pool. The
// schema is inferred from the first qualified table reference and
// authorized like any structured request; role and database lifecycle
// statements are blocked before execution.
func (s *Server) handleRawQuery(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req rawQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Database == "" || req.Query == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database and query are required")
		return
	}

	schema := dispatch.ExtractSchema(req.Query)
	op := dispatch.Classify(req.Query)
	meta := rc.metadata(req.Database, schema, "")

	auditBody := map[string]any{
		"query_length": len(req.Query),
		"params_count": len(req.Params),
		"read_only":    req.ReadOnly,
	}

	id := identity(r)
	assignment, err := s.authorizer.Check(r.Context(), id.UserID, req.Database, schema, op)
	if err != nil {
		s.record(r, rc, req.Database, schema, "", op, errStatusOf(err), err.Error(), auditBody)
		s.fail(w, rc, err, meta)
		return
	}

	args, err := dispatch.CoerceParams(req.Params)
	if err != nil {
		s.fail(w, rc, err, meta)
		return
	}

	connStr, err := s.vault.Decrypt(assignment.ConnectionStringEncrypted)
	if err != nil {
		s.fail(w, rc, err, meta)
		return
	}
	pool, err := s.pools.Get(r.Context(), id.UserID, req.Database, connStr)
	if err != nil {
		s.fail(w, rc, err, meta)
		return
	}

	result, err := s.dispatcher.ExecuteRaw(r.Context(), pool, req.Query, args, req.TimeoutSeconds, req.ReadOnly)
	if err != nil {
		s.record(r, rc, req.Database, schema, "", op, errStatusOf(err), err.Error(), auditBody)
		s.failWithDetails(w, rc, err, meta, map[string]any{"query_preview": queryPreview(req.Query)})
		return
	}

	s.record(r, rc, req.Database, schema, "", result.Operation, http.StatusOK, "", auditBody)
	s.ok(w, rc, http.StatusOK, result, rc.metadata(req.Database, schema, ""))
}
