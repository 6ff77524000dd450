package server

import (
	"encoding/json"
	"net/http"
	"time"

	"vibedb/internal/domain"
)

func (s *Server) handleListPGUsers(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	database := r.URL.Query().Get("database")

	var (
		records []*domain.PGDatabaseUser
		err     error
	)
	switch {
	case database != "":
		records, err = s.store.PGUsers().ListByDatabase(r.Context(), database)
	case userID != "":
		records, err = s.store.PGUsers().ListByUser(r.Context(), domain.UserID(userID))
	default:
		records, err = s.store.PGUsers().ListByUser(r.Context(), identity(r).UserID)
	}
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type pgUserResponse struct {
		ID           domain.PGUserID `json:"id"`
		UserID       domain.UserID   `json:"user_id"`
		DatabaseName string          `json:"database_name"`
		PGUsername   string          `json:"pg_username"`
		IsActive     bool            `json:"is_active"`
		CreatedBy    domain.UserID   `json:"created_by,omitempty"`
		CreatedAt    time.Time       `json:"created_at"`
	}
	out := make([]pgUserResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, pgUserResponse{
			ID:           rec.ID,
			UserID:       rec.VibeUserID,
			DatabaseName: rec.DatabaseName,
			PGUsername:   rec.PGUsername,
			IsActive:     rec.IsActive,
			CreatedBy:    rec.CreatedBy,
			CreatedAt:    rec.CreatedAt,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

type pgUserRequest struct {
	UserID   string `json:"user_id"`
	Database string `json:"database"`
	ServerID string `json:"server_id"`
	Notes    string `json:"notes"`
}

// handleCreatePGUser provisions a native login role on the target cluster.
// The generated password appears in this response and nowhere else.
func (s *Server) handleCreatePGUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req pgUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "user_id and database are required")
		return
	}
	if domain.IsMasterDatabase(req.Database) {
		s.fail(w, rc, domain.ErrMasterDBForbidden, nil)
		return
	}

	if _, err := s.store.Users().Get(r.Context(), domain.UserID(req.UserID)); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	creds, err := s.roles.CreatePGUser(r.Context(), domain.UserID(req.UserID), req.Database,
		adminConnStr, identity(r).UserID, req.Notes)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	s.record(r, rc, req.Database, "", "", "create_pg_user", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "pg_username": creds.PGUsername,
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"pg_username":       creds.PGUsername,
		"pg_password":       creds.PGPassword,
		"connection_string": creds.ConnectionString,
		"message":           "Store these credentials now; they cannot be retrieved again.",
	}, rc.metadata(req.Database, "", ""))
}

func (s *Server) handleDropPGUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req pgUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "user_id and database are required")
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	if err := s.roles.DropPGUser(r.Context(), domain.UserID(req.UserID), req.Database, adminConnStr); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	s.record(r, rc, req.Database, "", "", "drop_pg_user", http.StatusOK, "", map[string]any{
		"user_id": req.UserID,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{"dropped": true}, rc.metadata(req.Database, "", ""))
}

// handleResetPGPassword rotates the role password and re-encrypts the
// stored connection string. The new password is returned once.
func (s *Server) handleResetPGPassword(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req pgUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "user_id and database are required")
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	creds, err := s.roles.ResetPGPassword(r.Context(), domain.UserID(req.UserID), req.Database, adminConnStr)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, "", ""))
		return
	}

	s.record(r, rc, req.Database, "", "", "reset_pg_password", http.StatusOK, "", map[string]any{
		"user_id": req.UserID, "pg_username": creds.PGUsername,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{
		"pg_username":       creds.PGUsername,
		"pg_password":       creds.PGPassword,
		"connection_string": creds.ConnectionString,
		"message":           "Store these credentials now; they cannot be retrieved again.",
	}, rc.metadata(req.Database, "", ""))
}
