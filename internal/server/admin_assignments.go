package server

import (
	"encoding/json"
	"net/http"

	"vibedb/internal/domain"
)

type assignmentRequest struct {
	UserID           string `json:"user_id"`
	DatabaseName     string `json:"database_name"`
	ConnectionString string `json:"connection_string"`
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = string(identity(r).UserID)
	}

	assignments, err := s.store.Assignments().ListByUser(r.Context(), domain.UserID(userID))
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type assignmentResponse struct {
		ID           domain.AssignmentID `json:"id"`
		UserID       domain.UserID       `json:"user_id"`
		DatabaseName string              `json:"database_name"`
		IsActive     bool                `json:"is_active"`
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, assignmentResponse{
			ID:           a.ID,
			UserID:       a.UserID,
			DatabaseName: a.DatabaseName,
			IsActive:     a.IsActive,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

// handleCreateAssignment stores a pre-scoped connection string for a user
// and database. master_db is rejected at this boundary before any write.
func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.DatabaseName == "" || req.ConnectionString == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database_name, and connection_string are required")
		return
	}
	if domain.IsMasterDatabase(req.DatabaseName) {
		s.fail(w, rc, domain.ErrMasterDBForbidden, nil)
		return
	}

	if _, err := s.store.Users().Get(r.Context(), domain.UserID(req.UserID)); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	encrypted, err := s.vault.Encrypt(req.ConnectionString)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	assignment := &domain.DatabaseAssignment{
		UserID:                    domain.UserID(req.UserID),
		DatabaseName:              req.DatabaseName,
		ConnectionStringEncrypted: encrypted,
		IsActive:                  true,
	}
	if err := s.store.Assignments().Create(r.Context(), assignment); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, req.DatabaseName, "", "", "create_assignment", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "database_name": req.DatabaseName,
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"id":            assignment.ID,
		"user_id":       assignment.UserID,
		"database_name": assignment.DatabaseName,
	}, rc.metadata(req.DatabaseName, "", ""))
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req struct {
		UserID       string `json:"user_id"`
		DatabaseName string `json:"database_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.DatabaseName == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id and database_name are required")
		return
	}

	userID := domain.UserID(req.UserID)
	if err := s.store.Assignments().Delete(r.Context(), userID, req.DatabaseName); err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	s.pools.Invalidate(userID, req.DatabaseName)

	s.record(r, rc, req.DatabaseName, "", "", "delete_assignment", http.StatusOK, "", map[string]any{
		"user_id": req.UserID, "database_name": req.DatabaseName,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{"deleted": true}, rc.metadata(req.DatabaseName, "", ""))
}
