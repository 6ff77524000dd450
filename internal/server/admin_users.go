package server

import (
	"encoding/json"
	"net/http"
	"time"

	"vibedb/internal/domain"
)

type createUserRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
}

type userResponse struct {
	ID                 domain.UserID `json:"id"`
	Email              string        `json:"email"`
	Username           string        `json:"username"`
	Organization       string        `json:"organization,omitempty"`
	IsActive           bool          `json:"is_active"`
	PasswordExpiresAt  *time.Time    `json:"password_expires_at,omitempty"`
	ResetRequired      bool          `json:"password_reset_required"`
	CreatedAt          time.Time     `json:"created_at"`
	FailedLoginAttempt int           `json:"failed_login_attempts,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		Organization:       u.Organization,
		IsActive:           u.IsActive,
		PasswordExpiresAt:  u.PasswordExpiresAt,
		ResetRequired:      u.PasswordResetRequired,
		CreatedAt:          u.CreatedAt,
		FailedLoginAttempt: u.FailedLoginAttempts,
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	users, err := s.store.Users().List(r.Context())
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Password != "" {
		if err := checkPasswordPolicy(req.Password); err != nil {
			s.fail(w, rc, err, nil)
			return
		}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(s.cfg.Password.ExpiryDays) * 24 * time.Hour)
	user := &domain.User{
		Email:             req.Email,
		Username:          req.Username,
		Organization:      req.Organization,
		IsActive:          true,
		PasswordChangedAt: &now,
		PasswordExpiresAt: &expiresAt,
	}
	if req.Password != "" {
		user.PasswordHash = s.vault.HashPassword(req.Password)
	} else {
		user.PasswordResetRequired = true
	}

	if err := user.Validate(); err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	if err := s.store.Users().Create(r.Context(), user); err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	if user.PasswordHash != "" {
		if err := s.store.Passwords().AddHistory(r.Context(), user.ID, user.PasswordHash, s.cfg.Password.HistorySize); err != nil {
			s.log.Warn("failed to seed password history", "user_id", user.ID, "error", err)
		}
	}

	s.record(r, rc, "", "", "", "create_user", http.StatusCreated, "", map[string]any{"email": req.Email})
	s.ok(w, rc, http.StatusCreated, toUserResponse(user), nil)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	userID := domain.UserID(r.PathValue("id"))

	stats, err := s.lifecycle.RemoveUser(r.Context(), userID, identity(r).UserID, "")
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "remove_user", http.StatusOK, "", map[string]any{"user_id": userID})
	s.ok(w, rc, http.StatusOK, stats, nil)
}

func (s *Server) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	rc := requestContext(r)
	userID := domain.UserID(r.PathValue("id"))

	if err := s.store.Users().SetActive(r.Context(), userID, active); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	op := "deactivate_user"
	if active {
		op = "activate_user"
	}
	s.record(r, rc, "", "", "", op, http.StatusOK, "", map[string]any{"user_id": userID})
	s.ok(w, rc, http.StatusOK, map[string]any{"user_id": userID, "is_active": active}, nil)
}

// handleListUserDatabases returns the databases assigned to a user.
func (s *Server) handleListUserDatabases(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	userID := domain.UserID(r.PathValue("id"))

	assignments, err := s.store.Assignments().ListByUser(r.Context(), userID)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	out := make([]map[string]any, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, map[string]any{
			"database_name": a.DatabaseName,
			"is_active":     a.IsActive,
			"created_at":    a.CreatedAt,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

func (s *Server) handleActivateUser(w http.ResponseWriter, r *http.Request) {
	s.setUserActive(w, r, true)
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	s.setUserActive(w, r, false)
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req struct {
		UserID      string `json:"user_id"`
		CleanupType string `json:"cleanup_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	stats, err := s.lifecycle.RemoveUser(r.Context(), domain.UserID(req.UserID), identity(r).UserID, req.CleanupType)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "remove_user", http.StatusOK, "", map[string]any{
		"user_id": req.UserID, "cleanup_type": req.CleanupType,
	})
	s.ok(w, rc, http.StatusOK, map[string]any{
		"message":         "User removed successfully",
		"cleanup_details": stats,
	}, nil)
}
