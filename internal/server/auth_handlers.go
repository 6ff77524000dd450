package server

import (
	"encoding/json"
	"net"
	"net/http"
	"time"
	"unicode"

	"vibedb/internal/domain"
	"vibedb/internal/vault"
)

// handleAuthValidate returns the authenticated identity plus a permission
// summary. Gateways call this once per session.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	id := identity(r)

	perms, err := s.authorizer.Summarize(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.ok(w, rc, http.StatusOK, map[string]any{
		"user_id":          id.UserID,
		"key_id":           id.KeyID,
		"email":            id.Email,
		"organization":     id.Organization,
		"password_expired": id.PasswordExpired,
		"reset_required":   id.ResetRequired,
		"delegated":        id.Delegated,
		"permissions":      perms,
	}, nil)
}

// handleAuthPermissions returns the effective user's databases and grants.
func (s *Server) handleAuthPermissions(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	id := identity(r)

	perms, err := s.authorizer.Summarize(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	// Every assigned database implicitly includes read access to
	// information_schema; surface it so clients need no special casing.
	for _, db := range perms.Databases {
		perms.SchemaPermissions = append(perms.SchemaPermissions, &domain.SchemaPermission{
			UserID:       id.UserID,
			DatabaseName: db,
			SchemaName:   "information_schema",
			Permission:   domain.PermissionReadOnly,
		})
	}

	s.ok(w, rc, http.StatusOK, perms, nil)
}

type requestPasswordResetRequest struct {
	Email string `json:"email"`
}

// handleRequestPasswordReset mints a reset token for the given email. The
// response is identical whether or not the account exists.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req requestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	genericResponse := map[string]string{
		"message": "If the account exists, a reset link has been sent.",
	}

	user, err := s.store.Users().GetByEmail(r.Context(), req.Email)
	if err != nil {
		user = nil
	}
	if !canRequestReset(user) {
		s.ok(w, rc, http.StatusOK, genericResponse, nil)
		return
	}

	plaintext, digest, err := vault.NewResetToken()
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	if err := s.store.Passwords().InvalidateUserTokens(r.Context(), user.ID); err != nil {
		s.log.Warn("failed to invalidate prior reset tokens", "user_id", user.ID, "error", err)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: digest,
		Email:     user.Email,
		ExpiresAt: time.Now().UTC().Add(time.Duration(s.cfg.Password.ResetTokenExpiryHours) * time.Hour),
		IPAddress: host,
		UserAgent: r.UserAgent(),
	}
	if err := s.store.Passwords().CreateResetToken(r.Context(), token); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	if err := s.notifier.SendPasswordReset(r.Context(), user.Email, user.Username, plaintext); err != nil {
		s.log.Error("failed to send reset mail", "user_id", user.ID, "error", err)
	}

	s.ok(w, rc, http.StatusOK, genericResponse, nil)
}

// canRequestReset reports whether a reset token may be minted. Deactivated
// accounts get the same generic response as unknown emails so the endpoint
// leaks nothing about account state.
func canRequestReset(user *domain.User) bool {
	return user != nil && user.IsActive
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// handleResetPassword consumes a reset token and sets the new password.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "token and new_password are required")
		return
	}

	if err := checkPasswordPolicy(req.NewPassword); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	token, err := s.store.Passwords().GetResetToken(r.Context(), vault.HashResetToken(req.Token))
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	newHash := s.vault.HashPassword(req.NewPassword)

	recent, err := s.store.Passwords().RecentHashes(r.Context(), token.UserID, s.cfg.Password.HistorySize)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	for _, hash := range recent {
		if hash == newHash {
			s.fail(w, rc, domain.ErrPasswordReused, nil)
			return
		}
	}

	expiresAt := time.Now().UTC().Add(time.Duration(s.cfg.Password.ExpiryDays) * 24 * time.Hour)
	if err := s.store.Users().UpdatePassword(r.Context(), token.UserID, newHash, &expiresAt); err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	if err := s.store.Passwords().MarkTokenUsed(r.Context(), token.ID); err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	if err := s.store.Passwords().AddHistory(r.Context(), token.UserID, newHash, s.cfg.Password.HistorySize); err != nil {
		s.log.Warn("failed to record password history", "user_id", token.UserID, "error", err)
	}

	s.log.Info("password reset completed", "user_id", token.UserID)
	s.ok(w, rc, http.StatusOK, map[string]string{"message": "Password updated."}, nil)
}

// checkPasswordPolicy requires at least 8 characters with upper, lower,
// and digit classes.
func checkPasswordPolicy(password string) error {
	if len(password) < 8 {
		return domain.ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return domain.ErrWeakPassword
	}
	return nil
}
