package server

import (
	"encoding/json"
	"net/http"
	"time"

	"vibedb/internal/domain"
)

type createAPIKeyRequest struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Environment   string `json:"environment"`
	ExpiresInDays int    `json:"expires_in_days"`
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = string(identity(r).UserID)
	}

	keys, err := s.store.APIKeys().ListByUser(r.Context(), domain.UserID(userID))
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type keyResponse struct {
		ID         domain.APIKeyID `json:"id"`
		KeyPrefix  string          `json:"key_prefix"`
		Name       string          `json:"name"`
		IsActive   bool            `json:"is_active"`
		ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
		LastUsedAt *time.Time      `json:"last_used_at,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}
	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyResponse{
			ID:         k.ID,
			KeyPrefix:  k.KeyPrefix,
			Name:       k.Name,
			IsActive:   k.IsActive,
			ExpiresAt:  k.ExpiresAt,
			LastUsedAt: k.LastUsedAt,
			CreatedAt:  k.CreatedAt,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

// handleCreateAPIKey mints a key. The plaintext appears in this response
// and nowhere else.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	env := req.Environment
	if env == "" {
		env = "prod"
	}

	if _, err := s.store.Users().Get(r.Context(), domain.UserID(req.UserID)); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	plaintext, digest, prefix, err := s.vault.NewAPIKey(env)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	key := &domain.APIKey{
		UserID:    domain.UserID(req.UserID),
		KeyHash:   digest,
		KeyPrefix: prefix,
		Name:      req.Name,
		IsActive:  true,
	}
	if req.ExpiresInDays > 0 {
		expires := time.Now().UTC().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour)
		key.ExpiresAt = &expires
	}

	if err := s.store.APIKeys().Create(r.Context(), key); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "create_api_key", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "environment": env,
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"id":         key.ID,
		"api_key":    plaintext,
		"key_prefix": prefix,
		"expires_at": key.ExpiresAt,
		"message":    "Store this key now; it cannot be retrieved again.",
	}, nil)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	keyID := domain.APIKeyID(r.PathValue("id"))

	if err := s.store.APIKeys().Revoke(r.Context(), keyID); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "revoke_api_key", http.StatusOK, "", map[string]any{"key_id": keyID})
	s.ok(w, rc, http.StatusOK, map[string]any{"key_id": keyID, "is_active": false}, nil)
}
