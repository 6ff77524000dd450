package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vibedb/internal/domain"
)

// Metadata accompanies every response.
type Metadata struct {
	Database        string    `json:"database,omitempty"`
	Schema          string    `json:"schema,omitempty"`
	Table           string    `json:"table,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
}

// Pagination describes a windowed list response.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// ErrorDetail is the error half of the envelope.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Response is the uniform envelope for every endpoint.
type Response struct {
	Success    bool         `json:"success"`
	Data       any          `json:"data,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Metadata   *Metadata    `json:"metadata,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
}

// errorStatus maps domain sentinels to HTTP status and error code. This is
// the only place the taxonomy is interpreted.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAuthMissing):
		return http.StatusUnauthorized, "auth_missing"
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized, "auth_invalid"
	case errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized, "auth_expired"
	case errors.Is(err, domain.ErrUserLocked):
		return http.StatusUnauthorized, "account_locked"
	case errors.Is(err, domain.ErrAuthzDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, domain.ErrMasterDBForbidden):
		return http.StatusForbidden, "master_db_forbidden"
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusForbidden, "invariant_violation"
	case errors.Is(err, domain.ErrIdentifierInvalid),
		errors.Is(err, domain.ErrParameterInvalid),
		errors.Is(err, domain.ErrMissingWhereClause),
		errors.Is(err, domain.ErrBlockedSQL),
		errors.Is(err, domain.ErrNotReadOnly),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrPasswordReused),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenUsed):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrServerExists),
		errors.Is(err, domain.ErrAssignmentExists),
		errors.Is(err, domain.ErrPGUserExists):
		return http.StatusBadRequest, "already_exists"
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrServerNotFound),
		errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrPermissionNotFound),
		errors.Is(err, domain.ErrPolicyNotFound),
		errors.Is(err, domain.ErrNoPGUser):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrQueryTimeout):
		return http.StatusRequestTimeout, "query_timeout"
	case errors.Is(err, domain.ErrCredentialUnreadable):
		return http.StatusInternalServerError, "credential_unreadable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeJSON serializes the envelope. Serialization failures are logged,
// not surfaced; headers are already gone by then.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}

// reqContext carries per-request bookkeeping built by the middleware.
type reqContext struct {
	requestID string
	start     time.Time
	identity  *domain.Identity
}

func (rc *reqContext) metadata(database, schema, table string) *Metadata {
	return &Metadata{
		Database:        database,
		Schema:          schema,
		Table:           table,
		Timestamp:       time.Now().UTC(),
		RequestID:       rc.requestID,
		ExecutionTimeMS: time.Since(rc.start).Milliseconds(),
	}
}

func (s *Server) ok(w http.ResponseWriter, rc *reqContext, status int, data any, meta *Metadata) {
	if meta == nil {
		meta = rc.metadata("", "", "")
	}
	writeJSON(w, s.log.Logger, status, &Response{
		Success:  true,
		Data:     data,
		Metadata: meta,
	})
}

func (s *Server) okPaged(w http.ResponseWriter, rc *reqContext, data any, meta *Metadata, page *Pagination) {
	if meta == nil {
		meta = rc.metadata("", "", "")
	}
	writeJSON(w, s.log.Logger, http.StatusOK, &Response{
		Success:    true,
		Data:       data,
		Metadata:   meta,
		Pagination: page,
	})
}

func (s *Server) fail(w http.ResponseWriter, rc *reqContext, err error, meta *Metadata) {
	status, code := errorStatus(err)
	if meta == nil {
		meta = rc.metadata("", "", "")
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", rc.requestID, "code", code, "error", err)
	}
	writeJSON(w, s.log.Logger, status, &Response{
		Success:  false,
		Error:    &ErrorDetail{Code: code, Message: err.Error()},
		Metadata: meta,
	})
}

// failWithDetails is fail with extra context attached to the error body,
// like the query preview on target errors.
func (s *Server) failWithDetails(w http.ResponseWriter, rc *reqContext, err error, meta *Metadata, details any) {
	status, code := errorStatus(err)
	if meta == nil {
		meta = rc.metadata("", "", "")
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", rc.requestID, "code", code, "error", err)
	}
	writeJSON(w, s.log.Logger, status, &Response{
		Success:  false,
		Error:    &ErrorDetail{Code: code, Message: err.Error(), Details: details},
		Metadata: meta,
	})
}

// failMsg reports a client error with an explicit message, without a
// sentinel.
func (s *Server) failMsg(w http.ResponseWriter, rc *reqContext, status int, code, message string) {
	writeJSON(w, s.log.Logger, status, &Response{
		Success:  false,
		Error:    &ErrorDetail{Code: code, Message: message},
		Metadata: rc.metadata("", "", ""),
	})
}
