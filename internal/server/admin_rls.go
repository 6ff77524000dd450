package server

import (
	"encoding/json"
	"net/http"

	"vibedb/internal/domain"
)

func (s *Server) handleListRLSPolicies(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = string(identity(r).UserID)
	}

	policies, err := s.store.RLSPolicies().ListByUser(r.Context(), domain.UserID(userID))
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type policyResponse struct {
		ID                  domain.RLSPolicyID    `json:"id"`
		UserID              domain.UserID         `json:"user_id"`
		DatabaseName        string                `json:"database_name"`
		SchemaName          string                `json:"schema_name"`
		TableName           string                `json:"table_name"`
		PolicyName          string                `json:"policy_name"`
		PolicyType          domain.RLSPolicyType  `json:"policy_type"`
		CommandType         domain.RLSCommandType `json:"command_type"`
		UsingExpression     string                `json:"using_expression"`
		WithCheckExpression string                `json:"with_check_expression,omitempty"`
		IsActive            bool                  `json:"is_active"`
		TemplateUsed        string                `json:"template_used,omitempty"`
	}
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, policyResponse{
			ID:                  p.ID,
			UserID:              p.VibeUserID,
			DatabaseName:        p.DatabaseName,
			SchemaName:          p.SchemaName,
			TableName:           p.TableName,
			PolicyName:          p.PolicyName,
			PolicyType:          p.PolicyType,
			CommandType:         p.CommandType,
			UsingExpression:     p.UsingExpression,
			WithCheckExpression: p.WithCheckExpression,
			IsActive:            p.IsActive,
			TemplateUsed:        p.TemplateUsed,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

type createRLSPolicyRequest struct {
	UserID              string `json:"user_id"`
	Database            string `json:"database"`
	Schema              string `json:"schema"`
	Table               string `json:"table"`
	PolicyName          string `json:"policy_name"`
	PolicyType          string `json:"policy_type"`
	CommandType         string `json:"command_type"`
	UsingExpression     string `json:"using_expression"`
	WithCheckExpression string `json:"with_check_expression"`
	TemplateUsed        string `json:"template_used"`
	Notes               string `json:"notes"`
	ServerID            string `json:"server_id"`
}

func (s *Server) handleCreateRLSPolicy(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req createRLSPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" || req.Database == "" || req.Schema == "" || req.Table == "" ||
		req.PolicyName == "" || req.PolicyType == "" || req.UsingExpression == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"user_id, database, schema, table, policy_name, policy_type, and using_expression are required")
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), req.ServerID, req.Database)
	if err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, req.Table))
		return
	}

	policy := &domain.RLSPolicy{
		VibeUserID:          domain.UserID(req.UserID),
		DatabaseName:        req.Database,
		SchemaName:          req.Schema,
		TableName:           req.Table,
		PolicyName:          req.PolicyName,
		PolicyType:          domain.RLSPolicyType(req.PolicyType),
		CommandType:         domain.RLSCommandType(req.CommandType),
		UsingExpression:     req.UsingExpression,
		WithCheckExpression: req.WithCheckExpression,
		TemplateUsed:        req.TemplateUsed,
		Notes:               req.Notes,
	}
	if err := s.grants.CreateRLSPolicy(r.Context(), adminConnStr, policy); err != nil {
		s.fail(w, rc, err, rc.metadata(req.Database, req.Schema, req.Table))
		return
	}

	s.record(r, rc, req.Database, req.Schema, req.Table, "create_rls_policy", http.StatusCreated, "", map[string]any{
		"user_id": req.UserID, "policy_name": req.PolicyName, "policy_type": req.PolicyType,
	})
	s.ok(w, rc, http.StatusCreated, map[string]any{
		"id":          policy.ID,
		"policy_name": policy.PolicyName,
		"policy_type": policy.PolicyType,
	}, rc.metadata(req.Database, req.Schema, req.Table))
}

func (s *Server) handleDropRLSPolicy(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	policyID := domain.RLSPolicyID(r.PathValue("id"))

	policy, err := s.store.RLSPolicies().Get(r.Context(), policyID)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	adminConnStr, err := s.resolveAdminConn(r.Context(), r.URL.Query().Get("server_id"), policy.DatabaseName)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	if err := s.grants.DropRLSPolicy(r.Context(), adminConnStr, policyID); err != nil {
		s.fail(w, rc, err, rc.metadata(policy.DatabaseName, policy.SchemaName, policy.TableName))
		return
	}

	s.record(r, rc, policy.DatabaseName, policy.SchemaName, policy.TableName,
		"drop_rls_policy", http.StatusOK, "", map[string]any{"policy_id": policyID})
	s.ok(w, rc, http.StatusOK, map[string]any{"policy_id": policyID, "dropped": true},
		rc.metadata(policy.DatabaseName, policy.SchemaName, policy.TableName))
}

func (s *Server) handleListRLSTemplates(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	templates, err := s.store.RLSPolicies().ListTemplates(r.Context())
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	type templateResponse struct {
		TemplateName                string               `json:"template_name"`
		Description                 string               `json:"description"`
		PolicyType                  domain.RLSPolicyType `json:"policy_type"`
		UsingExpressionTemplate     string               `json:"using_expression_template"`
		WithCheckExpressionTemplate string               `json:"with_check_expression_template,omitempty"`
		RequiredColumns             []string             `json:"required_columns"`
		ExampleUsage                string               `json:"example_usage,omitempty"`
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateResponse{
			TemplateName:                t.TemplateName,
			Description:                 t.Description,
			PolicyType:                  t.PolicyType,
			UsingExpressionTemplate:     t.UsingExpressionTemplate,
			WithCheckExpressionTemplate: t.WithCheckExpressionTemplate,
			RequiredColumns:             t.RequiredColumns,
			ExampleUsage:                t.ExampleUsage,
		})
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}
