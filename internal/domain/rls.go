package domain

import "time"

// RLSPolicyType is the command class an RLS policy applies to.
type RLSPolicyType string

const (
	PolicySelect RLSPolicyType = "SELECT"
	PolicyInsert RLSPolicyType = "INSERT"
	PolicyUpdate RLSPolicyType = "UPDATE"
	PolicyDelete RLSPolicyType = "DELETE"
	PolicyAll    RLSPolicyType = "ALL"
)

// IsValid returns true if the policy type is valid.
func (t RLSPolicyType) IsValid() bool {
	switch t {
	case PolicySelect, PolicyInsert, PolicyUpdate, PolicyDelete, PolicyAll:
		return true
	default:
		return false
	}
}

// AllowsWithCheck reports whether the policy type accepts a WITH CHECK
// expression. PostgreSQL rejects WITH CHECK on SELECT and DELETE policies.
func (t RLSPolicyType) AllowsWithCheck() bool {
	switch t {
	case PolicyInsert, PolicyUpdate, PolicyAll:
		return true
	default:
		return false
	}
}

// RLSCommandType is the policy combination mode.
type RLSCommandType string

const (
	PolicyPermissive  RLSCommandType = "PERMISSIVE"
	PolicyRestrictive RLSCommandType = "RESTRICTIVE"
)

// IsValid returns true if the command type is valid.
func (t RLSCommandType) IsValid() bool {
	return t == PolicyPermissive || t == PolicyRestrictive
}

// RLSPolicyID is a unique identifier for a row-level-security policy record.
type RLSPolicyID string

// String returns the string representation.
func (id RLSPolicyID) String() string {
	return string(id)
}

// RLSPolicy mirrors a native row-level-security policy on a target table,
// scoped to the user's materialized PostgreSQL role.
type RLSPolicy struct {
	ID                  RLSPolicyID
	VibeUserID          UserID
	DatabaseName        string
	SchemaName          string
	TableName           string
	PolicyName          string
	PolicyType          RLSPolicyType
	CommandType         RLSCommandType
	UsingExpression     string
	WithCheckExpression string
	IsActive            bool
	TemplateUsed        string
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RLSPolicyTemplate is a read-only building block for common policies.
// The expression templates contain placeholders the operator substitutes
// before creating a policy.
type RLSPolicyTemplate struct {
	ID                          string
	TemplateName                string
	Description                 string
	PolicyType                  RLSPolicyType
	UsingExpressionTemplate     string
	WithCheckExpressionTemplate string
	RequiredColumns             []string
	ExampleUsage                string
	IsActive                    bool
}
