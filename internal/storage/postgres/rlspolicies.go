package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vibedb/internal/domain"
)

// RLSPolicyRepository manages the catalog mirror of row-level-security
// policies plus the read-only policy templates.
type RLSPolicyRepository struct {
	store *Store
}

const rlsPolicyColumns = `id, vibe_user_id, database_name, schema_name, table_name,
	policy_name, policy_type, command_type, using_expression,
	with_check_expression, is_active, template_used, notes,
	created_at, updated_at`

// Create inserts a policy record after the native policy exists.
func (r *RLSPolicyRepository) Create(ctx context.Context, p *domain.RLSPolicy) error {
	if p.ID == "" {
		p.ID = domain.RLSPolicyID(uuid.NewString())
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO rls_policies (id, vibe_user_id, database_name, schema_name,
			table_name, policy_name, policy_type, command_type, using_expression,
			with_check_expression, is_active, template_used, notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.VibeUserID, p.DatabaseName, p.SchemaName, p.TableName,
		p.PolicyName, p.PolicyType, p.CommandType, p.UsingExpression,
		nullString(p.WithCheckExpression), p.IsActive,
		nullString(p.TemplateUsed), nullString(p.Notes),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rls policy record: %w", err)
	}
	return nil
}

// Get retrieves a policy record by ID.
func (r *RLSPolicyRepository) Get(ctx context.Context, id domain.RLSPolicyID) (*domain.RLSPolicy, error) {
	row := r.store.pool.QueryRow(ctx,
		`SELECT `+rlsPolicyColumns+` FROM rls_policies WHERE id = $1`, id)
	return scanRLSPolicy(row)
}

// GetByName retrieves a policy record by its unique location and name.
func (r *RLSPolicyRepository) GetByName(ctx context.Context, database, schema, table, policy string) (*domain.RLSPolicy, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT `+rlsPolicyColumns+` FROM rls_policies
		WHERE database_name = $1 AND schema_name = $2
		  AND table_name = $3 AND policy_name = $4`,
		database, schema, table, policy)
	return scanRLSPolicy(row)
}

// ListByUser returns all policy records scoped to a user's role.
func (r *RLSPolicyRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.RLSPolicy, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+rlsPolicyColumns+` FROM rls_policies
		WHERE vibe_user_id = $1
		ORDER BY database_name, schema_name, table_name, policy_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rls policies: %w", err)
	}
	defer rows.Close()
	return collectRLSPolicies(rows)
}

// ListByTable returns all policy records on one table.
func (r *RLSPolicyRepository) ListByTable(ctx context.Context, database, schema, table string) ([]*domain.RLSPolicy, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+rlsPolicyColumns+` FROM rls_policies
		WHERE database_name = $1 AND schema_name = $2 AND table_name = $3
		ORDER BY policy_name`, database, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list rls policies: %w", err)
	}
	defer rows.Close()
	return collectRLSPolicies(rows)
}

// SetActive flips a policy record's active flag. Dropped policies stay in
// the catalog as inactive rows; only user removal deletes them.
func (r *RLSPolicyRepository) SetActive(ctx context.Context, id domain.RLSPolicyID, active bool) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE rls_policies SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update rls policy record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}

// DeleteByUser removes all policy records for a user and returns the count.
func (r *RLSPolicyRepository) DeleteByUser(ctx context.Context, userID domain.UserID) (int, error) {
	tag, err := r.store.pool.Exec(ctx,
		`DELETE FROM rls_policies WHERE vibe_user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rls policy records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListTemplates returns the active policy templates seeded by migration.
func (r *RLSPolicyRepository) ListTemplates(ctx context.Context) ([]*domain.RLSPolicyTemplate, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT id, template_name, description, policy_type,
			using_expression_template, with_check_expression_template,
			required_columns, example_usage, is_active
		FROM rls_policy_templates
		WHERE is_active = TRUE
		ORDER BY template_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rls policy templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.RLSPolicyTemplate
	for rows.Next() {
		var t domain.RLSPolicyTemplate
		var withCheck, example *string
		if err := rows.Scan(
			&t.ID, &t.TemplateName, &t.Description, &t.PolicyType,
			&t.UsingExpressionTemplate, &withCheck,
			&t.RequiredColumns, &example, &t.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rls policy template: %w", err)
		}
		t.WithCheckExpressionTemplate = stringOrEmpty(withCheck)
		t.ExampleUsage = stringOrEmpty(example)
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

func collectRLSPolicies(rows pgx.Rows) ([]*domain.RLSPolicy, error) {
	var policies []*domain.RLSPolicy
	for rows.Next() {
		p, err := scanRLSPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanRLSPolicy(row pgx.Row) (*domain.RLSPolicy, error) {
	var p domain.RLSPolicy
	var withCheck, template, notes *string
	err := row.Scan(
		&p.ID, &p.VibeUserID, &p.DatabaseName, &p.SchemaName, &p.TableName,
		&p.PolicyName, &p.PolicyType, &p.CommandType, &p.UsingExpression,
		&withCheck, &p.IsActive, &template, &notes,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rls policy record: %w", err)
	}
	p.WithCheckExpression = stringOrEmpty(withCheck)
	p.TemplateUsed = stringOrEmpty(template)
	p.Notes = stringOrEmpty(notes)
	return &p, nil
}
