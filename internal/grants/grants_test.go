package grants

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"vibedb/internal/domain"
)

func newTestMaterializer() *Materializer {
	return New(nil, slog.New(slog.DiscardHandler))
}

func TestGrantSchema_RejectsMasterDB(t *testing.T) {
	m := newTestMaterializer()
	err := m.GrantSchema(context.Background(), "user-1", "Master_DB", "", "public", SchemaGrant{})
	if !errors.Is(err, domain.ErrMasterDBForbidden) {
		t.Errorf("expected ErrMasterDBForbidden, got %v", err)
	}
}

func TestGrantSchema_RejectsBadSchema(t *testing.T) {
	m := newTestMaterializer()
	err := m.GrantSchema(context.Background(), "user-1", "sales", "", "pub lic", SchemaGrant{})
	if !errors.Is(err, domain.ErrIdentifierInvalid) {
		t.Errorf("expected ErrIdentifierInvalid, got %v", err)
	}
}

func TestGrantTable_RejectsMasterDB(t *testing.T) {
	m := newTestMaterializer()
	err := m.GrantTable(context.Background(), "user-1", "master_db", "", "public", "orders", domain.TableVerbs{Select: true}, nil)
	if !errors.Is(err, domain.ErrMasterDBForbidden) {
		t.Errorf("expected ErrMasterDBForbidden, got %v", err)
	}
}

func TestGrantTable_RejectsBadColumn(t *testing.T) {
	m := newTestMaterializer()
	err := m.GrantTable(context.Background(), "user-1", "sales", "", "public", "orders",
		domain.TableVerbs{Select: true}, map[string][]string{"id; --": {"SELECT"}})
	if !errors.Is(err, domain.ErrIdentifierInvalid) {
		t.Errorf("expected ErrIdentifierInvalid, got %v", err)
	}
}

func TestCreateRLSPolicy_Rejections(t *testing.T) {
	m := newTestMaterializer()
	base := func() *domain.RLSPolicy {
		return &domain.RLSPolicy{
			VibeUserID:      "user-1",
			DatabaseName:    "sales",
			SchemaName:      "public",
			TableName:       "orders",
			PolicyName:      "orders_owner",
			PolicyType:      domain.PolicySelect,
			UsingExpression: "owner_id = current_user",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.RLSPolicy)
		wantErr error
	}{
		{"master db", func(p *domain.RLSPolicy) { p.DatabaseName = "master_db" }, domain.ErrMasterDBForbidden},
		{"bad schema", func(p *domain.RLSPolicy) { p.SchemaName = "pu;blic" }, domain.ErrIdentifierInvalid},
		{"bad table", func(p *domain.RLSPolicy) { p.TableName = `or"ders` }, domain.ErrIdentifierInvalid},
		{"bad policy name", func(p *domain.RLSPolicy) { p.PolicyName = "p name" }, domain.ErrIdentifierInvalid},
		{"bad policy type", func(p *domain.RLSPolicy) { p.PolicyType = "UPSERT" }, domain.ErrParameterInvalid},
		{"bad command type", func(p *domain.RLSPolicy) { p.CommandType = "STRICT" }, domain.ErrParameterInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			err := m.CreateRLSPolicy(context.Background(), "", p)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateRLSPolicy = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"public", `"public"`},
		{`sch"ema`, `"sch""ema"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
