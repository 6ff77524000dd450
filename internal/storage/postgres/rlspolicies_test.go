package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"vibedb/internal/domain"
)

// fakeRow satisfies pgx.Row for scan tests without a database.
type fakeRow struct {
	err      error
	populate func(dest []any)
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.populate != nil {
		r.populate(dest)
	}
	return nil
}

func TestScanRLSPolicy_NoRows(t *testing.T) {
	_, err := scanRLSPolicy(fakeRow{err: pgx.ErrNoRows})
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Errorf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestScanRLSPolicy_RetainsInactiveRecord(t *testing.T) {
	// Dropped policies stay in the catalog with is_active = FALSE; the
	// scan must surface them rather than treating inactive as missing.
	withCheck := "tenant_id = current_setting('app.tenant')::int"
	now := time.Now().UTC()

	p, err := scanRLSPolicy(fakeRow{populate: func(dest []any) {
		*(dest[0].(*domain.RLSPolicyID)) = "pol-1"
		*(dest[1].(*domain.UserID)) = "user-1"
		*(dest[2].(*string)) = "sales"
		*(dest[3].(*string)) = "public"
		*(dest[4].(*string)) = "orders"
		*(dest[5].(*string)) = "orders_tenant_isolation"
		*(dest[6].(*domain.RLSPolicyType)) = domain.PolicyAll
		*(dest[7].(*domain.RLSCommandType)) = domain.PolicyPermissive
		*(dest[8].(*string)) = withCheck
		*(dest[9].(**string)) = &withCheck
		*(dest[10].(*bool)) = false
		*(dest[11].(**string)) = nil
		*(dest[12].(**string)) = nil
		*(dest[13].(*time.Time)) = now
		*(dest[14].(*time.Time)) = now
	}})
	if err != nil {
		t.Fatalf("scanRLSPolicy failed: %v", err)
	}

	if p.ID != "pol-1" || p.PolicyName != "orders_tenant_isolation" {
		t.Errorf("unexpected record: %+v", p)
	}
	if p.IsActive {
		t.Error("inactive record must keep IsActive = false")
	}
	if p.WithCheckExpression != withCheck {
		t.Errorf("WithCheckExpression = %q, want %q", p.WithCheckExpression, withCheck)
	}
	if p.TemplateUsed != "" || p.Notes != "" {
		t.Errorf("NULL columns should scan to empty strings, got %q / %q", p.TemplateUsed, p.Notes)
	}
}

// Drop flows flip the flag instead of deleting the record; pin the method
// shape the materializer depends on.
var _ interface {
	SetActive(ctx context.Context, id domain.RLSPolicyID, active bool) error
} = &RLSPolicyRepository{}
