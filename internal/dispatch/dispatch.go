// Package dispatch executes SQL on per-user pools with the safety rails of
// the data plane: block-listing, read-only enforcement, typed parameters,
// and bounded timeouts.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vibedb/internal/config"
	"vibedb/internal/domain"
)

// maxTimeout caps every query regardless of what the caller requests.
const maxTimeout = 60 * time.Second

// Dispatcher runs raw and structured SQL.
type Dispatcher struct {
	limits config.LimitsConfig
	log    *slog.Logger
}

// New creates a dispatcher.
func New(limits config.LimitsConfig, log *slog.Logger) *Dispatcher {
	return &Dispatcher{limits: limits, log: log}
}

// Result is the outcome of one query.
type Result struct {
	Rows         []map[string]any `json:"rows,omitempty"`
	Columns      []string         `json:"columns,omitempty"`
	RowCount     int              `json:"row_count"`
	AffectedRows int64            `json:"affected_rows,omitempty"`
	Operation    string           `json:"operation"`
	Dangerous    bool             `json:"dangerous,omitempty"`
	Message      string           `json:"message,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
}

// Timeout clamps the requested per-query timeout to (0, 60] seconds,
// falling back to the configured default.
func (d *Dispatcher) Timeout(requestedSeconds int) time.Duration {
	seconds := requestedSeconds
	if seconds <= 0 {
		seconds = d.limits.MaxQueryTimeSeconds
	}
	timeout := time.Duration(seconds) * time.Second
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	return timeout
}

// ExecuteRaw runs a raw query after block-list and read-only checks.
// Params are already coerced. The caller has verified schema permission.
func (d *Dispatcher) ExecuteRaw(ctx context.Context, pool *pgxpool.Pool, query string, args []any, timeoutSeconds int, readOnly bool) (*Result, error) {
	if err := CheckBlocked(query); err != nil {
		return nil, err
	}

	op := Classify(query)
	if readOnly && op != OpSelect && op != OpUnknown {
		return nil, fmt.Errorf("%w: operation detected: %s", domain.ErrNotReadOnly, op)
	}

	queryCtx, cancel := context.WithTimeout(ctx, d.Timeout(timeoutSeconds))
	defer cancel()

	returnsData := op == OpSelect || strings.Contains(strings.ToUpper(query), "RETURNING")

	var result *Result
	var err error
	if returnsData {
		result, err = d.queryRows(queryCtx, pool, query, args)
	} else {
		result, err = d.exec(queryCtx, pool, query, args)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrQueryTimeout
		}
		return nil, err
	}

	result.Operation = op
	result.Dangerous = IsDangerous(query)
	return result, nil
}

// Exec runs a statement that returns no rows and reports the affected
// count from the command tag.
func (d *Dispatcher) Exec(ctx context.Context, pool *pgxpool.Pool, query string, args []any, timeoutSeconds int) (*Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, d.Timeout(timeoutSeconds))
	defer cancel()

	result, err := d.exec(queryCtx, pool, query, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrQueryTimeout
		}
		return nil, err
	}
	result.Operation = Classify(query)
	return result, nil
}

// Query runs a statement expected to return rows.
func (d *Dispatcher) Query(ctx context.Context, pool *pgxpool.Pool, query string, args []any, timeoutSeconds int) (*Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, d.Timeout(timeoutSeconds))
	defer cancel()

	result, err := d.queryRows(queryCtx, pool, query, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrQueryTimeout
		}
		return nil, err
	}
	result.Operation = Classify(query)
	return result, nil
}

func (d *Dispatcher) queryRows(ctx context.Context, pool *pgxpool.Pool, query string, args []any) (*Result, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	maxRows := d.limits.MaxRowsPerQuery
	if maxRows <= 0 {
		maxRows = 10000
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	result.RowCount = len(result.Rows)
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}
	return result, nil
}

func (d *Dispatcher) exec(ctx context.Context, pool *pgxpool.Pool, query string, args []any) (*Result, error) {
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("statement failed: %w", err)
	}
	return &Result{
		AffectedRows: tag.RowsAffected(),
		Message:      "Query executed successfully",
	}, nil
}
