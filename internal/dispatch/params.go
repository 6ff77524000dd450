package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibedb/internal/domain"
)

// Param is one typed query parameter. Raw SQL callers must state the
// intended PostgreSQL type of every parameter; values arrive as JSON and
// would otherwise all look like strings or float64s.
type Param struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// CoerceParams converts typed parameters to driver-ready Go values.
// Unknown types coerce to string; a failed conversion reports the
// one-based parameter index.
func CoerceParams(params []Param) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}

	out := make([]any, 0, len(params))
	for i, p := range params {
		v, err := coerceParam(p)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to convert parameter %d (value: %v) to type %s: %v",
				domain.ErrParameterInvalid, i+1, p.Value, p.Type, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func coerceParam(p Param) (any, error) {
	switch strings.ToLower(p.Type) {
	case "date":
		return coerceDate(p.Value)
	case "timestamp", "datetime", "timestamptz":
		return coerceTimestamp(p.Value)
	case "int", "integer":
		return coerceInt(p.Value)
	case "float", "decimal", "numeric", "real", "double":
		return coerceFloat(p.Value)
	case "bool", "boolean":
		return coerceBool(p.Value)
	case "json":
		return coerceJSON(p.Value)
	case "string", "text", "varchar", "char":
		return fmt.Sprintf("%v", p.Value), nil
	default:
		// Unknown type: pass through as string.
		return fmt.Sprintf("%v", p.Value), nil
	}
}

func coerceDate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if len(s) == 10 {
		return time.Parse("2006-01-02", s)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return t.Truncate(24 * time.Hour), nil
}

func coerceTimestamp(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch {
	case len(s) == 10:
		return time.Parse("2006-01-02", s)
	case strings.Contains(s, "T"):
		return time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1))
	case strings.Contains(s, " "):
		return time.Parse("2006-01-02 15:04:05", s)
	default:
		return time.Parse("2006-01-02 15:04:05", s)
	}
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
}

func coerceBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "1", "yes", "t", "y":
			return true, nil
		default:
			return false, nil
		}
	case float64:
		return b != 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to boolean", v)
	}
}

func coerceJSON(v any) (any, error) {
	if s, ok := v.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, err
		}
		return parsed, nil
	}
	return v, nil
}
