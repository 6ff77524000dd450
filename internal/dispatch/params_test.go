package dispatch

import (
	"errors"
	"strings"
	"testing"
	"time"

	"vibedb/internal/config"
	"vibedb/internal/domain"
)

func configLimits(maxQuerySeconds int) config.LimitsConfig {
	return config.LimitsConfig{
		MaxQueryTimeSeconds: maxQuerySeconds,
		MaxRowsPerQuery:     1000,
		DefaultPageSize:     100,
	}
}

func TestCoerceParams_Empty(t *testing.T) {
	args, err := CoerceParams(nil)
	if err != nil {
		t.Fatalf("CoerceParams(nil) = %v", err)
	}
	if args != nil {
		t.Errorf("expected nil args, got %v", args)
	}
}

func TestCoerceParams_Types(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		want  any
	}{
		{"int from float64", Param{Value: float64(42), Type: "int"}, int64(42)},
		{"int from string", Param{Value: "17", Type: "integer"}, int64(17)},
		{"int trims spaces", Param{Value: " 8 ", Type: "int"}, int64(8)},
		{"float from string", Param{Value: "3.5", Type: "float"}, 3.5},
		{"float from int", Param{Value: 2, Type: "numeric"}, 2.0},
		{"bool true", Param{Value: "yes", Type: "bool"}, true},
		{"bool t", Param{Value: "t", Type: "boolean"}, true},
		{"bool one", Param{Value: "1", Type: "bool"}, true},
		{"bool other string", Param{Value: "nope", Type: "bool"}, false},
		{"bool native", Param{Value: true, Type: "bool"}, true},
		{"string", Param{Value: "hello", Type: "text"}, "hello"},
		{"string from number", Param{Value: float64(7), Type: "string"}, "7"},
		{"unknown type passes through as string", Param{Value: "x", Type: "geometry"}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := CoerceParams([]Param{tt.param})
			if err != nil {
				t.Fatalf("CoerceParams failed: %v", err)
			}
			if args[0] != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", args[0], args[0], tt.want, tt.want)
			}
		})
	}
}

func TestCoerceParams_Date(t *testing.T) {
	args, err := CoerceParams([]Param{{Value: "2024-06-15", Type: "date"}})
	if err != nil {
		t.Fatalf("CoerceParams failed: %v", err)
	}
	got, ok := args[0].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", args[0])
	}
	if got.Year() != 2024 || got.Month() != time.June || got.Day() != 15 {
		t.Errorf("unexpected date: %v", got)
	}
}

func TestCoerceParams_Timestamp(t *testing.T) {
	tests := []string{
		"2024-06-15T10:30:00Z",
		"2024-06-15 10:30:00",
		"2024-06-15",
	}
	for _, input := range tests {
		args, err := CoerceParams([]Param{{Value: input, Type: "timestamp"}})
		if err != nil {
			t.Fatalf("CoerceParams(%q) failed: %v", input, err)
		}
		if _, ok := args[0].(time.Time); !ok {
			t.Errorf("CoerceParams(%q): expected time.Time, got %T", input, args[0])
		}
	}
}

func TestCoerceParams_JSON(t *testing.T) {
	args, err := CoerceParams([]Param{{Value: `{"a": 1}`, Type: "json"}})
	if err != nil {
		t.Fatalf("CoerceParams failed: %v", err)
	}
	obj, ok := args[0].(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", args[0])
	}
	if obj["a"] != float64(1) {
		t.Errorf("unexpected parsed value: %v", obj)
	}
}

func TestCoerceParams_FailureReportsIndex(t *testing.T) {
	_, err := CoerceParams([]Param{
		{Value: "1", Type: "int"},
		{Value: "not a number", Type: "int"},
	})
	if !errors.Is(err, domain.ErrParameterInvalid) {
		t.Fatalf("expected ErrParameterInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "parameter 2") {
		t.Errorf("error should name the one-based index: %v", err)
	}
}
