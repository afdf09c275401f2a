package transform

import (
	"testing"

	"gopkg.in/yaml.v3"

	"flowline/pkg/config"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

func decodeOneOf(t *testing.T, src string) config.OneOf {
	t.Helper()
	var one config.OneOf
	if err := yaml.Unmarshal([]byte(src), &one); err != nil {
		t.Fatalf("unmarshal one-of: %v", err)
	}
	return one
}

func TestParseStepDropEmplacesColumnSymbol(t *testing.T) {
	one := decodeOneOf(t, "drop: [\"$scratch_col\", \"literal_col\"]\n")

	st, err := ParseStep(one, map[string]any{"scratch_col": "Price"})
	if err != nil {
		t.Fatalf("ParseStep: %v", err)
	}
	ds, ok := st.(dropStep)
	if !ok {
		t.Fatalf("expected a dropStep, got %T", st)
	}
	if len(ds.columns) != 2 || ds.columns[0] != "Price" || ds.columns[1] != "literal_col" {
		t.Errorf("columns = %v", ds.columns)
	}
}

func TestParseStepDropRejectsUnresolvedColumnSymbol(t *testing.T) {
	one := decodeOneOf(t, "drop: [\"$scratch_col\"]\n")
	if _, err := ParseStep(one, nil); err == nil {
		t.Fatal("expected an error for an unresolved column symbol")
	}
}

func TestParseStepJoinEmplacesRightFrameSymbol(t *testing.T) {
	one := decodeOneOf(t, "join:\n  right: $right_frame\n  on:\n    - left: id\n      right: id\n")

	st, err := ParseStep(one, map[string]any{"right_frame": "instruments"})
	if err != nil {
		t.Fatalf("ParseStep: %v", err)
	}
	js, ok := st.(joinStep)
	if !ok {
		t.Fatalf("expected a joinStep, got %T", st)
	}
	if js.right != "instruments" {
		t.Errorf("right = %q, want instruments", js.right)
	}
}

func TestParseStepSQLScalarFormEmplacesQuerySymbol(t *testing.T) {
	one := decodeOneOf(t, "sql: $query_text\n")

	st, err := ParseStep(one, map[string]any{"query_text": "SELECT id FROM self"})
	if err != nil {
		t.Fatalf("ParseStep: %v", err)
	}

	in := frame.Table{
		Columns: []string{"id"},
		Schema:  map[string]model.DType{"id": {Kind: model.KindInt64}},
		Rows:    []map[string]any{{"id": 7}},
	}
	out, err := st.Apply(in, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0]["id"] != 7 {
		t.Errorf("unexpected rows: %v", out.Rows)
	}
}

func TestParseStepSQLMappingFormEmplacesQuerySymbol(t *testing.T) {
	one := decodeOneOf(t, "sql:\n  query: $query_text\n")

	st, err := ParseStep(one, map[string]any{"query_text": "SELECT id FROM self"})
	if err != nil {
		t.Fatalf("ParseStep: %v", err)
	}
	if _, ok := st.(sqlStep); !ok {
		t.Fatalf("expected a sqlStep, got %T", st)
	}
}
