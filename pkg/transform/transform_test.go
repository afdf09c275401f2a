package transform

import (
	"testing"

	"flowline/pkg/frame"
	"flowline/pkg/model"
)

func TestDropStepRemovesListedColumns(t *testing.T) {
	in := frame.Table{
		Columns: []string{"Price", "Instr"},
		Schema: map[string]model.DType{
			"Price": {Kind: model.KindDouble},
			"Instr": {Kind: model.KindStr},
		},
		Rows: []map[string]any{
			{"Price": 2.3, "Instr": "ABAB"},
			{"Price": 102.023, "Instr": "TORO"},
			{"Price": 19.88, "Instr": "PKJT"},
		},
	}
	st := dropStep{columns: []string{"Price"}}
	out, err := st.Apply(in, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Columns) != 1 || out.Columns[0] != "Instr" {
		t.Fatalf("expected only Instr column, got %v", out.Columns)
	}
	for _, row := range out.Rows {
		if _, ok := row["Price"]; ok {
			t.Fatalf("expected Price dropped from row, got %v", row)
		}
	}
	if out.Rows[0]["Instr"] != "ABAB" || out.Rows[1]["Instr"] != "TORO" || out.Rows[2]["Instr"] != "PKJT" {
		t.Fatalf("unexpected row values: %v", out.Rows)
	}
}

func TestTimeStepParsesMinuteSecondForm(t *testing.T) {
	in := frame.Table{
		Columns: []string{"time"},
		Schema:  map[string]model.DType{"time": {Kind: model.KindStr}},
		Rows: []map[string]any{
			{"time": "10:09"},
			{"time": "08:20"},
			{"time": "19:33"},
		},
	}
	st := timeStep{include: []string{"time"}, into: "%M:%S"}
	out, err := st.Apply(in, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []int{10*60 + 9, 8*60 + 20, 19*60 + 33}
	for i, w := range want {
		if out.Rows[i]["time"] != w {
			t.Fatalf("row %d: expected %d seconds, got %v", i, w, out.Rows[i]["time"])
		}
	}
}

func TestJoinOnIDRetainsLeftColumns(t *testing.T) {
	left := frame.Table{
		Columns: []string{"id", "price"},
		Schema: map[string]model.DType{
			"id": {Kind: model.KindInt64}, "price": {Kind: model.KindDouble},
		},
		Rows: []map[string]any{
			{"id": 0, "price": 1.1},
			{"id": 1, "price": 2.2},
		},
	}
	right := frame.Table{
		Columns: []string{"id", "ric", "mkt"},
		Schema: map[string]model.DType{
			"id": {Kind: model.KindInt64}, "ric": {Kind: model.KindStr}, "mkt": {Kind: model.KindStr},
		},
		Rows: []map[string]any{
			{"id": 0, "ric": "AAPL", "mkt": "NASDAQ"},
			{"id": 1, "ric": "AMZN", "mkt": "NASDAQ"},
		},
	}
	out, err := joinTables(left, right, []joinKey{{Left: "id", Right: "id"}}, joinInner)
	if err != nil {
		t.Fatalf("joinTables: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(out.Rows))
	}
	if out.Rows[0]["ric"] != "AAPL" || out.Rows[0]["price"] != 1.1 {
		t.Fatalf("unexpected joined row: %v", out.Rows[0])
	}
}

func TestSQLSelectWithAliasAndWhere(t *testing.T) {
	st, err := parseSQLQuery("SELECT id AS identifier, price FROM self WHERE id = 1")
	if err != nil {
		t.Fatalf("parseSQLQuery: %v", err)
	}
	in := frame.Table{
		Columns: []string{"id", "price"},
		Schema:  map[string]model.DType{"id": {Kind: model.KindInt64}, "price": {Kind: model.KindDouble}},
		Rows: []map[string]any{
			{"id": 0, "price": 1.1},
			{"id": 1, "price": 2.2},
		},
	}
	out, err := st.Apply(in, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Rows) != 1 {
		t.Fatalf("expected 1 row after WHERE filter, got %d", len(out.Rows))
	}
	if out.Rows[0]["identifier"] != 1 {
		t.Fatalf("expected aliased column identifier=1, got %v", out.Rows[0])
	}
}
