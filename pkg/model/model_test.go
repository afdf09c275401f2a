package model

import (
	"testing"

	"flowline/pkg/keyword"
)

func TestDTypeStringRoundTrip(t *testing.T) {
	cases := []DType{
		{Kind: KindInt64},
		{Kind: KindDatetime, Tz: "utc"},
		{Kind: KindList, Elem: &DType{Kind: KindStr}},
		{Kind: KindStruct},
	}
	for _, dt := range cases {
		s := dt.String()
		got, err := ParseDType(s)
		if err != nil {
			t.Fatalf("ParseDType(%q): %v", s, err)
		}
		if got.String() != s {
			t.Errorf("round-trip mismatch: %q -> %q", s, got.String())
		}
	}
}

func TestParseDTypeIntAliasesInt64(t *testing.T) {
	dt, err := ParseDType("int")
	if err != nil {
		t.Fatalf("ParseDType: %v", err)
	}
	if dt.Kind != KindInt64 {
		t.Errorf("expected int to alias int64, got %v", dt.Kind)
	}
}

func TestParseDTypeUnknownErrors(t *testing.T) {
	if _, err := ParseDType("bogus"); err == nil {
		t.Fatal("expected an error for an unknown dtype")
	}
}

func newColumn(name string, kind DKind) Column {
	return Column{
		Name:  keyword.Of(name),
		Field: keyword.Of(FieldInfo{Type: DType{Kind: kind}}),
	}
}

func TestModelSchemaOrdersColumns(t *testing.T) {
	m := &Model{Columns: []Column{
		newColumn("id", KindInt64),
		newColumn("name", KindStr),
	}}
	sch, err := m.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if len(sch.Names) != 2 || sch.Names[0] != "id" || sch.Names[1] != "name" {
		t.Errorf("expected [id name], got %v", sch.Names)
	}
	if sch.Types["id"].Kind != KindInt64 {
		t.Errorf("expected id: int64, got %v", sch.Types["id"])
	}
}

func TestModelSchemaRejectsUnresolvedSymbol(t *testing.T) {
	m := &Model{Columns: []Column{
		{Name: keyword.Sym[string]("col_name"), Field: keyword.Of(FieldInfo{Type: DType{Kind: KindStr}})},
	}}
	if _, err := m.Schema(); err == nil {
		t.Fatal("expected an error for an unresolved column name symbol")
	}
}

func TestModelValidateRejectsUnresolvedSymbol(t *testing.T) {
	m := &Model{Columns: []Column{
		{Name: keyword.Sym[string]("col_name"), Field: keyword.Of(FieldInfo{Type: DType{Kind: KindStr}})},
	}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unresolved symbol")
	}
}

func TestModelProjectionExprsUsesCoalesce(t *testing.T) {
	m := &Model{Columns: []Column{newColumn("id", KindInt64)}}
	exprs, err := m.ProjectionExprs()
	if err != nil {
		t.Fatalf("ProjectionExprs: %v", err)
	}
	want := "coalesce(id, null::int64)"
	if len(exprs) != 1 || exprs[0] != want {
		t.Errorf("got %v, want [%q]", exprs, want)
	}
}

func TestModelEmplaceResolvesSymbols(t *testing.T) {
	m := &Model{Columns: []Column{
		{Name: keyword.Sym[string]("col_name"), Field: keyword.Of(FieldInfo{Type: DType{Kind: KindStr}})},
	}}
	if err := m.Emplace(map[string]any{"col_name": "id"}); err != nil {
		t.Fatalf("Emplace: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected Validate to pass after Emplace, got %v", err)
	}
	name, _ := m.Columns[0].Name.Value()
	if name != "id" {
		t.Errorf("expected resolved name %q, got %q", "id", name)
	}
}
