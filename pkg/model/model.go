// Package model implements the Model entity: an ordered list of
// (column, field info) pairs that yields a schema and a canonical
// projection expression list coalescing missing columns to typed null.
package model

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
	"flowline/pkg/keyword"
)

// DType enumerates the primitive and composite column types. Short-form
// strings round-trip through ParseDType/String.
type DType struct {
	Kind DKind
	Elem *DType // Kind == KindList: element type
	Tz   string // Kind == KindDatetime: "utc" or "nyt" (naive-yet-typed local)
}

type DKind int

const (
	KindBool DKind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat
	KindDouble
	KindStr
	KindTime
	KindDate
	KindDatetime
	KindList
	KindStruct
)

var kindNames = map[DKind]string{
	KindBool: "bool", KindInt8: "int8", KindInt16: "int16", KindInt32: "int32",
	KindInt64: "int64", KindUint8: "uint8", KindUint16: "uint16", KindUint32: "uint32",
	KindUint64: "uint64", KindFloat: "float", KindDouble: "double", KindStr: "str",
	KindTime: "time", KindDate: "date", KindDatetime: "datetime", KindList: "list",
	KindStruct: "struct",
}

var nameKinds = func() map[string]DKind {
	m := make(map[string]DKind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// String renders the short form, e.g. "int64", "datetime_utc", "list[str]".
func (d DType) String() string {
	switch d.Kind {
	case KindDatetime:
		return "datetime_" + d.Tz
	case KindList:
		if d.Elem == nil {
			return "list[*]"
		}
		return "list[" + d.Elem.String() + "]"
	case KindStruct:
		return "struct[*]"
	default:
		return kindNames[d.Kind]
	}
}

// ParseDType parses the short form produced by String.
func ParseDType(s string) (DType, error) {
	switch {
	case s == "datetime_utc":
		return DType{Kind: KindDatetime, Tz: "utc"}, nil
	case s == "datetime_nyt":
		return DType{Kind: KindDatetime, Tz: "nyt"}, nil
	case s == "int":
		return DType{Kind: KindInt64}, nil
	case s == "list[*]":
		return DType{Kind: KindList}, nil
	case s == "struct[*]":
		return DType{Kind: KindStruct}, nil
	case len(s) > 5 && s[:5] == "list[" && s[len(s)-1] == ']':
		inner, err := ParseDType(s[5 : len(s)-1])
		if err != nil {
			return DType{}, err
		}
		return DType{Kind: KindList, Elem: &inner}, nil
	}
	if k, ok := nameKinds[s]; ok {
		return DType{Kind: k}, nil
	}
	return DType{}, errs.Config("model.dtype", "unknown dtype %q", s)
}

// Constraint names the optional field constraints a FieldInfo may carry.
type Constraint string

const (
	ConstraintPrimary    Constraint = "primary"
	ConstraintUnique     Constraint = "unique"
	ConstraintForeign    Constraint = "foreign"
	ConstraintNotNull    Constraint = "not_null"
)

// FieldInfo carries a column's data type and optional constraints.
type FieldInfo struct {
	Type        DType
	Constraints []Constraint
}

// UnmarshalYAML accepts either the dtype short form directly ("int64")
// or a mapping `{dtype: ..., constraints: [...]}`.
func (f *FieldInfo) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		dt, err := ParseDType(node.Value)
		if err != nil {
			return err
		}
		f.Type = dt
		return nil
	}
	var structured struct {
		Dtype       string       `yaml:"dtype"`
		Constraints []Constraint `yaml:"constraints"`
	}
	if err := node.Decode(&structured); err != nil {
		return err
	}
	dt, err := ParseDType(structured.Dtype)
	if err != nil {
		return err
	}
	f.Type = dt
	f.Constraints = structured.Constraints
	return nil
}

// MarshalYAML round-trips the short form when there are no constraints,
// else the structured map form.
func (f FieldInfo) MarshalYAML() (any, error) {
	if len(f.Constraints) == 0 {
		return f.Type.String(), nil
	}
	return map[string]any{"dtype": f.Type.String(), "constraints": f.Constraints}, nil
}

// Column pairs a column-name keyword with a field-info keyword: an
// ordered (column-name-keyword, field-info-keyword) pair.
type Column struct {
	Name  keyword.Keyword[string]
	Field keyword.Keyword[FieldInfo]
}

// Model is the ordered column-schema specification.
type Model struct {
	Label   string
	Columns []Column
}

// Schema is the ordered name→type map a Model yields.
type Schema struct {
	Names []string
	Types map[string]DType
}

// Emplace resolves every Symbol in the model's columns against ctx.
func (m *Model) Emplace(ctx map[string]any) error {
	for i, c := range m.Columns {
		name, err := c.Name.Emplace(ctx)
		if err != nil {
			return errs.ConfigWrap("model.emplace", err, "column %d name", i)
		}
		field, err := c.Field.Emplace(ctx)
		if err != nil {
			return errs.ConfigWrap("model.emplace", err, "column %d field", i)
		}
		m.Columns[i].Name = name
		m.Columns[i].Field = field
	}
	return nil
}

// Validate rejects any column whose name or field keyword is still an
// unresolved symbol.
func (m *Model) Validate() error {
	for i, c := range m.Columns {
		if err := c.Name.Validate(); err != nil {
			return errs.ConfigWrap("model.validate", err, "column %d name", i)
		}
		if err := c.Field.Validate(); err != nil {
			return errs.ConfigWrap("model.validate", err, "column %d field", i)
		}
	}
	return nil
}

// Schema materializes the ordered name→type map.
func (m *Model) Schema() (Schema, error) {
	s := Schema{Names: make([]string, 0, len(m.Columns)), Types: make(map[string]DType, len(m.Columns))}
	for _, c := range m.Columns {
		name, ok := c.Name.Value()
		if !ok {
			return Schema{}, errs.Component("model.schema", "column name unresolved")
		}
		field, ok := c.Field.Value()
		if !ok {
			return Schema{}, errs.Component("model.schema", "column field unresolved")
		}
		s.Names = append(s.Names, name)
		s.Types[name] = field.Type
	}
	return s, nil
}

// ProjectionExprs returns, for every column, an expression string of the
// canonical "coalesce(col, null::dtype)" shape. pkg/expr has no coalesce
// form, so a transform's select step does not parse these strings.
func (m *Model) ProjectionExprs() ([]string, error) {
	sch, err := m.Schema()
	if err != nil {
		return nil, err
	}
	exprs := make([]string, 0, len(sch.Names))
	for _, name := range sch.Names {
		exprs = append(exprs, fmt.Sprintf("coalesce(%s, null::%s)", name, sch.Types[name].String()))
	}
	return exprs, nil
}
