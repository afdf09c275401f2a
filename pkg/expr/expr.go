// Package expr implements the column expression language referenced by
// transform steps: dotted paths into struct columns, bare column
// identifiers, and a closed set of map-shaped actions (format, concat,
// uint64/int64/str literals), parsing a one-entry action map into a
// typed operator much like a filter predicate parser would, but
// producing values instead of booleans.
package expr

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
	"flowline/pkg/model"
)

// Kind discriminates the parsed expression shapes.
type Kind int

const (
	KindColumn Kind = iota
	KindFormat
	KindConcat
	KindLiteral
)

type formatArgs struct {
	Template string   `yaml:"template"`
	Columns  []string `yaml:"columns"`
}

type concatArgs struct {
	Columns     []string `yaml:"columns"`
	Separator   string   `yaml:"separator"`
	IgnoreNulls bool     `yaml:"ignore_nulls"`
}

// Expr is a parsed column expression. The zero value is not valid; build
// one with Parse.
type Expr struct {
	kind Kind
	path []string

	format formatArgs
	concat concatArgs

	literal     any
	literalType model.DType
}

// Column builds a bare column-path expression directly from a dotted
// string, bypassing YAML parsing for callers (e.g. an HTTP source's
// url_column config field) that name a column outside a step's node tree.
func Column(path string) Expr {
	return Expr{kind: KindColumn, path: strings.Split(path, ".")}
}

// Parse decodes one expression node: a scalar dotted-path/identifier, or a
// one-entry map naming an action.
func Parse(node *yaml.Node) (Expr, error) {
	if node == nil {
		return Expr{}, errs.Task("expr.parse", "nil expression node")
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return Expr{kind: KindColumn, path: strings.Split(node.Value, ".")}, nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return Expr{}, errs.Task("expr.parse", "expected a one-entry action map")
		}
		action := node.Content[0].Value
		args := node.Content[1]
		switch action {
		case "format":
			var fa formatArgs
			if err := args.Decode(&fa); err != nil {
				return Expr{}, errs.TaskWrap("expr.parse", err, "format action")
			}
			return Expr{kind: KindFormat, format: fa}, nil
		case "concat":
			var ca concatArgs
			if err := args.Decode(&ca); err != nil {
				return Expr{}, errs.TaskWrap("expr.parse", err, "concat action")
			}
			return Expr{kind: KindConcat, concat: ca}, nil
		case "uint64":
			var v uint64
			if err := args.Decode(&v); err != nil {
				return Expr{}, errs.TaskWrap("expr.parse", err, "uint64 literal")
			}
			return Expr{kind: KindLiteral, literal: v, literalType: model.DType{Kind: model.KindUint64}}, nil
		case "int64":
			var v int64
			if err := args.Decode(&v); err != nil {
				return Expr{}, errs.TaskWrap("expr.parse", err, "int64 literal")
			}
			return Expr{kind: KindLiteral, literal: v, literalType: model.DType{Kind: model.KindInt64}}, nil
		case "str":
			var v string
			if err := args.Decode(&v); err != nil {
				return Expr{}, errs.TaskWrap("expr.parse", err, "str literal")
			}
			return Expr{kind: KindLiteral, literal: v, literalType: model.DType{Kind: model.KindStr}}, nil
		default:
			return Expr{}, errs.Task("expr.parse", "unknown action %q", action)
		}
	default:
		return Expr{}, errs.Task("expr.parse", "unsupported expression shape")
	}
}

// Eval evaluates the expression against one row.
func (e Expr) Eval(row map[string]any) (any, error) {
	switch e.kind {
	case KindColumn:
		return evalColumn(e.path, row)
	case KindFormat:
		return evalFormat(e.format, row), nil
	case KindConcat:
		return evalConcat(e.concat, row)
	case KindLiteral:
		return e.literal, nil
	default:
		return nil, errs.Task("expr.eval", "unknown expression kind")
	}
}

// Type resolves the expression's declared result type given the input
// schema; select and with_columns record it as the output column's
// schema type. Values themselves are not converted to that type.
func (e Expr) Type(schema map[string]model.DType) model.DType {
	switch e.kind {
	case KindColumn:
		if dt, ok := schema[e.path[0]]; ok {
			return dt
		}
		return model.DType{Kind: model.KindStr}
	case KindFormat, KindConcat:
		return model.DType{Kind: model.KindStr}
	case KindLiteral:
		return e.literalType
	default:
		return model.DType{Kind: model.KindStr}
	}
}

// ColumnPath reports the dotted path for a bare column reference, or nil
// for action expressions.
func (e Expr) ColumnPath() []string {
	if e.kind != KindColumn {
		return nil
	}
	return append([]string(nil), e.path...)
}

func evalColumn(path []string, row map[string]any) (any, error) {
	if len(path) == 0 {
		return nil, errs.Task("expr.column", "empty path")
	}
	cur, ok := row[path[0]]
	if !ok {
		return nil, nil
	}
	for _, seg := range path[1:] {
		if cur == nil {
			return nil, nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, errs.Task("expr.column", "segment %q: value is not a struct", seg)
		}
		cur = m[seg]
	}
	return cur, nil
}

func evalFormat(f formatArgs, row map[string]any) any {
	args := make([]any, len(f.Columns))
	for i, col := range f.Columns {
		args[i] = row[col]
	}
	return fmt.Sprintf(f.Template, args...)
}

func evalConcat(c concatArgs, row map[string]any) (any, error) {
	var parts []string
	for _, col := range c.Columns {
		v, ok := row[col]
		if !ok || v == nil {
			if c.IgnoreNulls {
				continue
			}
			parts = append(parts, "")
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	if len(parts) == 0 {
		return nil, errs.Task("expr.concat", "no columns to concat")
	}
	return strings.Join(parts, c.Separator), nil
}
