// Package transform implements the Transform Group:
// select/with_columns/join/drop/sql/unnest/time/uniform_id_type steps
// threaded over one input frame to produce one output frame, as
// whole-Table pure functions rather than record-at-a-time processing.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"flowline/pkg/errs"
	"flowline/pkg/expr"
	"flowline/pkg/frame"
	"flowline/pkg/model"
	"flowline/pkg/registry"
)

// Step is one pure frame-transforming operation. join additionally reads
// other named frames out of reg; every other step ignores reg.
type Step interface {
	Apply(in frame.Table, reg *registry.Registry) (frame.Table, error)
}

// namedExpr is an alias: expression pair, order-preserved by the slice
// it's stored in (select/with_columns steps decode into these directly
// off the ordered YAML mapping, the same technique model_config.go uses).
type namedExpr struct {
	Alias string
	Expr  expr.Expr
}

// --- select ---

type selectStep struct {
	pairs []namedExpr
}

func (s selectStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	out := frame.Table{
		Columns: make([]string, 0, len(s.pairs)),
		Schema:  make(map[string]model.DType, len(s.pairs)),
		Rows:    make([]map[string]any, len(in.Rows)),
	}
	for _, p := range s.pairs {
		out.Columns = append(out.Columns, p.Alias)
		out.Schema[p.Alias] = p.Expr.Type(in.Schema)
	}
	for i, row := range in.Rows {
		nr := make(map[string]any, len(s.pairs))
		for _, p := range s.pairs {
			v, err := p.Expr.Eval(row)
			if err != nil {
				return frame.Table{}, errs.TaskWrap("transform.select", err, "alias %q", p.Alias)
			}
			nr[p.Alias] = v
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// --- with_columns ---

type withColumnsStep struct {
	pairs []namedExpr
}

func (s withColumnsStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	existing := make(map[string]bool, len(in.Columns))
	for _, c := range in.Columns {
		existing[c] = true
	}
	out := in.Clone()
	for _, p := range s.pairs {
		if !existing[p.Alias] {
			out.Columns = append(out.Columns, p.Alias)
			existing[p.Alias] = true
		}
		out.Schema[p.Alias] = p.Expr.Type(in.Schema)
	}
	for i, row := range in.Rows {
		nr := out.Rows[i]
		for _, p := range s.pairs {
			v, err := p.Expr.Eval(row)
			if err != nil {
				return frame.Table{}, errs.TaskWrap("transform.with_columns", err, "alias %q", p.Alias)
			}
			if v == nil {
				// coalesce(expression, existing_column, null)
				if existingVal, ok := row[p.Alias]; ok {
					v = existingVal
				}
			}
			nr[p.Alias] = v
		}
	}
	return out, nil
}

// --- drop ---

type dropStep struct {
	columns []string
}

func (s dropStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	drop := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		drop[c] = true
	}
	out := frame.Table{Schema: make(map[string]model.DType, len(in.Schema))}
	for _, c := range in.Columns {
		if drop[c] {
			continue
		}
		out.Columns = append(out.Columns, c)
		if dt, ok := in.Schema[c]; ok {
			out.Schema[c] = dt
		}
	}
	out.Rows = make([]map[string]any, len(in.Rows))
	for i, row := range in.Rows {
		nr := make(map[string]any, len(out.Columns))
		for _, c := range out.Columns {
			nr[c] = row[c]
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// --- join ---

type joinKey struct {
	Left, Right string
}

type joinHow string

const (
	joinLeft  joinHow = "left"
	joinRight joinHow = "right"
	joinInner joinHow = "inner"
	joinFull  joinHow = "full"
	joinCross joinHow = "cross"
)

type joinStep struct {
	right       string
	rightSelect []namedExpr
	prefix      string
	on          []joinKey
	how         joinHow
}

func (s joinStep) Apply(in frame.Table, reg *registry.Registry) (frame.Table, error) {
	if reg == nil {
		return frame.Table{}, errs.Component("transform.join", "no registry available to read right frame %q", s.right)
	}
	rf, err := reg.ExtractClone(s.right)
	if err != nil {
		return frame.Table{}, errs.ComponentWrap("transform.join", err, "right frame %q", s.right)
	}
	right := rf.Table()
	if len(s.rightSelect) > 0 {
		right, err = selectStep{pairs: s.rightSelect}.Apply(right, reg)
		if err != nil {
			return frame.Table{}, errs.TaskWrap("transform.join", err, "right_select")
		}
	}
	right = applyJoinPrefix(right, s.prefix, s.on)

	return joinTables(in, right, s.on, s.how)
}

func applyJoinPrefix(t frame.Table, prefix string, on []joinKey) frame.Table {
	if prefix == "" {
		return t
	}
	keyCols := make(map[string]bool, len(on))
	for _, k := range on {
		keyCols[k.Right] = true
	}
	out := frame.Table{Schema: make(map[string]model.DType, len(t.Schema))}
	rename := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		name := c
		if !keyCols[c] {
			name = prefix + c
		}
		rename[c] = name
		out.Columns = append(out.Columns, name)
		if dt, ok := t.Schema[c]; ok {
			out.Schema[name] = dt
		}
	}
	out.Rows = make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		nr := make(map[string]any, len(row))
		for k, v := range row {
			nr[rename[k]] = v
		}
		out.Rows[i] = nr
	}
	return out
}

func joinTables(left, right frame.Table, on []joinKey, how joinHow) (frame.Table, error) {
	if len(on) == 0 && how != joinCross {
		return frame.Table{}, errs.Task("transform.join", "no join keys declared")
	}

	out := frame.Table{Schema: make(map[string]model.DType, len(left.Schema)+len(right.Schema))}
	out.Columns = append(out.Columns, left.Columns...)
	rightKeySet := make(map[string]bool, len(on))
	for _, k := range on {
		rightKeySet[k.Right] = true
	}
	for c := range left.Schema {
		out.Schema[c] = left.Schema[c]
	}
	for _, c := range right.Columns {
		if rightKeySet[c] {
			continue // superseded: left retains the key column
		}
		out.Columns = append(out.Columns, c)
		if dt, ok := right.Schema[c]; ok {
			out.Schema[c] = dt
		}
	}

	matches := func(l, r map[string]any) bool {
		for _, k := range on {
			if fmt.Sprintf("%v", l[k.Left]) != fmt.Sprintf("%v", r[k.Right]) {
				return false
			}
		}
		return true
	}

	mergeRow := func(l, r map[string]any) map[string]any {
		nr := make(map[string]any, len(out.Columns))
		for _, c := range left.Columns {
			nr[c] = l[c]
		}
		for _, c := range right.Columns {
			if rightKeySet[c] {
				continue
			}
			if r != nil {
				nr[c] = r[c]
			} else {
				nr[c] = nil
			}
		}
		return nr
	}

	switch how {
	case joinCross:
		for _, l := range left.Rows {
			for _, r := range right.Rows {
				out.Rows = append(out.Rows, mergeRow(l, r))
			}
		}
	case joinInner, joinLeft, joinFull, joinRight:
		rightUsed := make([]bool, len(right.Rows))
		for _, l := range left.Rows {
			found := false
			for ri, r := range right.Rows {
				if matches(l, r) {
					out.Rows = append(out.Rows, mergeRow(l, r))
					rightUsed[ri] = true
					found = true
				}
			}
			if !found && (how == joinLeft || how == joinFull) {
				out.Rows = append(out.Rows, mergeRow(l, nil))
			}
		}
		if how == joinFull || how == joinRight {
			for ri, r := range right.Rows {
				if rightUsed[ri] {
					continue
				}
				out.Rows = append(out.Rows, mergeRow(nil, r))
			}
		}
	default:
		return frame.Table{}, errs.Task("transform.join", "unknown how %q", how)
	}
	return out, nil
}

// --- sql ---

// sqlStep supports a deliberately narrow subset of SQL: a single
// `SELECT <col [AS alias], ...> FROM self [WHERE <col> = <literal>]`
// statement evaluated against the input frame under the alias "self". No
// library in the example pack offers an embedded SQL engine over ad hoc
// in-memory frames (the pack's SQL drivers all target live database
// connections), so this subset is hand-rolled on the standard library.
type sqlStep struct {
	columns []sqlColumn
	where   *sqlWhere
}

type sqlColumn struct {
	Name, Alias string
}

type sqlWhere struct {
	Column string
	Value  string
}

func (s sqlStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	cols := s.columns
	if len(cols) == 1 && cols[0].Name == "*" {
		cols = nil
		for _, c := range in.Columns {
			cols = append(cols, sqlColumn{Name: c, Alias: c})
		}
	}
	out := frame.Table{Schema: make(map[string]model.DType, len(cols))}
	for _, c := range cols {
		out.Columns = append(out.Columns, c.Alias)
		if dt, ok := in.Schema[c.Name]; ok {
			out.Schema[c.Alias] = dt
		}
	}
	for _, row := range in.Rows {
		if s.where != nil {
			if fmt.Sprintf("%v", row[s.where.Column]) != s.where.Value {
				continue
			}
		}
		nr := make(map[string]any, len(cols))
		for _, c := range cols {
			nr[c.Alias] = row[c.Name]
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}

// --- unnest ---

type unnestListStep struct{ column string }

func (s unnestListStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	out := frame.Table{Columns: in.Columns, Schema: in.Schema}
	for _, row := range in.Rows {
		items, ok := row[s.column].([]any)
		if !ok || len(items) == 0 {
			nr := cloneRow(row)
			nr[s.column] = nil
			out.Rows = append(out.Rows, nr)
			continue
		}
		for _, item := range items {
			nr := cloneRow(row)
			nr[s.column] = item
			out.Rows = append(out.Rows, nr)
		}
	}
	return out, nil
}

type unnestStructStep struct{ column string }

func (s unnestStructStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	fieldSet := map[string]bool{}
	for _, row := range in.Rows {
		if m, ok := row[s.column].(map[string]any); ok {
			for k := range m {
				fieldSet[k] = true
			}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	out := frame.Table{Schema: make(map[string]model.DType, len(in.Schema)+len(fields))}
	for _, c := range in.Columns {
		if c == s.column {
			continue
		}
		out.Columns = append(out.Columns, c)
		if dt, ok := in.Schema[c]; ok {
			out.Schema[c] = dt
		}
	}
	out.Columns = append(out.Columns, fields...)
	for _, row := range in.Rows {
		nr := cloneRow(row)
		delete(nr, s.column)
		if m, ok := row[s.column].(map[string]any); ok {
			for _, f := range fields {
				nr[f] = m[f]
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}

type unnestListOfStructStep struct{ column string }

func (s unnestListOfStructStep) Apply(in frame.Table, reg *registry.Registry) (frame.Table, error) {
	exploded, err := (unnestListStep{column: s.column}).Apply(in, reg)
	if err != nil {
		return frame.Table{}, err
	}
	return (unnestStructStep{column: s.column}).Apply(exploded, reg)
}

func cloneRow(row map[string]any) map[string]any {
	nr := make(map[string]any, len(row))
	for k, v := range row {
		nr[k] = v
	}
	return nr
}

// --- time ---

type timeStep struct {
	include []string
	into    string
}

func (s timeStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	// the "%M:%S" form is pre-prefixed with "00:" and parsed as "%H:%M:%S".
	layout := s.into
	prefix := ""
	if layout == "%M:%S" {
		layout = "%H:%M:%S"
		prefix = "00:"
	}
	goLayout := strftimeToGo(layout)

	out := in.Clone()
	for i, row := range in.Rows {
		for _, col := range s.include {
			sv, ok := row[col].(string)
			if !ok {
				continue
			}
			t, err := time.Parse(goLayout, prefix+sv)
			if err != nil {
				return frame.Table{}, errs.TaskWrap("transform.time", err, "column %q value %q", col, sv)
			}
			out.Rows[i][col] = t.Hour()*3600 + t.Minute()*60 + t.Second()
		}
	}
	for _, c := range s.include {
		out.Schema[c] = model.DType{Kind: model.KindTime}
	}
	return out, nil
}

// strftimeToGo converts the small set of strftime directives this engine
// recognizes (%H, %M, %S) into Go's reference-time layout.
func strftimeToGo(layout string) string {
	r := strings.NewReplacer("%H", "15", "%M", "04", "%S", "05")
	return r.Replace(layout)
}

// --- uniform_id_type ---

type uniformIDTypeStep struct {
	columns []string
	to      string // "str" or "int64"
}

func (s uniformIDTypeStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	out := in.Clone()
	for i, row := range in.Rows {
		for _, col := range s.columns {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			switch s.to {
			case "str":
				out.Rows[i][col] = fmt.Sprintf("%v", v)
			case "int64":
				var n int64
				if _, err := fmt.Sscanf(fmt.Sprintf("%v", v), "%d", &n); err != nil {
					return frame.Table{}, errs.TaskWrap("transform.uniform_id_type", err, "column %q value %v", col, v)
				}
				out.Rows[i][col] = n
			default:
				return frame.Table{}, errs.Task("transform.uniform_id_type", "unknown target type %q", s.to)
			}
		}
	}
	for _, col := range s.columns {
		if s.to == "str" {
			out.Schema[col] = model.DType{Kind: model.KindStr}
		} else {
			out.Schema[col] = model.DType{Kind: model.KindInt64}
		}
	}
	return out, nil
}
