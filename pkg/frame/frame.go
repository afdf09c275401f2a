// Package frame provides the engine's Frame primitive: an opaque
// lazy/eager tabular value, treated as an external collaborator by the
// rest of the engine. This is a minimal in-memory columnar value
// sufficient to drive every transform/source/sink operation the engine
// needs: row-oriented storage (a slice of map[string]any per row) plus a
// schema and a lazy op queue so Collect()/Clone() have real
// lazy-vs-eager semantics to synchronize on.
package frame

import (
	"fmt"

	"flowline/pkg/model"
)

// Table is the eager, materialized form: an ordered column list plus rows.
type Table struct {
	Columns []string
	Schema  map[string]model.DType
	Rows    []map[string]any
}

// Clone deep-copies rows and the column/schema metadata.
func (t Table) Clone() Table {
	cols := append([]string(nil), t.Columns...)
	sch := make(map[string]model.DType, len(t.Schema))
	for k, v := range t.Schema {
		sch[k] = v
	}
	rows := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(map[string]any, len(r))
		for k, v := range r {
			nr[k] = v
		}
		rows[i] = nr
	}
	return Table{Columns: cols, Schema: sch, Rows: rows}
}

// Op is a pure function frame→frame; Frame's lazy form threads its table
// through a queue of these on Collect.
type Op func(Table) (Table, error)

// Frame is the opaque value the rest of the engine passes around. A lazy
// Frame defers application of its Ops; an eager Frame has none pending.
type Frame struct {
	lazy  bool
	table Table
	ops   []Op
}

// NewEager wraps an already-materialized Table.
func NewEager(t Table) Frame { return Frame{lazy: false, table: t} }

// NewLazy wraps a base Table as a lazy Frame with no pending ops yet.
func NewLazy(t Table) Frame { return Frame{lazy: true, table: t} }

// IsLazy reports the Frame's form.
func (f Frame) IsLazy() bool { return f.lazy }

// Then appends a pending operation, keeping the Frame lazy.
func (f Frame) Then(op Op) Frame {
	ops := append(append([]Op(nil), f.ops...), op)
	return Frame{lazy: true, table: f.table, ops: ops}
}

// Collect applies all pending ops and returns an eager Frame. Collecting
// an already-eager Frame is a no-op clone.
func (f Frame) Collect() (Frame, error) {
	t := f.table
	for i, op := range f.ops {
		var err error
		t, err = op(t)
		if err != nil {
			return Frame{}, fmt.Errorf("frame: collect op %d: %w", i, err)
		}
	}
	return Frame{lazy: false, table: t}, nil
}

// Clone deep-copies the Frame, preserving laziness and pending ops.
func (f Frame) Clone() Frame {
	return Frame{lazy: f.lazy, table: f.table.Clone(), ops: append([]Op(nil), f.ops...)}
}

// Table returns the frame's current table without resolving pending ops;
// callers that need the lazy form materialized should Collect first.
func (f Frame) Table() Table { return f.table }

// ColumnNames reports the frame's current column order (pre-collect for a
// lazy frame whose base table already carries a schema).
func (f Frame) ColumnNames() []string { return f.table.Columns }
