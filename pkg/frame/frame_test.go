package frame

import (
	"errors"
	"testing"
)

func sampleTable() Table {
	return Table{
		Columns: []string{"id"},
		Rows: []map[string]any{
			{"id": 1},
			{"id": 2},
		},
	}
}

func TestNewEagerIsNotLazy(t *testing.T) {
	f := NewEager(sampleTable())
	if f.IsLazy() {
		t.Error("expected NewEager to produce a non-lazy frame")
	}
}

func TestNewLazyIsLazy(t *testing.T) {
	f := NewLazy(sampleTable())
	if !f.IsLazy() {
		t.Error("expected NewLazy to produce a lazy frame")
	}
}

func TestThenQueuesWithoutApplying(t *testing.T) {
	called := false
	f := NewLazy(sampleTable()).Then(func(t Table) (Table, error) {
		called = true
		return t, nil
	})
	if called {
		t.Error("expected Then to defer the op, not apply it immediately")
	}
	if !f.IsLazy() {
		t.Error("expected the frame to remain lazy after Then")
	}
}

func TestCollectAppliesQueuedOpsInOrder(t *testing.T) {
	var order []int
	f := NewLazy(sampleTable()).
		Then(func(t Table) (Table, error) { order = append(order, 1); return t, nil }).
		Then(func(t Table) (Table, error) { order = append(order, 2); return t, nil })

	out, err := f.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.IsLazy() {
		t.Error("expected Collect to return an eager frame")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected ops applied in order, got %v", order)
	}
}

func TestCollectPropagatesOpError(t *testing.T) {
	sentinel := errors.New("boom")
	f := NewLazy(sampleTable()).Then(func(t Table) (Table, error) { return Table{}, sentinel })

	if _, err := f.Collect(); !errors.Is(err, sentinel) {
		t.Errorf("expected Collect to propagate the op error, got %v", err)
	}
}

func TestCloneDeepCopiesRows(t *testing.T) {
	orig := sampleTable()
	clone := orig.Clone()
	clone.Rows[0]["id"] = 999

	if orig.Rows[0]["id"] == 999 {
		t.Error("expected Clone to deep-copy rows, mutation leaked into original")
	}
}

func TestFrameCloneAndTableAccessors(t *testing.T) {
	f := NewLazy(sampleTable())
	clone := f.Clone()
	clone.Table().Rows[0]["id"] = 999

	if f.Table().Rows[0]["id"] == 999 {
		t.Error("expected Frame.Clone to deep-copy its table")
	}
	if len(f.ColumnNames()) != 1 || f.ColumnNames()[0] != "id" {
		t.Errorf("unexpected column names: %v", f.ColumnNames())
	}
}
