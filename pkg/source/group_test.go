package source

import (
	"context"
	"errors"
	"testing"

	"flowline/pkg/engctx"
	"flowline/pkg/env"
	"flowline/pkg/frame"
	"flowline/pkg/registry"
	"flowline/pkg/signal"
)

var errTest = errors.New("stub source failure")

type noopLogger struct{}

func (noopLogger) Debugw(string, ...any) {}
func (noopLogger) Infow(string, ...any)  {}
func (noopLogger) Warnw(string, ...any)  {}
func (noopLogger) Errorw(string, ...any) {}

// stubSource is a fixed-row Source used to drive the Group without any
// real file/network/DB backing.
type stubSource struct {
	output string
	rows   []map[string]any
	err    error
}

func (s *stubSource) Output() string { return s.output }
func (s *stubSource) Fetch(ctx context.Context) (frame.Frame, error) {
	if s.err != nil {
		return frame.Frame{}, s.err
	}
	cols, schema := schemaFromRows(s.rows)
	return frame.NewLazy(frame.Table{Columns: cols, Schema: schema, Rows: s.rows}), nil
}

func newTestContext(names []string) *engctx.Context {
	reg := registry.WithResults(names, 4)
	return engctx.New(reg, signal.New(), env.New(), noopLogger{}, true, false)
}

func TestGroupLinearBroadcastsEachSource(t *testing.T) {
	a := &stubSource{output: "a", rows: []map[string]any{{"id": 1}}}
	b := &stubSource{output: "b", rows: []map[string]any{{"id": 2}}}
	g := &Group{label: "g", maxThreads: 1, sources: []groupSource{plainSource{a}, plainSource{b}}}

	ec := newTestContext(g.Produces())
	if err := g.Linear(ec); err != nil {
		t.Fatalf("Linear: %v", err)
	}

	out, err := ec.Results().Extract("a")
	if err != nil {
		t.Fatalf("extract a: %v", err)
	}
	if len(out.Table().Rows) != 1 {
		t.Errorf("expected 1 row in a, got %d", len(out.Table().Rows))
	}

	out, err = ec.Results().Extract("b")
	if err != nil {
		t.Fatalf("extract b: %v", err)
	}
	if len(out.Table().Rows) != 1 {
		t.Errorf("expected 1 row in b, got %d", len(out.Table().Rows))
	}
}

func TestGroupLinearAbortsOnFirstError(t *testing.T) {
	a := &stubSource{output: "a", err: errTest}
	b := &stubSource{output: "b", rows: []map[string]any{{"id": 2}}}
	g := &Group{label: "g", maxThreads: 1, sources: []groupSource{plainSource{a}, plainSource{b}}}

	ec := newTestContext(g.Produces())
	if err := g.Linear(ec); err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestGroupSyncExecLogsAndContinues(t *testing.T) {
	a := &stubSource{output: "a", err: errTest}
	b := &stubSource{output: "b", rows: []map[string]any{{"id": 2}}}
	g := &Group{label: "g", maxThreads: 2, sources: []groupSource{plainSource{a}, plainSource{b}}}

	ec := newTestContext(g.Produces())
	if err := g.SyncExec(ec); err != nil {
		t.Fatalf("SyncExec should not propagate per-source errors, got %v", err)
	}

	out, err := ec.Results().Extract("b")
	if err != nil {
		t.Fatalf("extract b: %v", err)
	}
	if len(out.Table().Rows) != 1 {
		t.Errorf("expected 1 row in b, got %d", len(out.Table().Rows))
	}
}

func TestGroupProduces(t *testing.T) {
	a := &stubSource{output: "a"}
	b := &stubSource{output: "b"}
	g := &Group{label: "g", maxThreads: 1, sources: []groupSource{plainSource{a}, plainSource{b}}}
	got := g.Produces()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}
