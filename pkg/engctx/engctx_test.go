package engctx

import (
	"context"
	"errors"
	"testing"

	"flowline/pkg/env"
	"flowline/pkg/errs"
	"flowline/pkg/pipelineframe"
	"flowline/pkg/registry"
	"flowline/pkg/signal"
)

type nopLogger struct{}

func (nopLogger) Debugw(string, ...any) {}
func (nopLogger) Infow(string, ...any)  {}
func (nopLogger) Warnw(string, ...any)  {}
func (nopLogger) Errorw(string, ...any) {}

func newTestContext() *Context {
	return New(registry.WithResults(nil, 1), signal.New(), env.New(), nopLogger{}, true, false)
}

func TestSetPipelineTwiceIsPipelineError(t *testing.T) {
	c := newTestContext()
	if err := c.SetPipeline("p1"); err != nil {
		t.Fatalf("first SetPipeline: %v", err)
	}
	err := c.SetPipeline("p2")
	if err == nil {
		t.Fatal("expected error on second SetPipeline")
	}
	if !errors.Is(err, errs.SentinelPipeline) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	label, ok := c.PipelineLabel()
	if !ok || label != "p1" {
		t.Fatalf("expected bound label %q, got %q (ok=%v)", "p1", label, ok)
	}
}

func TestIsExecutingSinkAndConsoleFlags(t *testing.T) {
	c := New(registry.WithResults(nil, 1), signal.New(), env.New(), nopLogger{}, false, true)
	if c.IsExecutingSink() {
		t.Fatal("expected IsExecutingSink false")
	}
	if !c.IsConsole() {
		t.Fatal("expected IsConsole true")
	}
}

func TestSignalPropagatorsAreIndependent(t *testing.T) {
	c := newTestContext()
	p1 := c.SignalPropagator()
	p2 := c.SignalPropagator()
	defer p1.Close()
	defer p2.Close()
	c.SignalState().SendReplace()

	ctx := context.Background()
	u1, err := p1.Recv(ctx)
	if err != nil {
		t.Fatalf("p1.Recv: %v", err)
	}
	if u1.Kind != pipelineframe.Replace {
		t.Fatalf("expected Replace, got %v", u1.Kind)
	}
	u2, err := p2.Recv(ctx)
	if err != nil {
		t.Fatalf("p2.Recv: %v", err)
	}
	if u2.Kind != pipelineframe.Replace {
		t.Fatalf("expected Replace, got %v", u2.Kind)
	}
}
