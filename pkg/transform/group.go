package transform

import (
	"context"

	"flowline/pkg/config"
	"flowline/pkg/engctx"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/pipelineframe"
)

// Group is the Transform Group: one input frame threaded through an
// ordered step chain to produce one output frame.
type Group struct {
	label  string
	input  string
	output string
	steps  []Step
}

// NewGroup builds a Group from an emplaced, validated TransformGroupConfig.
// ctx is forwarded to ParseStep so each step's own Keyword arguments
// (drop's columns, join's right frame, sql's query text) get resolved too.
func NewGroup(label string, cfg config.TransformGroupConfig, ctx map[string]any) (*Group, error) {
	input, ok := cfg.Input.Value()
	if !ok {
		return nil, errs.Config("transform.new_group", "%q: input symbol unresolved", label)
	}
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("transform.new_group", "%q: output symbol unresolved", label)
	}
	steps := make([]Step, 0, len(cfg.Steps))
	for i, one := range cfg.Steps {
		st, err := ParseStep(one, ctx)
		if err != nil {
			return nil, errs.ConfigWrap("transform.new_group", err, "%q: step %d", label, i)
		}
		steps = append(steps, st)
	}
	return &Group{label: label, input: input, output: output, steps: steps}, nil
}

func (g *Group) Label() string      { return g.label }
func (g *Group) Produces() []string { return []string{g.output} }

func (g *Group) run(ec *engctx.Context, t frame.Table) (frame.Table, error) {
	reg := ec.Results()
	var err error
	for i, st := range g.steps {
		t, err = st.Apply(t, reg)
		if err != nil {
			return frame.Table{}, errs.TaskWrap("transform.run", err, "%q: step %d", g.label, i)
		}
	}
	return t, nil
}

// Linear reads the input frame, threads it through the step chain, and
// broadcasts the result; any step failure aborts the pipeline
// immediately.
func (g *Group) Linear(ec *engctx.Context) error {
	reg := ec.Results()
	in, err := reg.Extract(g.input)
	if err != nil {
		return errs.ComponentWrap("transform.linear", err, "%q: input %q", g.label, g.input)
	}
	out, err := g.run(ec, in.Table())
	if err != nil {
		return err
	}
	bh, err := reg.GetBroadcast(g.output, g.label)
	if err != nil {
		return errs.ComponentWrap("transform.linear", err, "%q: output %q", g.label, g.output)
	}
	return bh.Broadcast(frame.NewEager(out))
}

// SyncExec takes one force_listen snapshot of the input and runs the step
// chain once; a step failure is logged, not propagated.
func (g *Group) SyncExec(ec *engctx.Context) error {
	reg := ec.Results()
	listener, err := reg.GetListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("transform.sync_exec", err, "%q: input %q", g.label, g.input)
	}
	listener.ForceListen()
	in, err := reg.Extract(g.input)
	if err != nil {
		return errs.ComponentWrap("transform.sync_exec", err, "%q: input %q", g.label, g.input)
	}
	out, err := g.run(ec, in.Table())
	if err != nil {
		ec.Logger().Errorw("transform step failed", "stage", g.label, "error", err)
		return nil
	}
	bh, err := reg.GetBroadcast(g.output, g.label)
	if err != nil {
		ec.Logger().Errorw("transform broadcast setup failed", "stage", g.label, "error", err)
		return nil
	}
	if err := bh.Broadcast(frame.NewEager(out)); err != nil {
		ec.Logger().Errorw("transform broadcast failed", "stage", g.label, "error", err)
	}
	return nil
}

// AsyncExec listens on the input's async channel; each Replace runs the
// step chain and broadcasts on the output's async channel. A Kill retires
// the output frame and the loop exits.
func (g *Group) AsyncExec(ctx context.Context, ec *engctx.Context) error {
	reg := ec.Results()
	listener, err := reg.GetAsyncListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("transform.async_exec", err, "%q: input %q", g.label, g.input)
	}
	broadcaster, err := reg.GetAsyncBroadcast(g.output, g.label)
	if err != nil {
		return errs.ComponentWrap("transform.async_exec", err, "%q: output %q", g.label, g.output)
	}
	for {
		u, err := listener.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.PipelineWrap("transform.async_exec", err, "%q", g.label)
		}
		if u.Kind == pipelineframe.Kill {
			broadcaster.Kill()
			return nil
		}
		in, err := reg.Extract(g.input)
		if err != nil {
			ec.Logger().Errorw("transform async extract failed", "stage", g.label, "error", err)
			continue
		}
		out, err := g.run(ec, in.Table())
		if err != nil {
			ec.Logger().Errorw("transform async step failed", "stage", g.label, "error", err)
			continue
		}
		broadcaster.Broadcast(frame.NewEager(out))
	}
}
