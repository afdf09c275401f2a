package sink

import (
	"context"
	"sync"

	"flowline/pkg/config"
	"flowline/pkg/engctx"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/pipelineframe"
	"flowline/pkg/stage"
)

// Group is the Sink Group: a labelled set of adapters that all consume
// the same input frame.
type Group struct {
	label      string
	input      string
	maxThreads int
	sinks      []Sink
}

// NewGroup builds a Group from an emplaced, validated SinkGroupConfig.
// ctx is forwarded to ParseSink so each per-entry sink config gets its
// own Keyword fields resolved too.
func NewGroup(label string, cfg config.SinkGroupConfig, ctx map[string]any, configDir string, connReg *config.ConnectionRegistry) (*Group, error) {
	input, ok := cfg.Input.Value()
	if !ok {
		return nil, errs.Config("sink.new_group", "%q: input symbol unresolved", label)
	}
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, one := range cfg.Sinks {
		s, err := ParseSink(label, one, ctx, configDir, connReg)
		if err != nil {
			return nil, errs.ConfigWrap("sink.new_group", err, "%q: sink %d", label, i)
		}
		sinks = append(sinks, s)
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 1
	}
	return &Group{label: label, input: input, maxThreads: maxThreads, sinks: sinks}, nil
}

func (g *Group) Label() string { return g.label }

// Produces is empty: sinks consume, they never register a new named
// frame.
func (g *Group) Produces() []string { return nil }

// write honours IsExecutingSink(): when false, the sink logs what it would
// write instead of performing the side effect.
func (g *Group) write(ctx context.Context, ec *engctx.Context, s Sink, t frame.Table) error {
	if !ec.IsExecutingSink() {
		ec.Logger().Infow("sink dry run, not writing", "stage", g.label, "sink", s.Label(), "rows", len(t.Rows))
		return nil
	}
	return s.Write(ctx, t)
}

// Linear reads the input frame once, runs every sink in order; a sink
// failure aborts the pipeline immediately.
func (g *Group) Linear(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	in, err := reg.Extract(g.input)
	if err != nil {
		return errs.ComponentWrap("sink.linear", err, "%q: input %q", g.label, g.input)
	}
	eager, err := in.Collect()
	if err != nil {
		return errs.TaskWrap("sink.linear", err, "%q: collect input", g.label)
	}
	for _, s := range g.sinks {
		if err := g.write(ctx, ec, s, eager.Table()); err != nil {
			return errs.ComponentWrap("sink.linear", err, "%q: sink %q", g.label, s.Label())
		}
	}
	return nil
}

// SyncExec takes one force_listen snapshot of the input and parallelizes
// the write across the configured thread budget; per-sink failures are
// logged, not propagated.
func (g *Group) SyncExec(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	listener, err := reg.GetListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("sink.sync_exec", err, "%q: input %q", g.label, g.input)
	}
	listener.ForceListen()
	in, err := reg.Extract(g.input)
	if err != nil {
		return errs.ComponentWrap("sink.sync_exec", err, "%q: input %q", g.label, g.input)
	}
	eager, err := in.Collect()
	if err != nil {
		ec.Logger().Errorw("sink collect failed", "stage", g.label, "error", err)
		return nil
	}

	chunks := stage.ContiguousChunks(len(g.sinks), g.maxThreads)
	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c stage.Chunk) {
			defer wg.Done()
			for i := c.Start; i < c.End; i++ {
				s := g.sinks[i]
				if err := g.write(ctx, ec, s, eager.Table()); err != nil {
					ec.Logger().Errorw("sink write failed", "stage", g.label, "sink", s.Label(), "error", err)
				}
			}
		}(c)
	}
	wg.Wait()
	return nil
}

// AsyncExec loops on the input's async channel; each Replace collects the
// lazy frame eagerly and runs all sinks concurrently. The stage exits once
// Kill is observed.
func (g *Group) AsyncExec(ctx context.Context, ec *engctx.Context) error {
	reg := ec.Results()
	listener, err := reg.GetAsyncListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("sink.async_exec", err, "%q: input %q", g.label, g.input)
	}
	for {
		u, err := listener.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.PipelineWrap("sink.async_exec", err, "%q", g.label)
		}
		if u.Kind == pipelineframe.Kill {
			return nil
		}
		in, err := reg.Extract(g.input)
		if err != nil {
			ec.Logger().Errorw("sink async extract failed", "stage", g.label, "error", err)
			continue
		}
		eager, err := in.Collect()
		if err != nil {
			ec.Logger().Errorw("sink async collect failed", "stage", g.label, "error", err)
			continue
		}

		var wg sync.WaitGroup
		for _, s := range g.sinks {
			wg.Add(1)
			go func(s Sink) {
				defer wg.Done()
				if err := g.write(ctx, ec, s, eager.Table()); err != nil {
					ec.Logger().Errorw("sink async write failed", "stage", g.label, "sink", s.Label(), "error", err)
				}
			}(s)
		}
		wg.Wait()
	}
}

var _ stage.Stage = (*Group)(nil)
