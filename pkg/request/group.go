package request

import (
	"context"
	"sync"

	"flowline/pkg/config"
	"flowline/pkg/engctx"
	"flowline/pkg/errs"
	"flowline/pkg/pipelineframe"
	"flowline/pkg/stage"
)

// Group is the Request Group: structurally identical to the Source
// Group, but reads its own declared input frame first and gates async
// execution on that input's Replace signal rather than the process-wide
// signal state.
type Group struct {
	label      string
	input      string
	maxThreads int
	requests   []requestSource
}

// NewGroup builds a Group from an emplaced, validated RequestGroupConfig.
// ctx is forwarded to ParseRequest so each per-entry request config gets
// its own Keyword fields resolved too.
func NewGroup(label string, cfg config.RequestGroupConfig, ctx map[string]any, modelReg *config.ModelRegistry) (*Group, error) {
	input, ok := cfg.Input.Value()
	if !ok {
		return nil, errs.Config("request.new_group", "%q: input symbol unresolved", label)
	}
	requests := make([]requestSource, 0, len(cfg.Requests))
	for i, one := range cfg.Requests {
		rs, err := ParseRequest(one, ctx, modelReg)
		if err != nil {
			return nil, errs.ConfigWrap("request.new_group", err, "%q: request %d", label, i)
		}
		requests = append(requests, rs)
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 1
	}
	return &Group{label: label, input: input, maxThreads: maxThreads, requests: requests}, nil
}

func (g *Group) Label() string { return g.label }

func (g *Group) Produces() []string {
	names := make([]string, len(g.requests))
	for i, r := range g.requests {
		names[i] = r.Output()
	}
	return names
}

// Linear runs every request in declared order and broadcasts each output;
// any request failure aborts the pipeline immediately.
func (g *Group) Linear(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	for _, r := range g.requests {
		f, err := r.fetch(ctx, reg)
		if err != nil {
			return errs.ComponentWrap("request.linear", err, "%q: output %q", g.label, r.Output())
		}
		bh, err := reg.GetBroadcast(r.Output(), g.label)
		if err != nil {
			return errs.ComponentWrap("request.linear", err, "%q: output %q", g.label, r.Output())
		}
		if err := bh.Broadcast(f); err != nil {
			return errs.ComponentWrap("request.linear", err, "%q: output %q", g.label, r.Output())
		}
	}
	return nil
}

// SyncExec takes one force_listen snapshot of the input, then parallelizes
// requests across the configured thread budget; per-request failures are
// logged, not propagated.
func (g *Group) SyncExec(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	listener, err := reg.GetListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("request.sync_exec", err, "%q: input %q", g.label, g.input)
	}
	listener.ForceListen()

	chunks := stage.ContiguousChunks(len(g.requests), g.maxThreads)
	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c stage.Chunk) {
			defer wg.Done()
			for i := c.Start; i < c.End; i++ {
				r := g.requests[i]
				f, err := r.fetch(ctx, reg)
				if err != nil {
					ec.Logger().Errorw("request fetch failed", "stage", g.label, "output", r.Output(), "error", err)
					continue
				}
				bh, err := reg.GetBroadcast(r.Output(), g.label)
				if err != nil {
					ec.Logger().Errorw("request broadcast setup failed", "stage", g.label, "output", r.Output(), "error", err)
					continue
				}
				if err := bh.Broadcast(f); err != nil {
					ec.Logger().Errorw("request broadcast failed", "stage", g.label, "output", r.Output(), "error", err)
				}
			}
		}(c)
	}
	wg.Wait()
	return nil
}

// AsyncExec listens for Replace on the group's own input, not on the
// process-wide scheduler signal; each Replace triggers all requests
// concurrently, each broadcasting its output on its own async channel.
// Kill emits Kill on every produced frame and exits.
func (g *Group) AsyncExec(ctx context.Context, ec *engctx.Context) error {
	reg := ec.Results()
	listener, err := reg.GetAsyncListener(g.input, g.label)
	if err != nil {
		return errs.ComponentWrap("request.async_exec", err, "%q: input %q", g.label, g.input)
	}

	broadcasters := make([]pipelineframe.AsyncBroadcastHandle, len(g.requests))
	for i, r := range g.requests {
		bh, err := reg.GetAsyncBroadcast(r.Output(), g.label)
		if err != nil {
			return errs.ComponentWrap("request.async_exec", err, "%q: output %q", g.label, r.Output())
		}
		broadcasters[i] = bh
	}

	for {
		u, err := listener.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.PipelineWrap("request.async_exec", err, "%q", g.label)
		}
		if u.Kind == pipelineframe.Kill {
			for _, bh := range broadcasters {
				bh.Kill()
			}
			return nil
		}

		var wg sync.WaitGroup
		for i, r := range g.requests {
			wg.Add(1)
			go func(i int, r requestSource) {
				defer wg.Done()
				f, err := r.fetch(ctx, reg)
				if err != nil {
					ec.Logger().Errorw("request async fetch failed", "stage", g.label, "output", r.Output(), "error", err)
					return
				}
				broadcasters[i].Broadcast(f)
			}(i, r)
		}
		wg.Wait()
	}
}

var _ stage.Stage = (*Group)(nil)
