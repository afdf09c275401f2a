package source

import (
	"context"
	"sync"

	"flowline/pkg/config"
	"flowline/pkg/engctx"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/pipelineframe"
	"flowline/pkg/registry"
	"flowline/pkg/stage"
)

// groupSource is the internal contract every Source Group member
// implements. Plain adapters (csv/json/sql/mongo/elasticsearch/kafka)
// only need fetch(ctx); http_batch and http_single additionally read
// another named frame out of the Results Registry first, so fetch here
// takes the registry too and lets each adapter decide what, if
// anything, it needs from it.
type groupSource interface {
	Output() string
	fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error)
}

// plainSource adapts a Source (fetch(ctx) only) to groupSource.
type plainSource struct{ s Source }

func (p plainSource) Output() string { return p.s.Output() }
func (p plainSource) fetch(ctx context.Context, _ *registry.Registry) (frame.Frame, error) {
	return p.s.Fetch(ctx)
}

// batchSource adapts an HTTPBatchSource: it reads its URL column from an
// input frame the Group extracts from the registry on its behalf.
type batchSource struct{ s *HTTPBatchSource }

func (b batchSource) Output() string { return b.s.Output() }
func (b batchSource) fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error) {
	in, err := reg.Extract(b.s.input)
	if err != nil {
		return frame.Frame{}, errs.ComponentWrap("source.http_batch", err, "input %q", b.s.input)
	}
	return b.s.FetchFromInput(ctx, in.Table())
}

// singleSource adapts an HTTPSingleSource: it reads every frame its
// placeholders reference out of the registry before issuing the request.
type singleSource struct{ s *HTTPSingleSource }

func (b singleSource) Output() string { return b.s.Output() }
func (b singleSource) fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error) {
	named := make(map[string]frame.Table, len(b.s.values))
	for _, ref := range b.s.values {
		if _, ok := named[ref.Frame]; ok {
			continue
		}
		in, err := reg.Extract(ref.Frame)
		if err != nil {
			return frame.Frame{}, errs.ComponentWrap("source.http_single", err, "value frame %q", ref.Frame)
		}
		named[ref.Frame] = in.Table()
	}
	return b.s.FetchWithNamed(ctx, named)
}

// Group is the Source Group: a labelled set of adapters, each producing
// exactly one named output frame.
type Group struct {
	label      string
	maxThreads int
	sources    []groupSource
}

// NewGroup builds a Group from an emplaced, validated SourceGroupConfig.
// ctx is the same stage emplacement map the caller already applied to
// cfg's own top-level fields; it's forwarded to ParseSource so each
// per-entry source config (csv.output, http_batch.input, ...) gets its
// own Keyword fields resolved too.
func NewGroup(label string, cfg config.SourceGroupConfig, ctx map[string]any, configDir string, connReg *config.ConnectionRegistry, modelReg *config.ModelRegistry) (*Group, error) {
	sources := make([]groupSource, 0, len(cfg.Sources))
	for i, one := range cfg.Sources {
		gs, err := ParseSource(one, ctx, configDir, connReg, modelReg)
		if err != nil {
			return nil, errs.ConfigWrap("source.new_group", err, "%q: source %d", label, i)
		}
		sources = append(sources, gs)
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 1
	}
	return &Group{label: label, maxThreads: maxThreads, sources: sources}, nil
}

func (g *Group) Label() string { return g.label }

func (g *Group) Produces() []string {
	names := make([]string, len(g.sources))
	for i, s := range g.sources {
		names[i] = s.Output()
	}
	return names
}

// Linear fetches every source in declared order and broadcasts each
// output; any source failure aborts the pipeline immediately.
func (g *Group) Linear(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	for _, s := range g.sources {
		f, err := s.fetch(ctx, reg)
		if err != nil {
			return errs.ComponentWrap("source.linear", err, "%q: output %q", g.label, s.Output())
		}
		bh, err := reg.GetBroadcast(s.Output(), g.label)
		if err != nil {
			return errs.ComponentWrap("source.linear", err, "%q: output %q", g.label, s.Output())
		}
		if err := bh.Broadcast(f); err != nil {
			return errs.ComponentWrap("source.linear", err, "%q: output %q", g.label, s.Output())
		}
	}
	return nil
}

// SyncExec parallelizes fetches across the configured thread budget;
// per-source failures are logged, not propagated.
func (g *Group) SyncExec(ec *engctx.Context) error {
	ctx := context.Background()
	reg := ec.Results()
	chunks := stage.ContiguousChunks(len(g.sources), g.maxThreads)

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c stage.Chunk) {
			defer wg.Done()
			for i := c.Start; i < c.End; i++ {
				s := g.sources[i]
				f, err := s.fetch(ctx, reg)
				if err != nil {
					ec.Logger().Errorw("source fetch failed", "stage", g.label, "output", s.Output(), "error", err)
					continue
				}
				bh, err := reg.GetBroadcast(s.Output(), g.label)
				if err != nil {
					ec.Logger().Errorw("source broadcast setup failed", "stage", g.label, "output", s.Output(), "error", err)
					continue
				}
				if err := bh.Broadcast(f); err != nil {
					ec.Logger().Errorw("source broadcast failed", "stage", g.label, "output", s.Output(), "error", err)
				}
			}
		}(c)
	}
	wg.Wait()
	return nil
}

// AsyncExec gates every cycle on a Replace signal from the pipeline's
// signal state: each Replace fetches all sources concurrently and
// broadcasts each on its own async channel; a Kill emits Kill on every
// produced frame and exits.
func (g *Group) AsyncExec(ctx context.Context, ec *engctx.Context) error {
	reg := ec.Results()
	prop := ec.SignalPropagator()
	defer prop.Close()

	broadcasters := make([]pipelineframe.AsyncBroadcastHandle, len(g.sources))
	for i, s := range g.sources {
		bh, err := reg.GetAsyncBroadcast(s.Output(), g.label)
		if err != nil {
			return errs.ComponentWrap("source.async_exec", err, "%q: output %q", g.label, s.Output())
		}
		broadcasters[i] = bh
	}

	for {
		u, err := prop.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.PipelineWrap("source.async_exec", err, "%q", g.label)
		}
		if u.Kind == pipelineframe.Kill {
			for _, bh := range broadcasters {
				bh.Kill()
			}
			return nil
		}

		var wg sync.WaitGroup
		for i, s := range g.sources {
			wg.Add(1)
			go func(i int, s groupSource) {
				defer wg.Done()
				f, err := s.fetch(ctx, reg)
				if err != nil {
					ec.Logger().Errorw("source async fetch failed", "stage", g.label, "output", s.Output(), "error", err)
					return
				}
				broadcasters[i].Broadcast(f)
			}(i, s)
		}
		wg.Wait()
	}
}

var _ stage.Stage = (*Group)(nil)
