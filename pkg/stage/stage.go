package stage

import (
	"context"

	"flowline/pkg/engctx"
)

// Stage is the common three-verb execution contract every Transform,
// Source, Sink, and Request group implements.
type Stage interface {
	// Label identifies the stage for logging and Produces bookkeeping.
	Label() string

	// Produces lists the frame names this stage will write to the Results
	// Registry; the Runner uses this to pre-allocate Pipeline Frames
	// before any stage executes. Sinks and Requests that consume but
	// don't register new frames return nil; Requests that DO emit a
	// named output frame include it.
	Produces() []string

	// Linear runs every inner operator sequentially on the calling
	// goroutine, in declared order. No channels are used.
	Linear(ec *engctx.Context) error

	// SyncExec runs every inner operator across a bounded worker pool
	// (contiguous chunking over max_threads) after taking one initial
	// force_listen snapshot of its input, if any. Operator failures are
	// logged, not propagated.
	SyncExec(ec *engctx.Context) error

	// AsyncExec runs the stage's long-running event loop until ctx is
	// canceled or the stage observes enough Kill signals to retire every
	// sub-operator.
	AsyncExec(ctx context.Context, ec *engctx.Context) error
}
