// Package engctx implements the Context: the single object aggregating
// the Results Registry, Signal State, Environment Registry, logger, and
// execution-mode flags that is threaded through every stage, a per-run
// struct bundling its registries, logger, and executing flag.
package engctx

import (
	"sync"

	"flowline/pkg/env"
	"flowline/pkg/errs"
	"flowline/pkg/registry"
	"flowline/pkg/signal"
)

// Logger is the narrow structured-logging contract Context threads through
// to every stage. pkg/logger's zap-backed logger implements it; tests can
// supply a no-op stub without importing zap.
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
}

// Context is shared-owned by every stage executing within one pipeline
// run; it outlives every stage it's handed to.
type Context struct {
	mu sync.Mutex

	pipelineLabel string
	pipelineSet   bool

	runnerLabel string
	runID       string

	results *registry.Registry
	sig     *signal.SignalState
	envReg  *env.Registry
	logger  Logger

	isExecuting bool // ctx.is_executing_sink(): false means sinks log-only
	isConsole   bool
}

// New constructs a Context around an already-populated Results Registry.
// SignalState and the Environment Registry are process-wide singletons
// shared across a run, so callers supply them rather than having Context
// construct its own.
func New(results *registry.Registry, sig *signal.SignalState, envReg *env.Registry, logger Logger, isExecuting, isConsole bool) *Context {
	return &Context{
		results:     results,
		sig:         sig,
		envReg:      envReg,
		logger:      logger,
		isExecuting: isExecuting,
		isConsole:   isConsole,
	}
}

// SetPipeline records which pipeline label this Context is running.
// Attempting to set it twice returns a PipelineError: a pipeline was
// already set on this context.
func (c *Context) SetPipeline(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipelineSet {
		return errs.Pipeline("engctx.set_pipeline", "context already bound to pipeline %q", c.pipelineLabel)
	}
	c.pipelineLabel = label
	c.pipelineSet = true
	return nil
}

// PipelineLabel returns the bound pipeline label, if any.
func (c *Context) PipelineLabel() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelineLabel, c.pipelineSet
}

// SetRunnerLabel records which runner configuration is driving this run,
// for log lines and the RUNNER environment key.
func (c *Context) SetRunnerLabel(label string) { c.runnerLabel = label }

// RunnerLabel returns the bound runner label.
func (c *Context) RunnerLabel() string { return c.runnerLabel }

// SetRunID records the identifier generated for this run, for log
// correlation across stages.
func (c *Context) SetRunID(id string) { c.runID = id }

// RunID returns the identifier generated for this run.
func (c *Context) RunID() string { return c.runID }

// Results returns the shared Results Registry.
func (c *Context) Results() *registry.Registry { return c.results }

// Env returns the shared Environment Registry.
func (c *Context) Env() *env.Registry { return c.envReg }

// Logger returns the configured logger.
func (c *Context) Logger() Logger { return c.logger }

// SignalPropagator creates a new independent receiver of the process-wide
// signal channel, one per Source Group.
func (c *Context) SignalPropagator() *signal.Propagator { return c.sig.NewPropagator() }

// SignalState exposes the raw signal broadcaster, e.g. so the runner's
// cron job can call SendReplace directly.
func (c *Context) SignalState() *signal.SignalState { return c.sig }

// IsExecutingSink reports whether sinks should perform their side
// effects; false means log-only.
func (c *Context) IsExecutingSink() bool { return c.isExecuting }

// IsConsole reports whether the run was launched with --console.
func (c *Context) IsConsole() bool { return c.isConsole }
