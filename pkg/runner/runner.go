// Package runner implements the Pipeline Runner: it walks a pipeline's
// stages to pre-allocate the Results Registry, then dispatches
// debug/once/loop execution and owns the two-strike SIGTERM shutdown,
// running the N ordered stages of one pipeline under one of three
// execution protocols.
package runner

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"flowline/pkg/config"
	"flowline/pkg/engctx"
	"flowline/pkg/env"
	"flowline/pkg/errs"
	"flowline/pkg/registry"
	"flowline/pkg/signal"
	"flowline/pkg/stage"
)

// defaultBufferSize is the per-frame channel buffer size used when no
// override is supplied.
const defaultBufferSize = 8

// Runner orders a pipeline's stages, prepares the Results Registry, and
// dispatches one of {debug, once, loop} execution.
type Runner struct {
	pipelineLabel string
	runnerLabel   string
	stages        []stage.Stage
	cfg           config.RunnerConfig
	logger        engctx.Logger
	envReg        *env.Registry
	sig           *signal.SignalState
	isExecuting   bool
	isConsole     bool
	bufferSize    int
}

// New constructs a Runner. bufferSize <= 0 falls back to defaultBufferSize.
func New(pipelineLabel, runnerLabel string, stages []stage.Stage, cfg config.RunnerConfig, logger engctx.Logger, envReg *env.Registry, sig *signal.SignalState, isExecuting, isConsole bool, bufferSize int) *Runner {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Runner{
		pipelineLabel: pipelineLabel,
		runnerLabel:   runnerLabel,
		stages:        stages,
		cfg:           cfg,
		logger:        logger,
		envReg:        envReg,
		sig:           sig,
		isExecuting:   isExecuting,
		isConsole:     isConsole,
		bufferSize:    bufferSize,
	}
}

// prepareResults walks every stage's Produces() and seeds one empty
// Pipeline Frame per distinct name.
func (r *Runner) prepareResults() *registry.Registry {
	seen := make(map[string]bool)
	var names []string
	for _, s := range r.stages {
		for _, n := range s.Produces() {
			if seen[n] {
				continue
			}
			seen[n] = true
			names = append(names, n)
		}
	}
	return registry.WithResults(names, r.bufferSize)
}

func (r *Runner) newContext(reg *registry.Registry) (*engctx.Context, error) {
	ec := engctx.New(reg, r.sig, r.envReg, r.logger, r.isExecuting, r.isConsole)
	if err := ec.SetPipeline(r.pipelineLabel); err != nil {
		return nil, err
	}
	ec.SetRunnerLabel(r.runnerLabel)
	ec.SetRunID(uuid.New().String())
	return ec, nil
}

// Run dispatches execution according to cfg.Mode and blocks until the
// pipeline finishes (debug/once) or the loop runtime exits (loop mode, via
// context cancellation or a second SIGTERM).
func (r *Runner) Run(ctx context.Context) error {
	reg := r.prepareResults()
	defer reg.Close()

	ec, err := r.newContext(reg)
	if err != nil {
		return err
	}
	r.logger.Infow("starting run", "pipeline", r.pipelineLabel, "runner", r.runnerLabel, "run_id", ec.RunID(), "mode", r.cfg.Mode)

	switch r.cfg.Mode {
	case config.ModeDebug:
		return r.runDebug(ec)
	case config.ModeOnce:
		return r.runOnce(ec)
	case config.ModeLoop:
		return r.runLoop(ctx, ec)
	default:
		return errs.Config("runner.run", "%q: unknown mode %q", r.runnerLabel, r.cfg.Mode)
	}
}

// runDebug runs every stage's linear verb in declared order, on the
// calling goroutine; any stage failure aborts the pipeline.
func (r *Runner) runDebug(ec *engctx.Context) error {
	for _, s := range r.stages {
		if err := s.Linear(ec); err != nil {
			return errs.PipelineWrap("runner.debug", err, "%q: stage %q", r.pipelineLabel, s.Label())
		}
	}
	return nil
}

// runOnce runs every stage's sync_exec verb in declared order (parallel
// within a stage, sequential between stages); a stage-level setup failure
// aborts the pipeline, but per-operator failures inside a stage are
// already logged and swallowed by that stage's SyncExec.
func (r *Runner) runOnce(ec *engctx.Context) error {
	for _, s := range r.stages {
		if err := s.SyncExec(ec); err != nil {
			return errs.PipelineWrap("runner.once", err, "%q: stage %q", r.pipelineLabel, s.Label())
		}
	}
	return nil
}

// runLoop starts an optional cron trigger, spawns every stage's
// async_exec concurrently, and joins that run-task with a SIGTERM
// listener implementing the two-strike shutdown protocol.
func (r *Runner) runLoop(ctx context.Context, ec *engctx.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.cfg.Schedule != "" {
		loc := time.Local
		if r.cfg.Timezone != "" {
			if l, err := time.LoadLocation(r.cfg.Timezone); err == nil {
				loc = l
			}
		}
		cj := cron.New(cron.WithLocation(loc))
		if _, err := cj.AddFunc(r.cfg.Schedule, func() { r.sig.SendReplace() }); err != nil {
			return errs.ConfigWrap("runner.loop", err, "%q: schedule %q", r.runnerLabel, r.cfg.Schedule)
		}
		cj.Start()
		defer cj.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.stages {
		s := s
		g.Go(func() error { return s.AsyncExec(gctx, ec) })
	}

	if r.cfg.AtStart {
		// Best-effort: a stage's signal propagator only exists once its
		// async_exec goroutine has started, so there is an inherent race
		// between spawning stages above and sending here. Update Message
		// semantics are already weak (at least one Replace per burst, not
		// one-to-one), so a short grace period before the first tick is
		// consistent with that guarantee rather than a new one.
		time.Sleep(10 * time.Millisecond)
		r.sig.SendReplace()
	}

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	for {
		select {
		case <-sigCh:
			forceExit := r.sig.OnSigterm(func() {
				r.logger.Warnw("received sigterm, sending kill", "runner", r.runnerLabel)
			})
			if forceExit {
				r.logger.Warnw("received second sigterm, exiting immediately", "runner", r.runnerLabel)
				os.Exit(1)
			}
		case err := <-done:
			if err != nil {
				return errs.PipelineWrap("runner.loop", err, "%q", r.pipelineLabel)
			}
			return nil
		}
	}
}
