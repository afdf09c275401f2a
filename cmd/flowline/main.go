// Command flowline is the CLI entrypoint driving one runner of one
// pipeline out of a Config Pack: flag parsing, load-then-run, and a
// non-zero exit code on any surfaced error, over a directory of
// *.yml/*.yaml files and the three Runner dispatch modes selected by
// config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"flowline/pkg/build"
	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/env"
	"flowline/pkg/errs"
	"flowline/pkg/logger"
	"flowline/pkg/runner"
	"flowline/pkg/signal"
)

func main() {
	configDir := flag.String("config", "", "directory of *.yml/*.yaml config files")
	outputDir := flag.String("output", "", "directory sinks write under")
	pipelineLabel := flag.String("pipeline", "", "pipeline label to run")
	runnerLabel := flag.String("runner", "", "runner label to run the pipeline with")
	date := flag.String("date", "", "reference date (YYYY-MM-DD or YYYY.MM.DD)")
	datetime := flag.String("datetime", "", "reference datetime (RFC3339)")
	execute := flag.Bool("execute", false, "perform sink side effects instead of logging only")
	console := flag.Bool("console", false, "run in console mode")
	flag.Parse()

	if err := run(*configDir, *outputDir, *pipelineLabel, *runnerLabel, *date, *datetime, *execute, *console); err != nil {
		fmt.Fprintf(os.Stderr, "flowline: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir, outputDir, pipelineLabel, runnerLabel, date, datetime string, execute, console bool) error {
	if configDir == "" || pipelineLabel == "" || runnerLabel == "" {
		return errs.Config("main.run", "--config, --pipeline, and --runner are required")
	}

	envReg := env.New()
	defer envReg.Release()
	if err := setEnv(envReg, configDir, outputDir, pipelineLabel, runnerLabel, date, datetime, execute, console); err != nil {
		return err
	}

	pack, err := config.LoadPack(configDir)
	if err != nil {
		return err
	}

	connReg := config.NewConnectionRegistry()
	if err := connReg.ExtractParseConfig(pack); err != nil {
		return err
	}
	modelReg := config.NewModelRegistry()
	if err := modelReg.ExtractModelConfig(pack); err != nil {
		return err
	}
	loggerReg := config.NewLoggerRegistry()
	if err := loggerReg.ExtractParseConfig(pack); err != nil {
		return err
	}
	pipelineReg := config.NewPipelineRegistry()
	if err := pipelineReg.ExtractParseConfig(pack); err != nil {
		return err
	}
	runnerReg := config.NewRunnerRegistry()
	if err := runnerReg.ExtractParseConfig(pack); err != nil {
		return err
	}

	pipelineCfg, err := pipelineReg.Get(pipelineLabel)
	if err != nil {
		return err
	}
	if err := pipelineCfg.Validate(); err != nil {
		return err
	}

	runnerCfg, err := runnerReg.Get(runnerLabel)
	if err != nil {
		return err
	}
	if err := runnerCfg.Validate(); err != nil {
		return err
	}

	loggerCfg, err := loggerReg.Get(runnerCfg.Logger)
	if err != nil {
		return err
	}
	log, err := logger.New(runnerCfg.Logger, *loggerCfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	regs, err := build.NewRegistries(pack, configDir, connReg, modelReg)
	if err != nil {
		return err
	}
	stages, err := build.Stages(pipelineCfg, regs, nil)
	if err != nil {
		return err
	}

	sig, err := newSignalState(connReg, runnerCfg, pipelineLabel, runnerLabel)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if sig.RestoreKillFlag(ctx) {
		log.Warnw("restored a durable kill-flag from a prior run", "runner", runnerLabel)
	}
	r := runner.New(pipelineLabel, runnerLabel, stages, *runnerCfg, log, envReg, sig, execute, console, 0)
	return r.Run(ctx)
}

// newSignalState builds a plain in-memory SignalState, or a Redis-backed
// durable one when runnerCfg names a "redis"-kind connection. The kill
// flag is keyed by pipeline+runner so distinct runners sharing one Redis
// connection don't clobber each other's flags.
func newSignalState(connReg *config.ConnectionRegistry, runnerCfg *config.RunnerConfig, pipelineLabel, runnerLabel string) (*signal.SignalState, error) {
	if runnerCfg.KillFlagConnection == "" {
		return signal.New(), nil
	}
	connCfg, err := connReg.Get(runnerCfg.KillFlagConnection)
	if err != nil {
		return nil, err
	}
	rc, err := connutil.OpenRedis(connCfg)
	if err != nil {
		return nil, err
	}
	return signal.NewDurable(rc, "flowline:kill_flag:"+pipelineLabel+":"+runnerLabel), nil
}

func setEnv(envReg *env.Registry, configDir, outputDir, pipelineLabel, runnerLabel, date, datetime string, execute, console bool) error {
	sets := []struct {
		key env.Key
		val string
	}{
		{env.ConfigDir, configDir},
		{env.OutputDir, outputDir},
		{env.Pipeline, pipelineLabel},
		{env.Runner, runnerLabel},
		{env.IsExecuting, boolStr(execute)},
		{env.IsConsole, boolStr(console)},
	}
	for _, s := range sets {
		if err := envReg.Set(s.key, s.val); err != nil {
			return err
		}
	}
	if date != "" {
		if err := envReg.Set(env.RefDate, date); err != nil {
			return err
		}
	}
	if datetime != "" {
		if err := envReg.Set(env.RefDatetime, datetime); err != nil {
			return err
		}
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
