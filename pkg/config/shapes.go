package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
	"flowline/pkg/keyword"
)

// OneOf decodes a one-entry map `{ kind: args }`, the shape used for
// transform steps, and source/sink/request entries.
type OneOf struct {
	Kind string
	Node *yaml.Node
}

func (o *OneOf) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return errs.Config("config.one_of", "expected a one-entry map, got %v", node.Tag)
	}
	o.Kind = node.Content[0].Value
	o.Node = node.Content[1]
	return nil
}

// Decode unmarshals the entry's payload into v.
func (o OneOf) Decode(v any) error {
	if o.Node == nil {
		return errs.Config("config.one_of", "empty payload for kind %q", o.Kind)
	}
	return o.Node.Decode(v)
}

// TaskType enumerates the allowed stage task types.
type TaskType string

const (
	TaskTransform TaskType = "transform"
	TaskSource    TaskType = "source"
	TaskSink      TaskType = "sink"
	TaskRequest   TaskType = "request"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTransform, TaskSource, TaskSink, TaskRequest:
		return true
	}
	return false
}

// StageConfig is one entry in a pipeline's ordered stage list.
type StageConfig struct {
	Label    string                 `yaml:"label"`
	TaskType TaskType               `yaml:"task_type"`
	TaskName string                 `yaml:"task_name"`
	Emplace  map[string]any         `yaml:"emplace"`
}

// PipelineConfig is the ordered list of stages under one pipeline label.
// The YAML shape for a pipeline entry is a bare sequence, not a mapping,
// so PipelineConfig supplies its own UnmarshalYAML.
type PipelineConfig struct {
	Stages []StageConfig
}

func (p *PipelineConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return errs.Config("config.pipeline", "pipeline entry must be a sequence of stages")
	}
	return node.Decode(&p.Stages)
}

// Validate rejects duplicate stage labels and disallowed task_type values.
func (p *PipelineConfig) Validate() error {
	seen := make(map[string]bool, len(p.Stages))
	for _, s := range p.Stages {
		if !s.TaskType.Valid() {
			return errs.Config("config.pipeline", "stage %q: invalid task_type %q", s.Label, s.TaskType)
		}
		if seen[s.Label] {
			return errs.Config("config.pipeline", "duplicate stage label %q", s.Label)
		}
		seen[s.Label] = true
	}
	return nil
}

// Mode is the runner dispatch mode.
type Mode string

const (
	ModeDebug Mode = "debug"
	ModeOnce  Mode = "once"
	ModeLoop  Mode = "loop"
)

// RunnerConfig selects execution mode and (for loop mode) a cron trigger.
type RunnerConfig struct {
	Logger   string `yaml:"logger"`
	Mode     Mode   `yaml:"mode"`
	Schedule string `yaml:"schedule,omitempty"`
	Timezone string `yaml:"tz,omitempty"`

	// AtStart controls whether an async source group broadcasts once
	// immediately on loop start in addition to waiting for cron ticks.
	// Defaults false: wait for the first tick.
	AtStart bool `yaml:"at_start,omitempty"`

	// KillFlagConnection names a "redis"-kind connection registry entry
	// backing a durable SIGTERM kill-flag (pkg/signal.NewDurable):
	// omitted entirely, the runner's SignalState keeps the kill request
	// in memory only, as before.
	KillFlagConnection string `yaml:"kill_flag_connection,omitempty"`
}

// Validate checks the mode enum and, for loop mode, that Schedule parses
// as a valid cron expression when present.
func (r *RunnerConfig) Validate() error {
	switch r.Mode {
	case ModeDebug, ModeOnce, ModeLoop:
	default:
		return errs.Config("config.runner", "invalid mode %q", r.Mode)
	}
	if r.Mode == ModeLoop && r.Schedule != "" {
		if _, err := cron.ParseStandard(r.Schedule); err != nil {
			return errs.ConfigWrap("config.runner", err, "invalid cron schedule %q", r.Schedule)
		}
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return errs.ConfigWrap("config.runner", err, "invalid tz %q", r.Timezone)
		}
	}
	return nil
}

// LoggerConfig configures one labelled logger (see pkg/logger).
type LoggerConfig struct {
	Level         string `yaml:"level"`
	Output        string `yaml:"output"` // "console" (the default) or "file"; "file" requires file_prefix
	FilePrefix    string `yaml:"file_prefix,omitempty"`
	FileTimestamp bool   `yaml:"file_timestamp,omitempty"`
}

// ConnectionConfig is the supplemental connection registry entry (see
// SPEC_FULL.md DOMAIN STACK): a named DSN/broker-list/address shared by
// SQL, Kafka, and Redis-backed adapters so pipelines don't repeat
// connection strings per stage.
type ConnectionConfig struct {
	Kind     string   `yaml:"kind"` // postgres, mysql, clickhouse, mongo, kafka, redis, elasticsearch
	DSN      string   `yaml:"dsn,omitempty"`
	Brokers  []string `yaml:"brokers,omitempty"`
	Addr     string   `yaml:"addr,omitempty"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	URLs     []string `yaml:"urls,omitempty"` // elasticsearch nodes
}

// TransformGroupConfig is the `transform:<label>:` YAML shape.
type TransformGroupConfig struct {
	Input  keyword.Keyword[string] `yaml:"input"`
	Output keyword.Keyword[string] `yaml:"output"`
	Steps  []OneOf                 `yaml:"steps"`
}

// SourceGroupConfig is the `source:<label>:` YAML shape.
type SourceGroupConfig struct {
	MaxThreads int     `yaml:"max_threads"`
	Sources    []OneOf `yaml:"sources"`
}

// SinkGroupConfig is the `sink:<label>:` YAML shape.
type SinkGroupConfig struct {
	Input      keyword.Keyword[string] `yaml:"input"`
	MaxThreads int                     `yaml:"max_threads"`
	Sinks      []OneOf                 `yaml:"sinks"`
}

// RequestGroupConfig is the `request:<label>:` YAML shape.
type RequestGroupConfig struct {
	Input      keyword.Keyword[string] `yaml:"input"`
	MaxThreads int                     `yaml:"max_threads"`
	Requests   []OneOf                 `yaml:"requests"`
}

// MergeEmplace merges a stage's own emplace block over a caller-supplied
// outer context (stage emplace wins on conflict). The result is the map
// keyword.EmplaceStruct resolves a stage config's Symbols against.
func MergeEmplace(outer, stageEmplace map[string]any) map[string]any {
	merged := make(map[string]any, len(outer)+len(stageEmplace))
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range stageEmplace {
		merged[k] = v
	}
	return merged
}

func fmtStage(label string) string { return fmt.Sprintf("stage %q", label) }
