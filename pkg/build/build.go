// Package build turns one pipeline's ordered StageConfig list into the
// stage.Stage values a Runner executes, resolving each stage's task_name
// against its task_type's Config Pack node and substituting Keyword
// symbols from the stage's own emplace block first, over an arbitrary
// ordered stage list dispatching on task_type.
package build

import (
	"flowline/pkg/config"
	"flowline/pkg/keyword"
	"flowline/pkg/errs"
	"flowline/pkg/request"
	"flowline/pkg/sink"
	"flowline/pkg/source"
	"flowline/pkg/stage"
	"flowline/pkg/transform"
)

// Registries bundles every Configurable Registry a stage's construction
// may need, resolved once at startup from one Config Pack.
type Registries struct {
	Transform *config.Registry[config.TransformGroupConfig]
	Source    *config.Registry[config.SourceGroupConfig]
	Sink      *config.Registry[config.SinkGroupConfig]
	Request   *config.Registry[config.RequestGroupConfig]
	Conn      *config.ConnectionRegistry
	Model     *config.ModelRegistry
	ConfigDir string
}

// NewRegistries constructs every task-type registry and parses them out
// of pack; ConnReg and ModelReg are expected to already be populated by
// the caller (they're shared across pipelines, unlike the per-task-type
// registries here).
func NewRegistries(pack *config.Pack, configDir string, connReg *config.ConnectionRegistry, modelReg *config.ModelRegistry) (*Registries, error) {
	r := &Registries{
		Transform: config.NewRegistry[config.TransformGroupConfig]("transform"),
		Source:    config.NewRegistry[config.SourceGroupConfig]("source"),
		Sink:      config.NewRegistry[config.SinkGroupConfig]("sink"),
		Request:   config.NewRegistry[config.RequestGroupConfig]("request"),
		Conn:      connReg,
		Model:     modelReg,
		ConfigDir: configDir,
	}
	if err := r.Transform.ExtractParseConfig(pack); err != nil {
		return nil, err
	}
	if err := r.Source.ExtractParseConfig(pack); err != nil {
		return nil, err
	}
	if err := r.Sink.ExtractParseConfig(pack); err != nil {
		return nil, err
	}
	if err := r.Request.ExtractParseConfig(pack); err != nil {
		return nil, err
	}
	return r, nil
}

// Stages builds one stage.Stage per entry in pc, in declared order.
// outerEmplace is merged under each stage's own emplace block (stage wins
// on conflict, per config.MergeEmplace).
func Stages(pc *config.PipelineConfig, regs *Registries, outerEmplace map[string]any) ([]stage.Stage, error) {
	stages := make([]stage.Stage, 0, len(pc.Stages))
	for _, sc := range pc.Stages {
		ctx := config.MergeEmplace(outerEmplace, sc.Emplace)
		s, err := buildStage(sc, regs, ctx)
		if err != nil {
			return nil, errs.ConfigWrap("build.stages", err, "stage %q", sc.Label)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

func buildStage(sc config.StageConfig, regs *Registries, ctx map[string]any) (stage.Stage, error) {
	switch sc.TaskType {
	case config.TaskTransform:
		cfg, err := regs.Transform.Get(sc.TaskName)
		if err != nil {
			return nil, err
		}
		cp := *cfg
		if err := keyword.EmplaceStruct(&cp, ctx); err != nil {
			return nil, err
		}
		return transform.NewGroup(sc.Label, cp, ctx)

	case config.TaskSource:
		cfg, err := regs.Source.Get(sc.TaskName)
		if err != nil {
			return nil, err
		}
		cp := *cfg
		if err := keyword.EmplaceStruct(&cp, ctx); err != nil {
			return nil, err
		}
		return source.NewGroup(sc.Label, cp, ctx, regs.ConfigDir, regs.Conn, regs.Model)

	case config.TaskSink:
		cfg, err := regs.Sink.Get(sc.TaskName)
		if err != nil {
			return nil, err
		}
		cp := *cfg
		if err := keyword.EmplaceStruct(&cp, ctx); err != nil {
			return nil, err
		}
		return sink.NewGroup(sc.Label, cp, ctx, regs.ConfigDir, regs.Conn)

	case config.TaskRequest:
		cfg, err := regs.Request.Get(sc.TaskName)
		if err != nil {
			return nil, err
		}
		cp := *cfg
		if err := keyword.EmplaceStruct(&cp, ctx); err != nil {
			return nil, err
		}
		return request.NewGroup(sc.Label, cp, ctx, regs.Model)

	default:
		return nil, errs.Config("build.stage", "%q: unknown task_type %q", sc.Label, sc.TaskType)
	}
}
