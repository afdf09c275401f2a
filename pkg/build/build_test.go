package build

import (
	"os"
	"path/filepath"
	"testing"

	"flowline/pkg/config"
)

const fixtureYAML = `
transform:
  clean_rows:
    input: $in_frame
    output: cleaned
    steps:
      - drop: ["scratch_col"]
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return dir
}

func TestStagesBuildsTransformStage(t *testing.T) {
	dir := writeFixture(t)
	pack, err := config.LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	regs, err := NewRegistries(pack, dir, config.NewConnectionRegistry(), config.NewModelRegistry())
	if err != nil {
		t.Fatalf("NewRegistries: %v", err)
	}

	pc := &config.PipelineConfig{Stages: []config.StageConfig{
		{Label: "step1", TaskType: config.TaskTransform, TaskName: "clean_rows"},
	}}

	stages, err := Stages(pc, regs, map[string]any{"in_frame": "raw"})
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	if stages[0].Label() != "step1" {
		t.Errorf("Label = %q", stages[0].Label())
	}
	produces := stages[0].Produces()
	if len(produces) != 1 || produces[0] != "cleaned" {
		t.Errorf("Produces = %v", produces)
	}
}

func TestBuildStageRejectsUnknownTaskType(t *testing.T) {
	regs := &Registries{
		Transform: config.NewRegistry[config.TransformGroupConfig]("transform"),
		Source:    config.NewRegistry[config.SourceGroupConfig]("source"),
		Sink:      config.NewRegistry[config.SinkGroupConfig]("sink"),
		Request:   config.NewRegistry[config.RequestGroupConfig]("request"),
	}
	_, err := buildStage(config.StageConfig{Label: "bad", TaskType: "bogus"}, regs, nil)
	if err == nil {
		t.Fatal("expected error for unknown task_type")
	}
}
