package config

// PipelineRegistry indexes named PipelineConfig entries (the `pipeline`
// node in §6's YAML): one ordered stage list per pipeline label.
type PipelineRegistry = Registry[PipelineConfig]

// NewPipelineRegistry constructs the `pipeline` node's registry.
func NewPipelineRegistry() *PipelineRegistry {
	return NewRegistry[PipelineConfig]("pipeline")
}
