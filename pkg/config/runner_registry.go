package config

// RunnerRegistry indexes named RunnerConfig entries (the `runner` node
// in §6's YAML): execution mode and schedule per runner label.
type RunnerRegistry = Registry[RunnerConfig]

// NewRunnerRegistry constructs the `runner` node's registry.
func NewRunnerRegistry() *RunnerRegistry {
	return NewRegistry[RunnerConfig]("runner")
}
