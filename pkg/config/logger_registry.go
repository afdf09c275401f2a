package config

// LoggerRegistry indexes named LoggerConfig entries (the `logger` node in
// §6's YAML), resolved once at config-pack load and handed to pkg/logger
// to build the concrete zap-backed logger a runner's config.runner.logger
// label refers to.
type LoggerRegistry = Registry[LoggerConfig]

// NewLoggerRegistry constructs the `logger` node's registry.
func NewLoggerRegistry() *LoggerRegistry {
	return NewRegistry[LoggerConfig]("logger")
}
