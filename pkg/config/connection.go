package config

// ConnectionRegistry indexes named ConnectionConfig entries (the
// `connection` node in a config pack's YAML), resolved once at
// config-pack load and handed to SQL/Kafka/Redis/Mongo/Elasticsearch-
// backed adapters so pipelines don't repeat connection strings per
// stage. Each adapter opens its own client from the entry through
// pkg/connutil's Open* builders; clients are not cached or shared.
type ConnectionRegistry = Registry[ConnectionConfig]

// NewConnectionRegistry constructs the `connection` node's registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return NewRegistry[ConnectionConfig]("connection")
}
