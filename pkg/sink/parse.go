package sink

import (
	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/keyword"
)

func lookupConnection(connReg *config.ConnectionRegistry, label string) (*config.ConnectionConfig, error) {
	if connReg == nil {
		return nil, errs.Config("sink.lookup_connection", "no connection registry configured, but connection %q referenced", label)
	}
	return connReg.Get(label)
}

// ParseSink builds one Sink Group member from a resolved OneOf entry,
// emplacing the decoded config's own Keyword fields against ctx before
// constructing the adapter. The "clickhouse" kind decodes through the
// same SQLSinkConfig shape as "sql"; the distinction is carried by the
// connection's Kind.
func ParseSink(label string, one config.OneOf, ctx map[string]any, configDir string, connReg *config.ConnectionRegistry) (Sink, error) {
	switch one.Kind {
	case "csv":
		var cfg config.CSVSinkConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "csv")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "csv")
		}
		return NewCSVSink(label, cfg, configDir)

	case "json":
		var cfg config.JSONSinkConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "json")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "json")
		}
		return NewJSONSink(label, cfg, configDir)

	case "sql", "clickhouse":
		var cfg config.SQLSinkConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "%s", one.Kind)
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "%s", one.Kind)
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		return NewSQLSink(label, cfg, conn)

	case "mongo":
		var cfg config.MongoSinkConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "mongo")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "mongo")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		return NewMongoSink(label, cfg, conn)

	case "elasticsearch":
		var cfg config.ElasticsearchSinkConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "elasticsearch")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("sink.parse", err, "elasticsearch")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		return NewElasticsearchSink(label, cfg, conn)

	default:
		return nil, errs.Config("sink.parse", "unknown sink kind %q", one.Kind)
	}
}
