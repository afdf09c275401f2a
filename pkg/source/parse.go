package source

import (
	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/keyword"
	"flowline/pkg/model"
)

func lookupModel(modelReg *config.ModelRegistry, label string) (*model.Model, error) {
	if label == "" {
		return nil, nil
	}
	if modelReg == nil {
		return nil, errs.Config("source.lookup_model", "no model registry configured, but model %q referenced", label)
	}
	return modelReg.Get(label)
}

func lookupConnection(connReg *config.ConnectionRegistry, label string) (*config.ConnectionConfig, error) {
	if connReg == nil {
		return nil, errs.Config("source.lookup_connection", "no connection registry configured, but connection %q referenced", label)
	}
	return connReg.Get(label)
}

// ParseSource builds one Source Group member from a resolved OneOf entry,
// emplacing the decoded config's own Keyword fields (output, and input
// for http_batch) against ctx before constructing the adapter.
func ParseSource(one config.OneOf, ctx map[string]any, configDir string, connReg *config.ConnectionRegistry, modelReg *config.ModelRegistry) (groupSource, error) {
	switch one.Kind {
	case "csv":
		var cfg config.CSVSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "csv")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "csv")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewCSVSource(cfg, configDir, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "json":
		var cfg config.JSONSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "json")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "json")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewJSONSource(cfg, configDir, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "sql":
		var cfg config.SQLSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "sql")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "sql")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLSource(cfg, conn, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "mongo":
		var cfg config.MongoSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "mongo")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "mongo")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewMongoSource(cfg, conn, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "elasticsearch":
		var cfg config.ElasticsearchSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "elasticsearch")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "elasticsearch")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewElasticsearchSource(cfg, conn, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "kafka":
		var cfg config.KafkaSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "kafka")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "kafka")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewKafkaSource(cfg, conn, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "cdc":
		var cfg config.CDCSourceConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "cdc")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "cdc")
		}
		conn, err := lookupConnection(connReg, cfg.Connection)
		if err != nil {
			return nil, err
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewCDCSource(cfg, conn, m)
		if err != nil {
			return nil, err
		}
		return plainSource{s}, nil

	case "http_batch":
		var cfg config.HTTPBatchConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "http_batch")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "http_batch")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewHTTPBatchSource(cfg, m)
		if err != nil {
			return nil, err
		}
		return batchSource{s}, nil

	case "http_single":
		var cfg config.HTTPSingleConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "http_single")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("source.parse", err, "http_single")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := NewHTTPSingleSource(cfg, m)
		if err != nil {
			return nil, err
		}
		return singleSource{s}, nil

	default:
		return nil, errs.Config("source.parse", "unknown source kind %q", one.Kind)
	}
}
