package connutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flowline/pkg/config"
	"flowline/pkg/errs"
)

// OpenSQL opens a database/sql connection for a "postgres" or "mysql"
// ConnectionConfig entry, picking the driver name by Kind.
func OpenSQL(cfg *config.ConnectionConfig) (*sql.DB, error) {
	var driver string
	switch cfg.Kind {
	case "postgres", "clickhouse":
		driver = "postgres"
	case "mysql":
		driver = "mysql"
	default:
		return nil, errs.Config("connutil.open_sql", "unsupported SQL connection kind %q", cfg.Kind)
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errs.ConnectionWrap("connutil.open_sql", err, "kind %q", cfg.Kind)
	}
	return db, nil
}

// OpenMongo connects a mongo.Client for a "mongo" ConnectionConfig entry.
func OpenMongo(ctx context.Context, cfg *config.ConnectionConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, errs.ConnectionWrap("connutil.open_mongo", err, "dsn")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errs.ConnectionWrap("connutil.open_mongo", err, "ping")
	}
	return client, nil
}

// OpenElasticsearch builds an elasticsearch.Client for an "elasticsearch"
// ConnectionConfig entry.
func OpenElasticsearch(cfg *config.ConnectionConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.URLs})
	if err != nil {
		return nil, errs.ConnectionWrap("connutil.open_elasticsearch", err, "addresses")
	}
	return client, nil
}

// OpenRedis builds a ResilientRedis client for a "redis" ConnectionConfig
// entry. Unlike the other Open* builders this never returns an error on
// the initial connection: the client's own reconnect loop absorbs a
// down Redis at startup, matching pkg/signal's use of it as an optional
// durable kill-flag store that shouldn't block pipeline startup.
func OpenRedis(cfg *config.ConnectionConfig) (*ResilientRedis, error) {
	if cfg.Kind != "redis" {
		return nil, errs.Config("connutil.open_redis", "unsupported redis connection kind %q", cfg.Kind)
	}
	if cfg.Addr == "" {
		return nil, errs.Config("connutil.open_redis", "redis connection %q: addr is required", cfg.Kind)
	}
	return NewResilientRedis(DefaultRedisConfig(cfg.Addr, cfg.Password, cfg.DB)), nil
}
