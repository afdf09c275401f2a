package source

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// MongoSource runs a find() against a connection-registry entry and
// returns the result set as a frame (supplemented domain source; see
// SPEC_FULL.md's DOMAIN STACK wiring for go.mongodb.org/mongo-driver).
type MongoSource struct {
	output     string
	database   string
	collection string
	filter     map[string]any
	conn       *config.ConnectionConfig
	model      *model.Model
}

// NewMongoSource builds a MongoSource from a resolved MongoSourceConfig.
func NewMongoSource(cfg config.MongoSourceConfig, conn *config.ConnectionConfig, m *model.Model) (*MongoSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.mongo", "output symbol unresolved")
	}
	if cfg.Collection == "" {
		return nil, errs.Config("source.mongo", "%q: collection is required", output)
	}
	return &MongoSource{
		output: output, database: cfg.Database, collection: cfg.Collection,
		filter: cfg.Filter, conn: conn, model: m,
	}, nil
}

func (s *MongoSource) Output() string { return s.output }

func (s *MongoSource) Fetch(ctx context.Context) (frame.Frame, error) {
	client, err := connutil.OpenMongo(ctx, s.conn)
	if err != nil {
		return frame.Frame{}, err
	}
	defer client.Disconnect(ctx)

	filter := bson.M{}
	for k, v := range s.filter {
		filter[k] = v
	}
	cursor, err := client.Database(s.database).Collection(s.collection).Find(ctx, filter)
	if err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.mongo", err, "find failed")
	}
	defer cursor.Close(ctx)

	var rows []map[string]any
	for cursor.Next(ctx) {
		var row bson.M
		if err := cursor.Decode(&row); err != nil {
			return frame.Frame{}, errs.ConnectionWrap("source.mongo", err, "decode failed")
		}
		delete(row, "_id")
		rows = append(rows, map[string]any(row))
	}
	if err := cursor.Err(); err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.mongo", err, "cursor error")
	}
	return buildFrame(rows, s.model)
}
