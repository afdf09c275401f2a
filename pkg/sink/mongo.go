package sink

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
)

// MongoSink writes rows to a connection-registry collection, supplemented
// domain sink mirroring the source package's MongoSource.
type MongoSink struct {
	label      string
	database   string
	collection string
	merge      config.MergeMode
	conn       *config.ConnectionConfig
}

// NewMongoSink builds a MongoSink from a resolved MongoSinkConfig.
func NewMongoSink(label string, cfg config.MongoSinkConfig, conn *config.ConnectionConfig) (*MongoSink, error) {
	if cfg.Collection == "" {
		return nil, errs.Config("sink.mongo", "%q: collection is required", label)
	}
	merge := cfg.Merge
	if merge == "" {
		merge = config.MergeReplace
	}
	return &MongoSink{label: label, database: cfg.Database, collection: cfg.Collection, merge: merge, conn: conn}, nil
}

func (s *MongoSink) Label() string { return s.label }

func (s *MongoSink) Write(ctx context.Context, t frame.Table) error {
	client, err := connutil.OpenMongo(ctx, s.conn)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	collName := s.collection
	coll := client.Database(s.database).Collection(collName)

	switch s.merge {
	case config.MergeMakeNext:
		collName = withTimestampSuffix(s.collection, "")
		coll = client.Database(s.database).Collection(collName)
	case config.MergeReplace:
		if err := coll.Drop(ctx); err != nil {
			return errs.ConnectionWrap("sink.mongo", err, "drop %q", collName)
		}
	}

	if len(t.Rows) == 0 {
		return nil
	}
	docs := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		docs[i] = bson.M(row)
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) && s.merge == config.MergeMakeNext {
			collName = randomSuffix(collName)
			coll = client.Database(s.database).Collection(collName)
			_, err = coll.InsertMany(ctx, docs)
		}
		if err != nil {
			return errs.ConnectionWrap("sink.mongo", err, "insert into %q", collName)
		}
	}
	return nil
}
