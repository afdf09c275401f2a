package sink

import (
	"bytes"
	"context"
	"encoding/json"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
)

// ElasticsearchSink bulk-indexes rows into a connection-registry index,
// supplemented domain sink mirroring the source package's
// ElasticsearchSource.
type ElasticsearchSink struct {
	label string
	index string
	merge config.MergeMode
	conn  *config.ConnectionConfig
}

// NewElasticsearchSink builds an ElasticsearchSink from a resolved
// ElasticsearchSinkConfig.
func NewElasticsearchSink(label string, cfg config.ElasticsearchSinkConfig, conn *config.ConnectionConfig) (*ElasticsearchSink, error) {
	if cfg.Index == "" {
		return nil, errs.Config("sink.elasticsearch", "%q: index is required", label)
	}
	merge := cfg.Merge
	if merge == "" {
		merge = config.MergeReplace
	}
	return &ElasticsearchSink{label: label, index: cfg.Index, merge: merge, conn: conn}, nil
}

func (s *ElasticsearchSink) Label() string { return s.label }

func (s *ElasticsearchSink) Write(ctx context.Context, t frame.Table) error {
	client, err := connutil.OpenElasticsearch(s.conn)
	if err != nil {
		return err
	}

	index := s.index
	switch s.merge {
	case config.MergeMakeNext:
		index = withTimestampSuffix(s.index, "")
	case config.MergeReplace:
		resp, err := client.Indices.Delete([]string{s.index}, client.Indices.Delete.WithIgnoreUnavailable(true))
		if err != nil {
			return errs.ConnectionWrap("sink.elasticsearch", err, "delete index %q", s.index)
		}
		resp.Body.Close()
	}

	if len(t.Rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, row := range t.Rows {
		meta := map[string]any{"index": map[string]any{"_index": index}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return errs.RawWrap("sink.elasticsearch", err)
		}
		docLine, err := json.Marshal(row)
		if err != nil {
			return errs.RawWrap("sink.elasticsearch", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	resp, err := client.Bulk(bytes.NewReader(buf.Bytes()), client.Bulk.WithContext(ctx))
	if err != nil {
		return errs.ConnectionWrap("sink.elasticsearch", err, "bulk index %q", index)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errs.Connection("sink.elasticsearch", "bulk index %q returned status %s", index, resp.Status())
	}
	return nil
}
