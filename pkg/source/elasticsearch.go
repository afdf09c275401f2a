package source

import (
	"bytes"
	"context"
	"encoding/json"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// ElasticsearchSource runs a search query against a connection-registry
// entry and flattens hits._source into rows (supplemented domain source;
// see SPEC_FULL.md's DOMAIN STACK wiring for go-elasticsearch).
type ElasticsearchSource struct {
	output string
	index  string
	query  map[string]any
	size   int
	conn   *config.ConnectionConfig
	model  *model.Model
}

// NewElasticsearchSource builds an ElasticsearchSource from a resolved
// ElasticsearchSourceConfig.
func NewElasticsearchSource(cfg config.ElasticsearchSourceConfig, conn *config.ConnectionConfig, m *model.Model) (*ElasticsearchSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.elasticsearch", "output symbol unresolved")
	}
	if cfg.Index == "" {
		return nil, errs.Config("source.elasticsearch", "%q: index is required", output)
	}
	size := cfg.Size
	if size <= 0 {
		size = 1000
	}
	query := cfg.Query
	if query == nil {
		query = map[string]any{"match_all": map[string]any{}}
	}
	return &ElasticsearchSource{output: output, index: cfg.Index, query: query, size: size, conn: conn, model: m}, nil
}

func (s *ElasticsearchSource) Output() string { return s.output }

func (s *ElasticsearchSource) Fetch(ctx context.Context) (frame.Frame, error) {
	client, err := connutil.OpenElasticsearch(s.conn)
	if err != nil {
		return frame.Frame{}, err
	}

	body := map[string]any{"query": s.query, "size": s.size}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return frame.Frame{}, errs.RawWrap("source.elasticsearch", err)
	}

	resp, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(s.index),
		client.Search.WithBody(&buf),
	)
	if err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.elasticsearch", err, "search failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return frame.Frame{}, errs.Connection("source.elasticsearch", "search returned status %s", resp.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.elasticsearch", err, "decode failed")
	}

	rows := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		rows = append(rows, h.Source)
	}
	return buildFrame(rows, s.model)
}
