// Package request implements the Request Group: structurally identical
// to the Source Group, but gated on a Replace signal observed on its own
// declared input frame rather than on the process-wide signal state, and
// reading that input before issuing any requests.
package request

import (
	"context"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/keyword"
	"flowline/pkg/model"
	"flowline/pkg/registry"
	"flowline/pkg/source"
)

// requestSource is the per-entry contract every Request Group member
// implements, mirroring pkg/source's internal groupSource shape; it is
// declared again here because groupSource is unexported in pkg/source.
type requestSource interface {
	Output() string
	fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error)
}

// batchRequest wraps an HTTPBatchSource, reusing the exact machinery
// pkg/source built for http_batch (auth, retry, pagination, URL dedup).
type batchRequest struct{ s *source.HTTPBatchSource }

func (b batchRequest) Output() string { return b.s.Output() }
func (b batchRequest) fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error) {
	in, err := reg.Extract(b.s.Input())
	if err != nil {
		return frame.Frame{}, errs.ComponentWrap("request.http_batch", err, "input %q", b.s.Input())
	}
	return b.s.FetchFromInput(ctx, in.Table())
}

// singleRequest wraps an HTTPSingleSource, reused the same way.
type singleRequest struct{ s *source.HTTPSingleSource }

func (r singleRequest) Output() string { return r.s.Output() }
func (r singleRequest) fetch(ctx context.Context, reg *registry.Registry) (frame.Frame, error) {
	named := make(map[string]frame.Table, len(r.s.Values()))
	for _, ref := range r.s.Values() {
		if _, ok := named[ref.Frame]; ok {
			continue
		}
		in, err := reg.Extract(ref.Frame)
		if err != nil {
			return frame.Frame{}, errs.ComponentWrap("request.http_single", err, "value frame %q", ref.Frame)
		}
		named[ref.Frame] = in.Table()
	}
	return r.s.FetchWithNamed(ctx, named)
}

func lookupModel(modelReg *config.ModelRegistry, label string) (*model.Model, error) {
	if label == "" {
		return nil, nil
	}
	if modelReg == nil {
		return nil, errs.Config("request.lookup_model", "no model registry configured, but model %q referenced", label)
	}
	return modelReg.Get(label)
}

// ParseRequest builds one Request Group member from a resolved OneOf
// entry, emplacing the decoded config's own Keyword fields (output, and
// input for http_batch) against ctx before constructing the adapter.
func ParseRequest(one config.OneOf, ctx map[string]any, modelReg *config.ModelRegistry) (requestSource, error) {
	switch one.Kind {
	case "http_batch":
		var cfg config.HTTPBatchConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("request.parse", err, "http_batch")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("request.parse", err, "http_batch")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := source.NewHTTPBatchSource(cfg, m)
		if err != nil {
			return nil, err
		}
		return batchRequest{s}, nil

	case "http_single":
		var cfg config.HTTPSingleConfig
		if err := one.Decode(&cfg); err != nil {
			return nil, errs.ConfigWrap("request.parse", err, "http_single")
		}
		if err := keyword.EmplaceStruct(&cfg, ctx); err != nil {
			return nil, errs.ConfigWrap("request.parse", err, "http_single")
		}
		m, err := lookupModel(modelReg, cfg.Model)
		if err != nil {
			return nil, err
		}
		s, err := source.NewHTTPSingleSource(cfg, m)
		if err != nil {
			return nil, err
		}
		return singleRequest{s}, nil

	default:
		return nil, errs.Config("request.parse", "unknown request kind %q", one.Kind)
	}
}
