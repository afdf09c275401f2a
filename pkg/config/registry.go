package config

import (
	"flowline/pkg/errs"
)

// Registry is the generic contract every Configurable Registry implements:
// a node name identifying the YAML top-level key, and ExtractParseConfig
// which decodes every labelled entry for that node out of a Pack and
// stores it, accumulating decode failures into a single aggregated
// ConfigError.
type Registry[T any] struct {
	nodeName string
	entries  map[string]*T
}

// NewRegistry constructs an empty registry for the given node name.
func NewRegistry[T any](nodeName string) *Registry[T] {
	return &Registry[T]{nodeName: nodeName, entries: make(map[string]*T)}
}

// NodeName identifies this registry's top-level YAML key.
func (r *Registry[T]) NodeName() string { return r.nodeName }

// ExtractParseConfig decodes every entry for this registry's node out of
// pack. Decode failures are accumulated and returned as one aggregated
// ConfigError. Entries that decoded successfully are stored even when
// another entry failed; callers should treat a non-nil error as
// "registry not usable".
func (r *Registry[T]) ExtractParseConfig(pack *Pack) error {
	var decodeErrs []error
	for _, label := range pack.Entries(r.nodeName) {
		node, _ := pack.node(r.nodeName, label)
		var cfg T
		if err := node.Decode(&cfg); err != nil {
			decodeErrs = append(decodeErrs, fmtLabelErr(r.nodeName, label, err))
			continue
		}
		r.entries[label] = &cfg
	}
	return errs.AggregateConfig(r.nodeName, decodeErrs)
}

// Get returns the decoded config stored under label.
func (r *Registry[T]) Get(label string) (*T, error) {
	cfg, ok := r.entries[label]
	if !ok {
		return nil, errs.Component(r.nodeName, "unknown %s %q", r.nodeName, label)
	}
	return cfg, nil
}

// Labels returns every label currently stored, unordered.
func (r *Registry[T]) Labels() []string {
	out := make([]string, 0, len(r.entries))
	for l := range r.entries {
		out = append(out, l)
	}
	return out
}

// Put stores an already-decoded config directly, bypassing pack parsing.
func (r *Registry[T]) Put(label string, cfg *T) { r.entries[label] = cfg }

// Set merges raw pack entries but defers decoding to a caller-supplied
// function; used where T itself can't directly Decode from a yaml.Node
// (e.g. Model, which needs ordered column decoding).
func (r *Registry[T]) Set(pack *Pack, decode func(label string) (*T, error)) error {
	var decodeErrs []error
	for _, label := range pack.Entries(r.nodeName) {
		cfg, err := decode(label)
		if err != nil {
			decodeErrs = append(decodeErrs, fmtLabelErr(r.nodeName, label, err))
			continue
		}
		r.entries[label] = cfg
	}
	return errs.AggregateConfig(r.nodeName, decodeErrs)
}
