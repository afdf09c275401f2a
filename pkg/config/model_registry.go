package config

import (
	"flowline/pkg/errs"
	"flowline/pkg/model"
)

// ModelRegistry indexes named model.Model entries (the `model` node in
// §6's YAML). Decoding needs order-preserving custom logic (see
// DecodeModel), so entries are populated via Registry.Set rather than
// ExtractParseConfig.
type ModelRegistry = Registry[model.Model]

// NewModelRegistry constructs the `model` node's registry.
func NewModelRegistry() *ModelRegistry {
	return NewRegistry[model.Model]("model")
}

// ExtractModelConfig populates r from pack's `model` node, using
// DecodeModel for each labelled entry (Registry.Set's decode callback
// needs access to Pack.node, unexported outside this package, so this
// helper lives here rather than at the call site).
func (r *ModelRegistry) ExtractModelConfig(pack *Pack) error {
	return r.Set(pack, func(label string) (*model.Model, error) {
		node, ok := pack.node("model", label)
		if !ok {
			return nil, errs.Config("config.model", "%q: missing node", label)
		}
		return DecodeModel(label, node)
	})
}
