package config

import (
	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
	"flowline/pkg/keyword"
	"flowline/pkg/model"
)

// DecodeModel decodes a `model:<label>:` mapping node into an ordered
// model.Model, preserving YAML declaration order (yaml.v3 would erase
// this if decoded straight into a Go map, so this walks node.Content
// pairs directly — the same technique the Keyword/OneOf types use).
func DecodeModel(label string, node *yaml.Node) (*model.Model, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errs.Config("config.model", "%q: must be a mapping of column -> field info", label)
	}
	m := &model.Model{Label: label}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name keyword.Keyword[string]
		if err := node.Content[i].Decode(&name); err != nil {
			return nil, errs.ConfigWrap("config.model", err, "%q: column %d name", label, i/2)
		}
		var field keyword.Keyword[model.FieldInfo]
		if err := node.Content[i+1].Decode(&field); err != nil {
			return nil, errs.ConfigWrap("config.model", err, "%q: column %d field", label, i/2)
		}
		m.Columns = append(m.Columns, model.Column{Name: name, Field: field})
	}
	return m, nil
}
