// Package config implements Config Packs & Registries: parsing every
// *.yml/*.yaml file under a directory into typed configs indexed by
// registry kind, with stage-config emplacement via Keyword⟨T⟩
// substitution. An os.ExpandEnv pre-pass runs before the yaml.v3
// unmarshal, and decode failures across a directory's files aggregate
// into a single reported error instead of failing on the first one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
)

// Pack is the raw, node-indexed YAML tree read from every config file in
// a directory before any registry has decoded it into a concrete type.
// Scanning is single-level, not recursive, and when two files define the
// same (node, label) pair the later-loaded file's entry overwrites the
// earlier one (see DESIGN.md for the reasoning behind both choices).
type Pack struct {
	nodes map[string]map[string]*yaml.Node
}

// LoadPack reads every *.yml/*.yaml file directly under dir (no
// subdirectories) and merges their top-level node→label→config mappings.
func LoadPack(dir string) (*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.RawWrap("config.load_pack", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	p := &Pack{nodes: make(map[string]map[string]*yaml.Node)}
	for _, path := range files {
		if err := p.mergeFile(path); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pack) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.RawWrap("config.load_pack", err)
	}
	expanded := os.ExpandEnv(string(data))

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return errs.ConfigWrap("config.load_pack", err, "parse %s", path)
	}
	if len(doc.Content) == 0 {
		return nil // empty file
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errs.Config("config.load_pack", "%s: top level must be a mapping", path)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		nodeName := root.Content[i].Value
		labels := root.Content[i+1]
		if labels.Kind != yaml.MappingNode {
			return errs.Config("config.load_pack", "%s: node %q must map label -> config", path, nodeName)
		}
		if p.nodes[nodeName] == nil {
			p.nodes[nodeName] = make(map[string]*yaml.Node)
		}
		for j := 0; j+1 < len(labels.Content); j += 2 {
			label := labels.Content[j].Value
			p.nodes[nodeName][label] = labels.Content[j+1]
		}
	}
	return nil
}

// Entries returns the labels defined under the given node name, sorted.
func (p *Pack) Entries(nodeName string) []string {
	labels := make([]string, 0, len(p.nodes[nodeName]))
	for l := range p.nodes[nodeName] {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (p *Pack) node(nodeName, label string) (*yaml.Node, bool) {
	m, ok := p.nodes[nodeName]
	if !ok {
		return nil, false
	}
	n, ok := m[label]
	return n, ok
}

func fmtLabelErr(nodeName, label string, err error) error {
	return fmt.Errorf("%s %q: %w", nodeName, label, err)
}
