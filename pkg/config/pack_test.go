package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writePackFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadPackMergesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "a.yaml", "transform:\n  step_a:\n    input: $x\n    output: y\n")
	writePackFile(t, dir, "b.yaml", "sink:\n  step_b:\n    input: $y\n    sinks: []\n")

	pack, err := LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	if got := pack.Entries("transform"); len(got) != 1 || got[0] != "step_a" {
		t.Errorf("transform entries = %v", got)
	}
	if got := pack.Entries("sink"); len(got) != 1 || got[0] != "step_b" {
		t.Errorf("sink entries = %v", got)
	}
}

func TestLoadPackLaterFileOverridesSameLabel(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "1-first.yaml", "transform:\n  step_a:\n    input: $x\n    output: first\n")
	writePackFile(t, dir, "2-second.yaml", "transform:\n  step_a:\n    input: $x\n    output: second\n")

	pack, err := LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	node, ok := pack.node("transform", "step_a")
	if !ok {
		t.Fatal("expected step_a to be present")
	}
	var cfg TransformGroupConfig
	if err := node.Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, _ := cfg.Output.Value()
	if out != "second" {
		t.Errorf("expected the later file to win, got %q", out)
	}
}

func TestLoadPackIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "transform.yaml", "transform:\n  step_a:\n    input: $x\n    output: y\n")
	writePackFile(t, dir, "README.md", "not yaml config")

	pack, err := LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	if got := pack.Entries("transform"); len(got) != 1 {
		t.Errorf("expected transform entries unaffected by README.md, got %v", got)
	}
}

func TestLoadPackSkipsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "empty.yaml", "")

	pack, err := LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	if len(pack.Entries("transform")) != 0 {
		t.Errorf("expected no entries from an empty file")
	}
}

func TestLoadPackRejectsNonMappingTopLevel(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "bad.yaml", "- not\n- a\n- mapping\n")

	if _, err := LoadPack(dir); err == nil {
		t.Fatal("expected an error for a non-mapping top level")
	}
}

func TestLoadPackRejectsNonMappingNode(t *testing.T) {
	dir := t.TempDir()
	writePackFile(t, dir, "bad.yaml", "transform: [not, a, mapping]\n")

	if _, err := LoadPack(dir); err == nil {
		t.Fatal("expected an error when a node's value isn't label -> config")
	}
}

func TestLoadPackExpandsEnvVars(t *testing.T) {
	t.Setenv("FLOWLINE_TEST_OUTPUT", "expanded_value")
	dir := t.TempDir()
	writePackFile(t, dir, "env.yaml", "transform:\n  step_a:\n    input: $x\n    output: ${FLOWLINE_TEST_OUTPUT}\n")

	pack, err := LoadPack(dir)
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	node, _ := pack.node("transform", "step_a")
	var cfg TransformGroupConfig
	if err := node.Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, _ := cfg.Output.Value()
	if out != "expanded_value" {
		t.Errorf("expected env var expanded, got %q", out)
	}
}

func TestLoadPackMissingDirErrors(t *testing.T) {
	if _, err := LoadPack(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
