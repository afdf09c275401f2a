package source

import (
	"testing"

	"gopkg.in/yaml.v3"

	"flowline/pkg/config"
)

func decodeOneOf(t *testing.T, src string) config.OneOf {
	t.Helper()
	var one config.OneOf
	if err := yaml.Unmarshal([]byte(src), &one); err != nil {
		t.Fatalf("unmarshal one-of: %v", err)
	}
	return one
}

func TestParseSourceEmplacesPerEntryOutputSymbol(t *testing.T) {
	one := decodeOneOf(t, "csv:\n  output: $csv_out\n  path: /tmp/does-not-matter.csv\n")

	gs, err := ParseSource(one, map[string]any{"csv_out": "resolved_frame"}, "", nil, nil)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if gs.Output() != "resolved_frame" {
		t.Errorf("Output() = %q, want resolved_frame", gs.Output())
	}
}

func TestParseSourceRejectsUnresolvedOutputSymbol(t *testing.T) {
	one := decodeOneOf(t, "csv:\n  output: $csv_out\n  path: /tmp/does-not-matter.csv\n")

	if _, err := ParseSource(one, nil, "", nil, nil); err == nil {
		t.Fatal("expected an error for an unresolved output symbol")
	}
}

func TestParseSourceEmplacesHTTPBatchInputAndOutput(t *testing.T) {
	one := decodeOneOf(t, "http_batch:\n  input: $urls\n  output: $out\n  url_column: url\n")

	gs, err := ParseSource(one, map[string]any{"urls": "url_frame", "out": "batch_out"}, "", nil, nil)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if gs.Output() != "batch_out" {
		t.Errorf("Output() = %q, want batch_out", gs.Output())
	}
	bs, ok := gs.(batchSource)
	if !ok {
		t.Fatalf("expected a batchSource, got %T", gs)
	}
	if bs.s.input != "url_frame" {
		t.Errorf("input = %q, want url_frame", bs.s.input)
	}
}
