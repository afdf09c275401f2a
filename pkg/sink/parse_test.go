package sink

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

func TestParseSinkBuildsCSVSink(t *testing.T) {
	dir := t.TempDir()
	one := decodeOneOf(t, "csv:\n  path: out.csv\n  merge: replace\n")

	s, err := ParseSink("stage", one, nil, dir, nil)
	if err != nil {
		t.Fatalf("ParseSink: %v", err)
	}
	if s.Label() != "stage" {
		t.Errorf("Label() = %q, want stage", s.Label())
	}
}

func TestParseSinkRejectsUnknownKind(t *testing.T) {
	one := decodeOneOf(t, "bogus:\n  path: out.csv\n")
	if _, err := ParseSink("stage", one, nil, "", nil); err == nil {
		t.Fatal("expected an error for an unknown sink kind")
	}
}
