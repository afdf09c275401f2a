package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var errBoom = errors.New("boom")

const registryFixtureYAML = `
transform:
  clean_rows:
    input: $in_frame
    output: cleaned
    steps:
      - drop: ["scratch_col"]
  bad_one:
    input: $in_frame
    output: [not, a, string]
`

func writeRegistryFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(registryFixtureYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return dir
}

func TestRegistryExtractParseConfigDecodesEntries(t *testing.T) {
	pack, err := LoadPack(writeRegistryFixture(t))
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	r := NewRegistry[TransformGroupConfig]("transform")
	if r.NodeName() != "transform" {
		t.Errorf("NodeName = %q", r.NodeName())
	}

	err = r.ExtractParseConfig(pack)
	if err == nil {
		t.Fatal("expected an aggregated error from the malformed bad_one entry")
	}

	cfg, getErr := r.Get("clean_rows")
	if getErr != nil {
		t.Fatalf("Get(clean_rows): %v", getErr)
	}
	if cfg == nil {
		t.Fatal("expected clean_rows to still decode despite bad_one failing")
	}
}

func TestRegistryGetUnknownLabelErrors(t *testing.T) {
	r := NewRegistry[TransformGroupConfig]("transform")
	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected an error for an unknown label")
	}
}

func TestRegistryPutAndLabels(t *testing.T) {
	r := NewRegistry[TransformGroupConfig]("transform")
	r.Put("a", &TransformGroupConfig{})
	r.Put("b", &TransformGroupConfig{})

	labels := r.Labels()
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", labels)
	}
	if _, err := r.Get("a"); err != nil {
		t.Errorf("Get(a): %v", err)
	}
}

func TestRegistrySetUsesCustomDecodeFunc(t *testing.T) {
	pack, err := LoadPack(writeRegistryFixture(t))
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	r := NewRegistry[TransformGroupConfig]("transform")
	var decoded []string
	err = r.Set(pack, func(label string) (*TransformGroupConfig, error) {
		decoded = append(decoded, label)
		return &TransformGroupConfig{}, nil
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("expected decode called for both labels, got %v", decoded)
	}
	if len(r.Labels()) != 2 {
		t.Errorf("expected both labels stored, got %v", r.Labels())
	}
}

func TestRegistrySetAggregatesDecodeErrors(t *testing.T) {
	pack, err := LoadPack(writeRegistryFixture(t))
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	r := NewRegistry[TransformGroupConfig]("transform")
	setErr := r.Set(pack, func(label string) (*TransformGroupConfig, error) {
		if label == "bad_one" {
			return nil, errBoom
		}
		return &TransformGroupConfig{}, nil
	})
	if setErr == nil {
		t.Fatal("expected an aggregated error")
	}
	if _, getErr := r.Get("clean_rows"); getErr != nil {
		t.Errorf("expected clean_rows to still be stored, got %v", getErr)
	}
}
