package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"flowline/pkg/config"
	"flowline/pkg/keyword"
)

func TestResolvePathsRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := resolvePaths("test", "a.csv", nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != filepath.Join(dir, "a.csv") {
		t.Errorf("expected resolved path, got %v", out)
	}
}

func TestResolvePathsNoPathConfigured(t *testing.T) {
	if _, err := resolvePaths("test", "", nil, ""); err == nil {
		t.Fatal("expected error for missing path/paths")
	}
}

func TestCSVSourceFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "id,name\n1,alice\n2,bob\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.CSVSourceConfig{Output: keyword.Of("out"), Path: "data.csv"}
	s, err := NewCSVSource(cfg, dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}
	f, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	table := f.Table()
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["name"] != "alice" {
		t.Errorf("expected alice, got %v", table.Rows[0]["name"])
	}
}

func TestJSONSourceFetchArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	content := `[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.JSONSourceConfig{Output: keyword.Of("out"), Path: "data.json"}
	s, err := NewJSONSource(cfg, dir, nil)
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	f, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	table := f.Table()
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
}

func TestJSONSourceFetchNDJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.ndjson")
	content := "{\"id\":1}\n{\"id\":2}\nnot json\n{\"id\":3}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.JSONSourceConfig{Output: keyword.Of("out"), Path: "data.ndjson"}
	s, err := NewJSONSource(cfg, dir, nil)
	if err != nil {
		t.Fatalf("NewJSONSource: %v", err)
	}
	f, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	table := f.Table()
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows (malformed line skipped), got %d", len(table.Rows))
	}
}
