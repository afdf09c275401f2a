package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flowline/pkg/config"
	"flowline/pkg/frame"
)

func sampleTable() frame.Table {
	return frame.Table{
		Columns: []string{"id", "name"},
		Rows: []map[string]any{
			{"id": 1, "name": "alice"},
			{"id": 2, "name": "bob"},
		},
	}
}

func TestCSVSinkReplaceWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink("out", config.CSVSinkConfig{Path: "out.csv", Merge: config.MergeReplace}, dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := s.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), string(b))
	}
	if lines[0] != "id,name" {
		t.Errorf("expected header id,name, got %q", lines[0])
	}
}

func TestCSVSinkInsertAppendsWithoutDuplicateHeader(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink("out", config.CSVSinkConfig{Path: "out.csv", Merge: config.MergeInsert}, dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := s.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := s.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 1 header + 4 rows, got %d lines: %q", len(lines), string(b))
	}
}

func TestCSVSinkMakeNextCreatesNewTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink("out", config.CSVSinkConfig{Path: "out.csv", Merge: config.MergeMakeNext}, dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := s.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "out_*.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 timestamped file, got %v", matches)
	}
}

func TestJSONSinkReplaceWritesArray(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONSink("out", config.JSONSinkConfig{Path: "out.json", Merge: config.MergeReplace}, dir)
	if err != nil {
		t.Fatalf("NewJSONSink: %v", err)
	}
	if err := s.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(b)), "[") {
		t.Errorf("expected JSON array output, got %q", string(b))
	}
}
