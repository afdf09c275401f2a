package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
)

// CSVSink writes an eager frame's table to a delimited file.
type CSVSink struct {
	label     string
	path      string
	separator rune
	merge     config.MergeMode
}

// NewCSVSink builds a CSVSink from a resolved CSVSinkConfig.
func NewCSVSink(label string, cfg config.CSVSinkConfig, configDir string) (*CSVSink, error) {
	if cfg.Path == "" {
		return nil, errs.Config("sink.csv", "%q: path is required", label)
	}
	path := cfg.Path
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}
	sep := ','
	if cfg.Separator != "" {
		sep = rune(cfg.Separator[0])
	}
	merge := cfg.Merge
	if merge == "" {
		merge = config.MergeReplace
	}
	return &CSVSink{label: label, path: path, separator: sep, merge: merge}, nil
}

func (s *CSVSink) Label() string { return s.label }

func (s *CSVSink) Write(ctx context.Context, t frame.Table) error {
	target := s.path
	switch s.merge {
	case config.MergeMakeNext:
		target = withTimestampSuffix(pathStem(s.path), filepath.Ext(s.path))
		if _, err := os.Stat(target); err == nil {
			target = randomSuffix(pathStem(target)) + filepath.Ext(s.path)
		}
		return writeCSVFile(target, t, s.separator, true)
	case config.MergeInsert:
		_, err := os.Stat(s.path)
		writeHeader := os.IsNotExist(err)
		return appendCSVFile(s.path, t, s.separator, writeHeader)
	default: // replace
		return writeCSVFile(target, t, s.separator, true)
	}
}

func pathStem(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}

func writeCSVFile(path string, t frame.Table, sep rune, writeHeader bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.ConnectionWrap("sink.csv", err, "path %q", path)
	}
	defer f.Close()
	return writeCSVRows(f, t, sep, writeHeader)
}

func appendCSVFile(path string, t frame.Table, sep rune, writeHeader bool) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.ConnectionWrap("sink.csv", err, "path %q", path)
	}
	defer f.Close()
	return writeCSVRows(f, t, sep, writeHeader)
}

func writeCSVRows(f *os.File, t frame.Table, sep rune, writeHeader bool) error {
	w := csv.NewWriter(f)
	w.Comma = sep
	if writeHeader {
		if err := w.Write(t.Columns); err != nil {
			return errs.RawWrap("sink.csv", err)
		}
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			record[i] = toCSVField(row[col])
		}
		if err := w.Write(record); err != nil {
			return errs.RawWrap("sink.csv", err)
		}
	}
	w.Flush()
	return w.Error()
}

func toCSVField(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// JSONSink writes an eager frame's table as a JSON array or appends rows
// as newline-delimited JSON, mirroring the source package's array/NDJSON
// detection in reverse.
type JSONSink struct {
	label string
	path  string
	merge config.MergeMode
}

// NewJSONSink builds a JSONSink from a resolved JSONSinkConfig.
func NewJSONSink(label string, cfg config.JSONSinkConfig, configDir string) (*JSONSink, error) {
	if cfg.Path == "" {
		return nil, errs.Config("sink.json", "%q: path is required", label)
	}
	path := cfg.Path
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}
	merge := cfg.Merge
	if merge == "" {
		merge = config.MergeReplace
	}
	return &JSONSink{label: label, path: path, merge: merge}, nil
}

func (s *JSONSink) Label() string { return s.label }

func (s *JSONSink) Write(ctx context.Context, t frame.Table) error {
	switch s.merge {
	case config.MergeMakeNext:
		target := withTimestampSuffix(pathStem(s.path), filepath.Ext(s.path))
		if _, err := os.Stat(target); err == nil {
			target = randomSuffix(pathStem(target)) + filepath.Ext(s.path)
		}
		return writeJSONArray(target, t)
	case config.MergeInsert:
		return appendJSONLines(s.path, t)
	default: // replace
		return writeJSONArray(s.path, t)
	}
}

func writeJSONArray(path string, t frame.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.ConnectionWrap("sink.json", err, "path %q", path)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(t.Rows); err != nil {
		return errs.RawWrap("sink.json", err)
	}
	return nil
}

func appendJSONLines(path string, t frame.Table) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.ConnectionWrap("sink.json", err, "path %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, row := range t.Rows {
		b, err := json.Marshal(row)
		if err != nil {
			return errs.RawWrap("sink.json", err)
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return errs.RawWrap("sink.json", err)
		}
	}
	return w.Flush()
}
