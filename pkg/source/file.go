package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// resolvePaths expands a path/paths pair into a concrete, glob-expanded
// file list, resolving relative entries against CONFIG_DIR.
func resolvePaths(op string, path string, paths []string, configDir string) ([]string, error) {
	all := paths
	if path != "" {
		all = append([]string{path}, all...)
	}
	if len(all) == 0 {
		return nil, errs.Config(op, "no path or paths configured")
	}
	var out []string
	for _, p := range all {
		if !filepath.IsAbs(p) && configDir != "" {
			p = filepath.Join(configDir, p)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errs.ConfigWrap(op, err, "invalid glob %q", p)
		}
		if len(matches) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

// CSVSource reads one or more delimited files into a single frame.
type CSVSource struct {
	output    string
	paths     []string
	separator rune
	model     *model.Model
}

// NewCSVSource builds a CSVSource from a resolved CSVSourceConfig.
func NewCSVSource(cfg config.CSVSourceConfig, configDir string, m *model.Model) (*CSVSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.csv", "output symbol unresolved")
	}
	paths, err := resolvePaths("source.csv", cfg.Path, cfg.Paths, configDir)
	if err != nil {
		return nil, err
	}
	sep := ','
	if cfg.Separator != "" {
		sep = rune(cfg.Separator[0])
	}
	return &CSVSource{output: output, paths: paths, separator: sep, model: m}, nil
}

func (s *CSVSource) Output() string { return s.output }

func (s *CSVSource) Fetch(ctx context.Context) (frame.Frame, error) {
	var rows []map[string]any
	for _, p := range s.paths {
		select {
		case <-ctx.Done():
			return frame.Frame{}, ctx.Err()
		default:
		}
		fileRows, err := readCSVFile(p, s.separator)
		if err != nil {
			return frame.Frame{}, errs.ConnectionWrap("source.csv", err, "path %q", p)
		}
		rows = append(rows, fileRows...)
	}
	return buildFrame(rows, s.model)
}

func readCSVFile(path string, sep rune) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	var rows []map[string]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// JSONSource reads one or more JSON (array or newline-delimited) files
// into a single frame.
type JSONSource struct {
	output string
	paths  []string
	model  *model.Model
}

// NewJSONSource builds a JSONSource from a resolved JSONSourceConfig.
func NewJSONSource(cfg config.JSONSourceConfig, configDir string, m *model.Model) (*JSONSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.json", "output symbol unresolved")
	}
	paths, err := resolvePaths("source.json", cfg.Path, cfg.Paths, configDir)
	if err != nil {
		return nil, err
	}
	return &JSONSource{output: output, paths: paths, model: m}, nil
}

func (s *JSONSource) Output() string { return s.output }

func (s *JSONSource) Fetch(ctx context.Context) (frame.Frame, error) {
	var rows []map[string]any
	for _, p := range s.paths {
		select {
		case <-ctx.Done():
			return frame.Frame{}, ctx.Err()
		default:
		}
		fileRows, err := readJSONFile(p)
		if err != nil {
			return frame.Frame{}, errs.ConnectionWrap("source.json", err, "path %q", p)
		}
		rows = append(rows, fileRows...)
	}
	return buildFrame(rows, s.model)
}

// readJSONFile peeks the first token to distinguish a JSON array from
// newline-delimited JSON.
func readJSONFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		var rows []map[string]any
		for dec.More() {
			var row map[string]any
			if err := dec.Decode(&row); err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			continue // skip malformed NDJSON lines
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// buildFrame wraps rows as a lazy frame. When m is non-nil its declared
// column order and schema are used directly; otherwise both are inferred
// from the rows themselves by default.
func buildFrame(rows []map[string]any, m *model.Model) (frame.Frame, error) {
	if m != nil {
		sch, err := m.Schema()
		if err != nil {
			return frame.Frame{}, err
		}
		schema := make(map[string]model.DType, len(sch.Types))
		for k, v := range sch.Types {
			schema[k] = v
		}
		return frame.NewLazy(frame.Table{Columns: sch.Names, Schema: schema, Rows: rows}), nil
	}
	cols, schema := schemaFromRows(rows)
	return frame.NewLazy(frame.Table{Columns: cols, Schema: schema, Rows: rows}), nil
}
