package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
)

// clickhouseEngines maps merge_type to the CREATE TABLE engine clause used
// when make_next needs to create a fresh table: Clickhouse sinks
// additionally honour merge_type by mapping to engine/create-statement
// pairs.
var clickhouseEngines = map[string]string{
	"replacing": "ReplacingMergeTree()",
	"merge":     "MergeTree()",
	"summing":   "SummingMergeTree()",
}

// SQLSink writes rows to a connection-registry table, also backing the
// Clickhouse sink kind when Connection.Kind == "clickhouse" (merge_type
// then selects the CREATE TABLE engine for make_next).
type SQLSink struct {
	label      string
	table      string
	merge      config.MergeMode
	mergeType  string
	clickhouse bool
	db         *sql.DB
}

// NewSQLSink builds a SQLSink from a resolved SQLSinkConfig.
func NewSQLSink(label string, cfg config.SQLSinkConfig, conn *config.ConnectionConfig) (*SQLSink, error) {
	if cfg.Table == "" {
		return nil, errs.Config("sink.sql", "%q: table is required", label)
	}
	db, err := connutil.OpenSQL(conn)
	if err != nil {
		return nil, errs.ConnectionWrap("sink.sql", err, "%q", label)
	}
	merge := cfg.Merge
	if merge == "" {
		merge = config.MergeReplace
	}
	return &SQLSink{
		label: label, table: cfg.Table, merge: merge, mergeType: cfg.MergeType,
		clickhouse: conn != nil && conn.Kind == "clickhouse", db: db,
	}, nil
}

func (s *SQLSink) Label() string { return s.label }

func (s *SQLSink) Write(ctx context.Context, t frame.Table) error {
	target := s.table
	switch s.merge {
	case config.MergeMakeNext:
		target = withTimestampSuffix(s.table, "")
		if s.tableExists(ctx, target) {
			target = randomSuffix(target)
		}
		if err := s.createLike(ctx, target); err != nil {
			return err
		}
	case config.MergeReplace:
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", target)); err != nil {
			return errs.ConnectionWrap("sink.sql", err, "truncate %q", target)
		}
	}
	return s.insertRows(ctx, target, t)
}

func (s *SQLSink) tableExists(ctx context.Context, table string) bool {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table))
	return err == nil
}

func (s *SQLSink) createLike(ctx context.Context, table string) error {
	if s.clickhouse {
		engine := clickhouseEngines[s.mergeType]
		if engine == "" {
			engine = "MergeTree()"
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS %s ENGINE = %s", table, s.table, engine)
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return errs.ConnectionWrap("sink.sql", err, "create %q", table)
		}
		return nil
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING ALL)", table, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.ConnectionWrap("sink.sql", err, "create %q", table)
	}
	return nil
}

func (s *SQLSink) insertRows(ctx context.Context, table string, t frame.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}
	placeholders := make([]string, len(t.Columns))
	for i := range t.Columns {
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(t.Columns, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.ConnectionWrap("sink.sql", err, "begin tx")
	}
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		tx.Rollback()
		return errs.ConnectionWrap("sink.sql", err, "prepare insert")
	}
	defer prepared.Close()

	for _, row := range t.Rows {
		args := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			args[i] = row[col]
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return errs.ConnectionWrap("sink.sql", err, "insert into %q", table)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.ConnectionWrap("sink.sql", err, "commit")
	}
	return nil
}
