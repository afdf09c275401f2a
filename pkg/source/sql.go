package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"flowline/pkg/config"
	"flowline/pkg/connutil"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// SQLSource runs a query against a connection-registry entry and returns
// the result set as a frame, opening through database/sql +
// connutil.OpenSQL rather than holding a long-lived streaming
// connection.
type SQLSource struct {
	output string
	query  string
	db     *sql.DB
}

// NewSQLSource builds a SQLSource from a resolved SQLSourceConfig. Query
// is used verbatim when set; otherwise Table plus m's declared columns
// derive a "SELECT {projection} FROM {table}" query.
func NewSQLSource(cfg config.SQLSourceConfig, conn *config.ConnectionConfig, m *model.Model) (*SQLSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.sql", "output symbol unresolved")
	}
	query := cfg.Query
	if query == "" {
		if cfg.Table == "" || m == nil {
			return nil, errs.Config("source.sql", "%q: query requires either a literal query or a table+model", output)
		}
		sch, err := m.Schema()
		if err != nil {
			return nil, err
		}
		query = fmt.Sprintf("SELECT %s FROM %s", strings.Join(sch.Names, ", "), cfg.Table)
	}
	db, err := connutil.OpenSQL(conn)
	if err != nil {
		return nil, errs.ConnectionWrap("source.sql", err, "%q", output)
	}
	return &SQLSource{output: output, query: query, db: db}, nil
}

func (s *SQLSource) Output() string { return s.output }

func (s *SQLSource) Fetch(ctx context.Context) (frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.sql", err, "query failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.sql", err, "columns failed")
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return frame.Frame{}, errs.ConnectionWrap("source.sql", err, "scan failed")
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return frame.Frame{}, errs.ConnectionWrap("source.sql", err, "rows error")
	}
	return buildFrame(out, nil)
}
