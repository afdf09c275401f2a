package transform

import (
	"strings"

	"flowline/pkg/errs"
)

// parseSQLQuery parses the narrow SQL subset sqlStep executes: a single
// `SELECT <cols> FROM self [WHERE <col> = <literal>]` statement. "self" is
// the alias for the transform's input frame; other named frames cannot be
// referenced.
func parseSQLQuery(q string) (Step, error) {
	upper := strings.ToUpper(q)
	fromIdx := strings.Index(upper, " FROM ")
	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT ") || fromIdx < 0 {
		return nil, errs.Config("transform.sql", "unsupported statement, expected SELECT ... FROM self [WHERE ...]")
	}
	colsPart := strings.TrimSpace(q[len("SELECT ") : fromIdx])
	rest := strings.TrimSpace(q[fromIdx+len(" FROM "):])

	var wherePart string
	upperRest := strings.ToUpper(rest)
	if whereIdx := strings.Index(upperRest, " WHERE "); whereIdx >= 0 {
		wherePart = strings.TrimSpace(rest[whereIdx+len(" WHERE "):])
		rest = strings.TrimSpace(rest[:whereIdx])
	}
	if strings.ToLower(rest) != "self" {
		return nil, errs.Config("transform.sql", "only FROM self is supported, got %q", rest)
	}

	cols, err := parseSQLColumns(colsPart)
	if err != nil {
		return nil, err
	}

	var where *sqlWhere
	if wherePart != "" {
		where, err = parseSQLWhere(wherePart)
		if err != nil {
			return nil, err
		}
	}
	return sqlStep{columns: cols, where: where}, nil
}

func parseSQLColumns(part string) ([]sqlColumn, error) {
	if strings.TrimSpace(part) == "*" {
		return []sqlColumn{{Name: "*"}}, nil
	}
	var cols []sqlColumn
	for _, raw := range strings.Split(part, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		fields := strings.Fields(raw)
		switch len(fields) {
		case 1:
			cols = append(cols, sqlColumn{Name: fields[0], Alias: fields[0]})
		case 3:
			if strings.ToUpper(fields[1]) != "AS" {
				return nil, errs.Config("transform.sql", "expected AS, got %q", fields[1])
			}
			cols = append(cols, sqlColumn{Name: fields[0], Alias: fields[2]})
		default:
			return nil, errs.Config("transform.sql", "cannot parse column expression %q", raw)
		}
	}
	if len(cols) == 0 {
		return nil, errs.Config("transform.sql", "empty column list")
	}
	return cols, nil
}

func parseSQLWhere(part string) (*sqlWhere, error) {
	idx := strings.Index(part, "=")
	if idx < 0 {
		return nil, errs.Config("transform.sql", "only equality WHERE clauses are supported, got %q", part)
	}
	col := strings.TrimSpace(part[:idx])
	val := strings.TrimSpace(part[idx+1:])
	val = strings.Trim(val, `'"`)
	return &sqlWhere{Column: col, Value: val}, nil
}
