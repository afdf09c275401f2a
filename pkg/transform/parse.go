package transform

import (
	"gopkg.in/yaml.v3"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/expr"
	"flowline/pkg/keyword"
)

// ParseStep decodes one config.OneOf step entry into a concrete Step,
// emplacing every Keyword-typed argument the step kind accepts (drop's
// column list, join's right frame name, sql's query text) against ctx
// before the step is built.
func ParseStep(one config.OneOf, ctx map[string]any) (Step, error) {
	switch one.Kind {
	case "select":
		pairs, err := decodeNamedExprs(one.Node)
		if err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "select")
		}
		return selectStep{pairs: pairs}, nil
	case "with_columns":
		pairs, err := decodeNamedExprs(one.Node)
		if err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "with_columns")
		}
		return withColumnsStep{pairs: pairs}, nil
	case "drop":
		return parseDrop(one.Node, ctx)
	case "join":
		return parseJoin(one.Node, ctx)
	case "sql":
		return parseSQL(one.Node, ctx)
	case "unnest_list":
		var args struct {
			Column string `yaml:"column"`
		}
		if err := one.Node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "unnest_list")
		}
		return unnestListStep{column: args.Column}, nil
	case "unnest_struct":
		var args struct {
			Column string `yaml:"column"`
		}
		if err := one.Node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "unnest_struct")
		}
		return unnestStructStep{column: args.Column}, nil
	case "unnest_list_of_struct":
		var args struct {
			Column string `yaml:"column"`
		}
		if err := one.Node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "unnest_list_of_struct")
		}
		return unnestListOfStructStep{column: args.Column}, nil
	case "time":
		var args struct {
			Include []string `yaml:"include"`
			Into    string   `yaml:"into"`
		}
		if err := one.Node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "time")
		}
		return timeStep{include: args.Include, into: args.Into}, nil
	case "uniform_id_type":
		var args struct {
			Columns []string `yaml:"columns"`
			To      string   `yaml:"to"`
		}
		if err := one.Node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "uniform_id_type")
		}
		return uniformIDTypeStep{columns: args.Columns, to: args.To}, nil
	case "filter":
		return parseFilterStep(one.Node)
	default:
		return nil, errs.Config("transform.parse", "unknown step kind %q", one.Kind)
	}
}

// decodeNamedExprs walks an ordered `alias: expression` mapping directly
// (select/with_columns both need declaration order preserved), the same
// yaml.Node.Content-walking technique model_config.go uses.
func decodeNamedExprs(node *yaml.Node) ([]namedExpr, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errs.Config("transform.parse", "expected a mapping of alias -> expression")
	}
	pairs := make([]namedExpr, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		alias := node.Content[i].Value
		e, err := expr.Parse(node.Content[i+1])
		if err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "alias %q", alias)
		}
		pairs = append(pairs, namedExpr{Alias: alias, Expr: e})
	}
	return pairs, nil
}

// parseDrop decodes drop's column list as Keyword[string] entries so a
// column name can itself be supplied as a stage emplace symbol.
func parseDrop(node *yaml.Node, ctx map[string]any) (Step, error) {
	var cols []keyword.Keyword[string]
	if err := node.Decode(&cols); err != nil {
		return nil, errs.ConfigWrap("transform.parse", err, "drop")
	}
	resolved := make([]string, len(cols))
	for i, c := range cols {
		c, err := c.Emplace(ctx)
		if err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "drop: column %d", i)
		}
		resolved[i], _ = c.Value()
	}
	return dropStep{columns: resolved}, nil
}

func parseJoin(node *yaml.Node, ctx map[string]any) (Step, error) {
	var args struct {
		Right       keyword.Keyword[string] `yaml:"right"`
		RightSelect map[string]any          `yaml:"right_select"`
		Prefix      string                  `yaml:"prefix"`
		On          []struct {
			Left  string `yaml:"left"`
			Right string `yaml:"right"`
		} `yaml:"on"`
		How string `yaml:"how"`
	}
	if err := node.Decode(&args); err != nil {
		return nil, errs.ConfigWrap("transform.parse", err, "join")
	}
	right, err := args.Right.Emplace(ctx)
	if err != nil {
		return nil, errs.ConfigWrap("transform.parse", err, "join.right")
	}
	rightFrame, _ := right.Value()

	var rightSelectNode *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "right_select" {
			rightSelectNode = node.Content[i+1]
		}
	}
	var rightSelect []namedExpr
	if rightSelectNode != nil {
		var err error
		rightSelect, err = decodeNamedExprs(rightSelectNode)
		if err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "join.right_select")
		}
	}
	if args.How == "" {
		args.How = string(joinInner)
	}
	on := make([]joinKey, 0, len(args.On))
	for _, k := range args.On {
		on = append(on, joinKey{Left: k.Left, Right: k.Right})
	}
	return joinStep{
		right:       rightFrame,
		rightSelect: rightSelect,
		prefix:      args.Prefix,
		on:          on,
		how:         joinHow(args.How),
	}, nil
}

// parseSQL decodes either the bare scalar form (`sql: "SELECT ..."`) or
// the mapping form (`sql: {query: "..."}`) into a Keyword so the whole
// query text can itself be supplied as a stage emplace symbol.
func parseSQL(node *yaml.Node, ctx map[string]any) (Step, error) {
	var q keyword.Keyword[string]
	if node.Kind == yaml.ScalarNode {
		if err := node.Decode(&q); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "sql")
		}
	} else {
		var args struct {
			Query keyword.Keyword[string] `yaml:"query"`
		}
		if err := node.Decode(&args); err != nil {
			return nil, errs.ConfigWrap("transform.parse", err, "sql")
		}
		q = args.Query
	}
	q, err := q.Emplace(ctx)
	if err != nil {
		return nil, errs.ConfigWrap("transform.parse", err, "sql")
	}
	query, _ := q.Value()
	return parseSQLQuery(query)
}
