package transform

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/registry"
)

// filterOperator enumerates the comparison/existence operators a filter
// condition may use.
type filterOperator string

const (
	filterOpEqual       filterOperator = "eq"
	filterOpNotEqual    filterOperator = "neq"
	filterOpGreaterThan filterOperator = "gt"
	filterOpGreaterOrEq filterOperator = "gte"
	filterOpLessThan    filterOperator = "lt"
	filterOpLessOrEq    filterOperator = "lte"
	filterOpContains    filterOperator = "contains"
	filterOpStartsWith  filterOperator = "startswith"
	filterOpEndsWith    filterOperator = "endswith"
	filterOpRegex       filterOperator = "regex"
	filterOpIn          filterOperator = "in"
	filterOpNotIn       filterOperator = "notin"
	filterOpExists      filterOperator = "exists"
	filterOpNotExists   filterOperator = "notexists"
	filterOpIsNull      filterOperator = "null"
	filterOpIsNotNull   filterOperator = "notnull"
)

// filterLogicalOp combines a group's child nodes.
type filterLogicalOp string

const (
	filterAnd filterLogicalOp = "and"
	filterOr  filterLogicalOp = "or"
)

// filterCondition is one leaf predicate: a dotted field path, an
// operator, and (for comparison operators) a value to compare against.
type filterCondition struct {
	Field string         `yaml:"field"`
	Op    filterOperator `yaml:"op"`
	Value any            `yaml:"value,omitempty"`
}

// filterGroup combines Conditions with a logical operator; Conditions may
// themselves be groups, giving the same recursive and/or tree shape the
// config supports.
type filterGroup struct {
	Operator   filterLogicalOp `yaml:"operator"`
	Conditions []filterNode    `yaml:"conditions"`
}

// filterNode discriminates a leaf condition from a nested group.
type filterNode struct {
	Condition *filterCondition
	Group     *filterGroup
}

func (n *filterNode) UnmarshalYAML(node *yaml.Node) error {
	var probe struct {
		Field string `yaml:"field"`
	}
	_ = node.Decode(&probe)
	if probe.Field != "" {
		var c filterCondition
		if err := node.Decode(&c); err != nil {
			return errs.ConfigWrap("transform.filter", err, "condition")
		}
		n.Condition = &c
		return nil
	}
	var g filterGroup
	if err := node.Decode(&g); err != nil {
		return errs.ConfigWrap("transform.filter", err, "group")
	}
	n.Group = &g
	return nil
}

// filterStep keeps rows for which root evaluates true, dropping the rest;
// row order and schema are otherwise unchanged. A condition/group and/or
// tree over a fixed operator set, walked here against frame.Table rows
// instead of single streamed records.
type filterStep struct {
	root filterNode
}

func parseFilterStep(node *yaml.Node) (Step, error) {
	var root filterNode
	if err := node.Decode(&root); err != nil {
		return nil, errs.ConfigWrap("transform.filter", err, "root")
	}
	return filterStep{root: root}, nil
}

func (s filterStep) Apply(in frame.Table, _ *registry.Registry) (frame.Table, error) {
	out := frame.Table{Columns: in.Columns, Schema: in.Schema}
	for _, row := range in.Rows {
		keep, err := evalFilterNode(&s.root, row)
		if err != nil {
			return frame.Table{}, errs.TaskWrap("transform.filter", err, "row")
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func evalFilterNode(n *filterNode, row map[string]any) (bool, error) {
	switch {
	case n.Condition != nil:
		return evalFilterCondition(n.Condition, row)
	case n.Group != nil:
		return evalFilterGroup(n.Group, row)
	default:
		return true, nil
	}
}

func evalFilterGroup(g *filterGroup, row map[string]any) (bool, error) {
	if len(g.Conditions) == 0 {
		return true, nil
	}
	switch g.Operator {
	case filterOr:
		for i := range g.Conditions {
			ok, err := evalFilterNode(&g.Conditions[i], row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default: // filterAnd is the default combinator
		for i := range g.Conditions {
			ok, err := evalFilterNode(&g.Conditions[i], row)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func evalFilterCondition(c *filterCondition, row map[string]any) (bool, error) {
	value, exists := getNestedField(row, c.Field)

	switch c.Op {
	case filterOpExists:
		return exists, nil
	case filterOpNotExists:
		return !exists, nil
	case filterOpIsNull:
		return !exists || value == nil, nil
	case filterOpIsNotNull:
		return exists && value != nil, nil
	}

	if !exists {
		return false, nil
	}

	switch c.Op {
	case filterOpEqual:
		return filterEquals(value, c.Value), nil
	case filterOpNotEqual:
		return !filterEquals(value, c.Value), nil
	case filterOpGreaterThan, filterOpGreaterOrEq, filterOpLessThan, filterOpLessOrEq:
		return filterCompareNumeric(value, c.Op, c.Value)
	case filterOpContains:
		return strings.Contains(fmt.Sprint(value), fmt.Sprint(c.Value)), nil
	case filterOpStartsWith:
		return strings.HasPrefix(fmt.Sprint(value), fmt.Sprint(c.Value)), nil
	case filterOpEndsWith:
		return strings.HasSuffix(fmt.Sprint(value), fmt.Sprint(c.Value)), nil
	case filterOpRegex:
		pattern, _ := c.Value.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, errs.TaskWrap("transform.filter", err, "regex %q", pattern)
		}
		return re.MatchString(fmt.Sprint(value)), nil
	case filterOpIn, filterOpNotIn:
		in := filterMembership(value, c.Value)
		if c.Op == filterOpNotIn {
			return !in, nil
		}
		return in, nil
	default:
		return false, errs.Task("transform.filter", "unknown operator %q", c.Op)
	}
}

func getNestedField(row map[string]any, path string) (any, bool) {
	segs := strings.Split(path, ".")
	var cur any = row
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func filterEquals(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func filterAsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func filterCompareNumeric(fieldValue any, op filterOperator, compareValue any) (bool, error) {
	a, ok1 := filterAsFloat(fieldValue)
	b, ok2 := filterAsFloat(compareValue)
	if !ok1 || !ok2 {
		return false, errs.Task("transform.filter", "operator %q requires numeric operands, got %T and %T", op, fieldValue, compareValue)
	}
	switch op {
	case filterOpGreaterThan:
		return a > b, nil
	case filterOpGreaterOrEq:
		return a >= b, nil
	case filterOpLessThan:
		return a < b, nil
	case filterOpLessOrEq:
		return a <= b, nil
	default:
		return false, errs.Task("transform.filter", "unknown numeric operator %q", op)
	}
}

func filterMembership(value, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if filterEquals(value, item) {
			return true
		}
	}
	return false
}
