package compile

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/report"
)

// buildCondition recursively turns a condition tree into a squirrel
// predicate. Every value becomes a binding.
func (p *queryPlan) buildCondition(cond *report.Condition) (sq.Sqlizer, error) {
	if cond.Group != nil {
		children := make([]sq.Sqlizer, 0, len(cond.Group.Children))

		for i := range cond.Group.Children {
			child, err := p.buildCondition(&cond.Group.Children[i])
			if err != nil {
				return nil, err
			}

			children = append(children, child)
		}

		if cond.Group.Boolean == report.BoolOr {
			return sq.Or(children), nil
		}

		return sq.And(children), nil
	}

	if cond.Leaf == nil {
		return nil, enginerrors.New(enginerrors.ErrTypeValidation, "empty condition node")
	}

	return p.buildLeaf(cond.Leaf)
}

func (p *queryPlan) buildLeaf(leaf *report.Leaf) (sq.Sqlizer, error) {
	field, err := p.qualify(leaf.Field)
	if err != nil {
		return nil, err
	}

	switch leaf.Operator {
	case report.OpEq:
		return sq.Eq{field: leaf.Value}, nil
	case report.OpNeq:
		return sq.NotEq{field: leaf.Value}, nil
	case report.OpGt:
		return sq.Gt{field: leaf.Value}, nil
	case report.OpGte:
		return sq.GtOrEq{field: leaf.Value}, nil
	case report.OpLt:
		return sq.Lt{field: leaf.Value}, nil
	case report.OpLte:
		return sq.LtOrEq{field: leaf.Value}, nil
	case report.OpLike, report.OpContains:
		return sq.Like{field: fmt.Sprintf("%%%v%%", leaf.Value)}, nil
	case report.OpNotLike:
		return sq.NotLike{field: fmt.Sprintf("%%%v%%", leaf.Value)}, nil
	case report.OpStartsWith:
		return sq.Like{field: fmt.Sprintf("%v%%", leaf.Value)}, nil
	case report.OpEndsWith:
		return sq.Like{field: fmt.Sprintf("%%%v", leaf.Value)}, nil
	case report.OpIn:
		list, err := listOperand(leaf)
		if err != nil {
			return nil, err
		}

		return sq.Eq{field: list}, nil
	case report.OpNotIn:
		list, err := listOperand(leaf)
		if err != nil {
			return nil, err
		}

		return sq.NotEq{field: list}, nil
	case report.OpBetween:
		low, high, err := betweenOperands(leaf)
		if err != nil {
			return nil, err
		}

		return sq.Expr(field+" BETWEEN ? AND ?", low, high), nil
	case report.OpNotBetween:
		low, high, err := betweenOperands(leaf)
		if err != nil {
			return nil, err
		}

		return sq.Expr(field+" NOT BETWEEN ? AND ?", low, high), nil
	case report.OpIsNull:
		return sq.Eq{field: nil}, nil
	case report.OpIsNotNull:
		return sq.NotEq{field: nil}, nil
	default:
		return nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
			"unknown operator %q on field %q", leaf.Operator, leaf.Field)
	}
}

// listOperand normalizes the in/not_in operand: either an array or a
// comma-separated string
func listOperand(leaf *report.Leaf) ([]interface{}, error) {
	switch value := leaf.Value.(type) {
	case []interface{}:
		if len(value) == 0 {
			return nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
				"condition on %q requires a non-empty list", leaf.Field)
		}

		return value, nil
	case string:
		parts := strings.Split(value, ",")
		list := make([]interface{}, 0, len(parts))

		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				list = append(list, trimmed)
			}
		}

		if len(list) == 0 {
			return nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
				"condition on %q requires a non-empty list", leaf.Field)
		}

		return list, nil
	default:
		return nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
			"condition on %q requires an array or comma-separated string", leaf.Field)
	}
}

// betweenOperands extracts the two bounds of a between condition
func betweenOperands(leaf *report.Leaf) (interface{}, interface{}, error) {
	bounds, ok := leaf.Value.([]interface{})
	if !ok || len(bounds) != 2 {
		return nil, nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
			"condition on %q requires exactly two bounds", leaf.Field)
	}

	return bounds[0], bounds[1], nil
}
