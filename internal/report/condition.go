package report

import (
	"encoding/json"
	"fmt"
)

// Operator is a comparison operator usable in a condition leaf
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpLike       Operator = "like"
	OpNotLike    Operator = "not_like"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpBetween    Operator = "between"
	OpNotBetween Operator = "not_between"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// operatorAliases maps symbol spellings accepted on the wire onto the
// canonical operator names.
var operatorAliases = map[string]Operator{
	"=":  OpEq,
	"!=": OpNeq,
	">":  OpGt,
	">=": OpGte,
	"<":  OpLt,
	"<=": OpLte,
}

// NormalizeOperator resolves symbol aliases to canonical operators
func NormalizeOperator(raw string) Operator {
	if op, ok := operatorAliases[raw]; ok {
		return op
	}

	return Operator(raw)
}

// KnownOperator reports whether the operator belongs to the fixed set
func KnownOperator(op Operator) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpNotLike,
		OpIn, OpNotIn, OpBetween, OpNotBetween, OpIsNull, OpIsNotNull,
		OpContains, OpStartsWith, OpEndsWith:
		return true
	}

	return false
}

// NeedsValue reports whether the operator requires an operand
func (op Operator) NeedsValue() bool {
	return op != OpIsNull && op != OpIsNotNull
}

// BooleanOp joins the children of a condition group
type BooleanOp string

const (
	BoolAnd BooleanOp = "and"
	BoolOr  BooleanOp = "or"
)

// MaxConditionDepth bounds condition tree nesting at decode time
const MaxConditionDepth = 16

// Condition is one node of the filter tree: either a leaf comparison or
// a boolean group of child conditions. Exactly one of Leaf and Group is
// set.
type Condition struct {
	Leaf  *Leaf
	Group *Group
}

// Leaf is a single field/operator/value comparison
type Leaf struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Group joins child conditions with a boolean operator
type Group struct {
	Boolean  BooleanOp
	Children []Condition
}

// conditionWire mirrors the loosely-typed JSON shape of a condition
// node before it is narrowed into the tagged union.
type conditionWire struct {
	Conditions      []json.RawMessage `json:"conditions"`
	Boolean         string            `json:"boolean"`
	Field           *FieldRef         `json:"field"`
	Operator        *ValueRef         `json:"operator"`
	Value           interface{}       `json:"value"`
	LogicalOperator string            `json:"logicalOperator"`
}

// UnmarshalJSON decodes a condition node, distinguishing groups (a
// "conditions" array) from leaves (a "field"/"operator" pair) and
// rejecting trees deeper than MaxConditionDepth.
func (c *Condition) UnmarshalJSON(data []byte) error {
	return c.unmarshalDepth(data, 0)
}

func (c *Condition) unmarshalDepth(data []byte, depth int) error {
	if depth > MaxConditionDepth {
		return fmt.Errorf("condition tree exceeds maximum depth of %d", MaxConditionDepth)
	}

	var wire conditionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if wire.Conditions != nil {
		boolean := BooleanOp(wire.Boolean)
		if boolean == "" {
			boolean = BoolAnd
		}

		if boolean != BoolAnd && boolean != BoolOr {
			return fmt.Errorf("invalid boolean operator %q", wire.Boolean)
		}

		children := make([]Condition, len(wire.Conditions))
		for i, raw := range wire.Conditions {
			if err := children[i].unmarshalDepth(raw, depth+1); err != nil {
				return err
			}
		}

		c.Group = &Group{Boolean: boolean, Children: children}
		c.Leaf = nil

		return nil
	}

	if wire.Field == nil {
		return fmt.Errorf("condition node has neither conditions nor field")
	}

	var op Operator
	if wire.Operator != nil {
		op = NormalizeOperator(wire.Operator.Value)
	}

	c.Leaf = &Leaf{
		Field:    wire.Field.Name,
		Operator: op,
		Value:    wire.Value,
	}
	c.Group = nil

	return nil
}

// MarshalJSON re-encodes the tagged union in the wire shape
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Group != nil {
		return json.Marshal(map[string]interface{}{
			"conditions": c.Group.Children,
			"boolean":    c.Group.Boolean,
		})
	}

	if c.Leaf != nil {
		node := map[string]interface{}{
			"field":    FieldRef{Name: c.Leaf.Field},
			"operator": ValueRef{Value: string(c.Leaf.Operator)},
		}
		if c.Leaf.Value != nil {
			node["value"] = c.Leaf.Value
		}

		return json.Marshal(node)
	}

	return []byte("null"), nil
}

// Walk visits every node of the tree depth-first
func (c *Condition) Walk(visit func(*Condition)) {
	if c == nil {
		return
	}

	visit(c)

	if c.Group != nil {
		for i := range c.Group.Children {
			c.Group.Children[i].Walk(visit)
		}
	}
}

// Leaves returns all leaf conditions in depth-first order
func (c *Condition) Leaves() []*Leaf {
	var leaves []*Leaf

	c.Walk(func(node *Condition) {
		if node.Leaf != nil {
			leaves = append(leaves, node.Leaf)
		}
	})

	return leaves
}

// Depth returns the maximum nesting depth of the tree
func (c *Condition) Depth() int {
	if c == nil {
		return 0
	}

	if c.Group == nil {
		return 1
	}

	deepest := 0
	for i := range c.Group.Children {
		if d := c.Group.Children[i].Depth(); d > deepest {
			deepest = d
		}
	}

	return deepest + 1
}
