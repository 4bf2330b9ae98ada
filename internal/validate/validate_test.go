package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/report-engine/internal/catalog"
	"github.com/kyleking/report-engine/internal/report"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()

	registry := catalog.NewRegistry(time.Minute)
	t.Cleanup(func() { _ = registry.Close() })

	registry.Register(catalog.Table{
		Name: "customers",
		Columns: []catalog.Column{
			{Name: "uuid", Type: catalog.TypeString, Hidden: true},
			{Name: "name", Type: catalog.TypeString},
			{Name: "email", Type: catalog.TypeString},
			{Name: "password_hash", Type: catalog.TypeString},
		},
	})

	registry.Register(catalog.Table{
		Name:               "orders",
		SupportsAggregates: true,
		MaxRows:            15000,
		Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeNumber},
			{Name: "status", Type: catalog.TypeString},
			{Name: "total", Type: catalog.TypeCurrency},
			{Name: "created_at", Type: catalog.TypeDateTime},
			{Name: "metadata", Type: catalog.TypeJSON},
			{Name: "customer_uuid", Type: catalog.TypeString, Hidden: true},
			{Name: "api_token", Type: catalog.TypeString},
		},
		Relationships: []catalog.Relationship{
			{
				Name: "customer", Table: "customers", JoinType: catalog.JoinLeft,
				LocalKey: "customer_uuid", ForeignKey: "uuid", Mode: catalog.JoinAuto,
			},
			{
				Name: "items", Table: "order_items", JoinType: catalog.JoinLeft,
				LocalKey: "id", ForeignKey: "order_id", Mode: catalog.JoinManual,
			},
		},
	})

	registry.Register(catalog.Table{
		Name: "order_items",
		Columns: []catalog.Column{
			{Name: "order_id", Type: catalog.TypeNumber},
			{Name: "sku", Type: catalog.TypeString},
			{Name: "quantity", Type: catalog.TypeNumber},
		},
	})

	return NewValidator(registry)
}

func baseConfig() *report.QueryConfig {
	return &report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "status"},
			{Name: "total"},
		},
	}
}

func intPtr(v int) *int { return &v }

func leaf(field string, op report.Operator, value interface{}) *report.Condition {
	return &report.Condition{Leaf: &report.Leaf{Field: field, Operator: op, Value: value}}
}

func TestValidQueryPasses(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Columns = append(cfg.Columns, report.SelectedColumn{Name: "customer.name", Alias: "customer_name"})
	cfg.Conditions = leaf("status", report.OpEq, "shipped")
	cfg.SortBy = []report.SortBy{{
		Column:    report.FieldRef{Name: "created_at"},
		Direction: report.ValueRef{Value: "desc"},
	}}
	cfg.Limit = intPtr(100)

	result := v.Validate(cfg)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, result.Summary.TotalColumns)
	assert.Equal(t, 1, result.Summary.TotalJoins)
	assert.True(t, result.Summary.HasSorting)
	assert.True(t, result.Summary.HasLimit)
}

func TestNilConfig(t *testing.T) {
	v := testValidator(t)

	result := v.Validate(nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestStructuralErrorsShortCircuit(t *testing.T) {
	v := testValidator(t)

	result := v.Validate(&report.QueryConfig{})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "table name is required")
	assert.Contains(t, result.Errors, "at least one column must be selected")
}

func TestUnknownTable(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Table.Name = "ghosts"

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "ghosts")
}

func TestUnknownColumnNamesTheColumn(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Columns = append(cfg.Columns, report.SelectedColumn{Name: "mystery"})

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], `"mystery"`)
}

func TestAliasRules(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		alias string
		valid bool
	}{
		{"plain", "net_total", true},
		{"leading underscore", "_total", true},
		{"leading digit", "1total", false},
		{"spaces", "net total", false},
		{"semicolon", "total;drop", false},
		{"too long", "a23456789012345678901234567890123456789012345678901234567890123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Columns[0].Alias = tt.alias

			result := v.Validate(cfg)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestManualJoinMustMatchRelationship(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Joins = []report.Join{{Name: "shipments", Table: "shipments"}}

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "shipments")
}

func TestManualJoinWithNestedColumns(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Joins = []report.Join{{
		Name: "items", Table: "order_items", Type: "left",
		SelectedColumns: []report.SelectedColumn{{Name: "sku"}, {Name: "missing"}},
	}}

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], `"missing"`)
}

func TestManualRelationshipColumnRequiresDeclaredJoin(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Columns = append(cfg.Columns, report.SelectedColumn{Name: "items.sku"})

	result := v.Validate(cfg)
	assert.False(t, result.Valid)

	cfg.Joins = []report.Join{{Name: "items", Table: "order_items"}}

	result = v.Validate(cfg)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestConditionOperatorAndShape(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		cond  *report.Condition
		valid bool
	}{
		{"known op", leaf("status", report.OpEq, "shipped"), true},
		{"unknown op", leaf("status", report.Operator("regexp"), "x"), false},
		{"in with array", leaf("status", report.OpIn, []interface{}{"a", "b"}), true},
		{"in with csv string", leaf("status", report.OpIn, "a,b,c"), true},
		{"in with scalar", leaf("status", report.OpIn, 42), false},
		{"in with empty array", leaf("status", report.OpIn, []interface{}{}), false},
		{"between two bounds", leaf("total", report.OpBetween, []interface{}{1, 100}), true},
		{"between one bound", leaf("total", report.OpBetween, []interface{}{1}), false},
		{"is_null no value", leaf("status", report.OpIsNull, nil), true},
		{"unknown field", leaf("mystery", report.OpEq, "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Conditions = tt.cond

			result := v.Validate(cfg)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestEmptyConditionValueWarnsOnly(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Conditions = leaf("status", report.OpEq, "")

	result := v.Validate(cfg)
	assert.True(t, result.Valid)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "empty value")
}

func TestGroupByAggregates(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		fn    string
		by    string
		valid bool
	}{
		{"count wildcard", "count", "*", true},
		{"sum column", "sum", "total", true},
		{"sum wildcard rejected", "sum", "*", false},
		{"unknown function", "median", "total", false},
		{"unknown target", "sum", "mystery", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.GroupBy = []report.GroupBy{{
				GroupBy:     report.FieldRef{Name: "status"},
				AggregateFn: &report.ValueRef{Value: tt.fn},
				AggregateBy: &report.FieldRef{Name: tt.by},
			}}

			result := v.Validate(cfg)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestGroupByRequiresAggregateSupport(t *testing.T) {
	v := testValidator(t)

	cfg := &report.QueryConfig{
		Table:   report.TableRef{Name: "order_items"},
		Columns: []report.SelectedColumn{{Name: "sku"}},
		GroupBy: []report.GroupBy{{GroupBy: report.FieldRef{Name: "sku"}}},
	}

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "aggregate")
}

func TestSortDirection(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.SortBy = []report.SortBy{{
		Column:    report.FieldRef{Name: "total"},
		Direction: report.ValueRef{Value: "sideways"},
	}}

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "asc or desc")
}

func TestLimitBoundaries(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name      string
		limit     int
		valid     bool
		warnCount int
	}{
		{"at hard ceiling", 50000, true, 2},
		{"over hard ceiling", 50001, false, 0},
		{"warn threshold", 20000, true, 2},
		{"over table max", 16000, true, 2},
		{"under everything", 500, true, 0},
		{"zero", 0, false, 0},
		{"negative", -5, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Limit = intPtr(tt.limit)

			result := v.Validate(cfg)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)

			if tt.valid {
				assert.Len(t, result.Warnings, tt.warnCount, "warnings: %v", result.Warnings)
			}
		})
	}
}

func TestNegativeOffsetRejected(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		limit *int
	}{
		{"without limit", nil},
		{"with valid limit", intPtr(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Limit = tt.limit
			cfg.Offset = intPtr(-5)

			result := v.Validate(cfg)
			require.False(t, result.Valid)
			assert.Contains(t, result.Errors[0], "offset must be non-negative")
		})
	}
}

func TestLimitErrorCitesCeiling(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Limit = intPtr(50001)

	result := v.Validate(cfg)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "cannot exceed 50,000")
}

func TestInjectionPatternsRejected(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name  string
		value string
	}{
		{"union select", "x' UNION SELECT password FROM users"},
		{"drop table", "'; drop table orders"},
		{"script tag", "<script>alert(1)</script>"},
		{"line comment", "shipped' --"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Conditions = leaf("status", report.OpEq, tt.value)

			result := v.Validate(cfg)
			require.False(t, result.Valid)
			assert.Contains(t, result.Errors[0], "disallowed SQL pattern")
		})
	}
}

func TestSensitiveColumnWarnsButPasses(t *testing.T) {
	tests := []struct {
		name  string
		field string
	}{
		{"token column", "api_token"},
		{"password column through relationship", "customer.password_hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testValidator(t)

			cfg := baseConfig()
			cfg.Conditions = leaf(tt.field, report.OpIsNotNull, nil)

			result := v.Validate(cfg)
			assert.True(t, result.Valid, "errors: %v", result.Errors)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], "sensitive")
		})
	}
}

func TestComplexitySummary(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	result := v.Validate(cfg)
	assert.Equal(t, "low", result.Summary.Complexity)
	assert.Equal(t, "fast", result.Summary.EstimatedPerformance)

	cfg.Columns = append(cfg.Columns,
		report.SelectedColumn{Name: "created_at"},
		report.SelectedColumn{Name: "customer.name"},
		report.SelectedColumn{Name: "customer.email"},
	)
	cfg.Conditions = &report.Condition{Group: &report.Group{
		Boolean: report.BoolAnd,
		Children: []report.Condition{
			*leaf("status", report.OpEq, "shipped"),
			*leaf("total", report.OpGt, 100),
		},
	}}
	cfg.GroupBy = []report.GroupBy{{
		GroupBy:     report.FieldRef{Name: "status"},
		AggregateFn: &report.ValueRef{Value: "count"},
		AggregateBy: &report.FieldRef{Name: "*"},
	}}
	cfg.SortBy = []report.SortBy{{
		Column:    report.FieldRef{Name: "status"},
		Direction: report.ValueRef{Value: "asc"},
	}}

	result = v.Validate(cfg)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Equal(t, "medium", result.Summary.Complexity)
	assert.Equal(t, 1, result.Summary.TotalJoins)
	assert.True(t, result.Summary.HasGrouping)
}

func TestUnindexedConditionsWarn(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Conditions = &report.Condition{Group: &report.Group{
		Boolean: report.BoolAnd,
		Children: []report.Condition{
			*leaf("status", report.OpEq, "a"),
			*leaf("status", report.OpNeq, "b"),
			*leaf("total", report.OpGt, 1),
			*leaf("total", report.OpLt, 9),
		},
	}}

	result := v.Validate(cfg)
	assert.True(t, result.Valid)

	found := false
	for _, warn := range result.Warnings {
		if warn == "no condition references an indexed-looking field; a full scan is likely" {
			found = true
		}
	}

	assert.True(t, found, "warnings: %v", result.Warnings)
}

func TestValidationIsIdempotent(t *testing.T) {
	v := testValidator(t)

	cfg := baseConfig()
	cfg.Columns = append(cfg.Columns, report.SelectedColumn{Name: "customer.name"})
	cfg.Conditions = leaf("api_token", report.OpEq, "")
	cfg.Limit = intPtr(20000)

	first := v.Validate(cfg)

	for range 5 {
		assert.Equal(t, first, v.Validate(cfg))
	}
}
