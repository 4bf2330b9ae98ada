package expr

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/report-engine/internal/catalog"
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
		},
	})

	registry.Register(catalog.Table{
		Name: "orders",
		Columns: []catalog.Column{
			{Name: "status", Type: catalog.TypeString},
			{Name: "total", Type: catalog.TypeCurrency},
			{Name: "quantity", Type: catalog.TypeNumber},
			{Name: "metadata", Type: catalog.TypeJSON},
			{Name: "customer_uuid", Type: catalog.TypeString, Hidden: true},
		},
		Relationships: []catalog.Relationship{
			{
				Name: "customer", Table: "customers", JoinType: catalog.JoinLeft,
				LocalKey: "customer_uuid", ForeignKey: "uuid", Mode: catalog.JoinAuto,
			},
		},
	})

	return NewValidator(registry)
}

func TestValidExpressions(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name       string
		expression string
	}{
		{"arithmetic", "total * quantity"},
		{"function call", "ROUND(total, 2)"},
		{"nested functions", "CONCAT(UPPER(status), '-', customer.name)"},
		{"conditional", "IF(total > 100, 'big', 'small')"},
		{"case expression", "CASE WHEN total > 100 THEN 'big' ELSE 'small' END"},
		{"json subfield", "metadata.source"},
		{"relationship column", "customer.name"},
		{"deep dotted path", "customer.company.region"},
		{"aggregate", "SUM(total)"},
		{"numeric literals", "total * 1.2 + 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.expression, "orders", nil)
			assert.True(t, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestForbiddenKeywords(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name       string
		expression string
		keyword    string
	}{
		{"drop uppercase", "1=1; DROP TABLE users", "DROP"},
		{"delete lowercase", "delete from orders", "DELETE"},
		{"mixed case", "TrUnCaTe orders", "TRUNCATE"},
		{"union", "total UNION SELECT 1", "UNION"},
		{"sleep", "SLEEP(10)", "SLEEP"},
		{"information schema", "information_schema.tables", "INFORMATION_SCHEMA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.expression, "orders", nil)
			require.False(t, result.Valid)

			found := false
			for _, msg := range result.Errors {
				if strings.Contains(strings.ToUpper(msg), tt.keyword) {
					found = true
				}
			}

			assert.True(t, found, "expected an error naming %s, got %v", tt.keyword, result.Errors)
		})
	}
}

func TestWholeWordMatchingAvoidsFalsePositives(t *testing.T) {
	// "updated_total" contains "update" only as a substring, not a word
	registry := catalog.NewRegistry(time.Minute)
	defer registry.Close()

	registry.Register(catalog.Table{
		Name: "orders",
		Columns: []catalog.Column{
			{Name: "updated_total", Type: catalog.TypeNumber},
		},
	})

	result := NewValidator(registry).Validate("updated_total * 2", "orders", nil)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestUnknownFunctionRejected(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("LOAD_EXTENSION('evil')", "orders", nil)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "LOAD_EXTENSION")
}

func TestDangerousOperators(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name       string
		expression string
	}{
		{"semicolon", "total; 1"},
		{"line comment", "total -- comment"},
		{"block comment open", "total /* hidden"},
		{"double pipe", "status || 'x'"},
		{"double ampersand", "total && 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.expression, "orders", nil)
			assert.False(t, result.Valid)
		})
	}
}

func TestOperatorsInsideLiteralsAreIgnored(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("CONCAT(status, 'a -- b; c')", "orders", nil)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestUnknownColumnRejected(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("nonexistent + 1", "orders", nil)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "nonexistent")
}

func TestHiddenColumnRejected(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("customer_uuid", "orders", nil)
	assert.False(t, result.Valid)
}

func TestSiblingComputedColumnsAllowed(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("net_total * 1.2", "orders", []string{"net_total"})
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestUnregisteredTable(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("total", "ghosts", nil)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "ghosts")
}

func TestEmptyExpression(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("   ", "orders", nil)
	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "empty")
}

func TestErrorsAccumulate(t *testing.T) {
	v := testValidator(t)

	result := v.Validate("DROP TABLE x; mystery_col", "orders", nil)
	require.False(t, result.Valid)
	// forbidden keyword, dangerous operator, and unknown references all reported
	assert.GreaterOrEqual(t, len(result.Errors), 3)
}
