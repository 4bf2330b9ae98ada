package compile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/report-engine/internal/catalog"
	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/report"
)

func testCompiler(t *testing.T) *Compiler {
	t.Helper()

	registry := catalog.NewRegistry(time.Minute)
	t.Cleanup(func() { _ = registry.Close() })

	registry.Register(catalog.Table{
		Name: "customers",
		Columns: []catalog.Column{
			{Name: "uuid", Type: catalog.TypeString, Hidden: true},
			{Name: "name", Label: "Customer Name", Type: catalog.TypeString},
			{Name: "country", Type: catalog.TypeString},
		},
	})

	registry.Register(catalog.Table{
		Name:               "orders",
		SupportsAggregates: true,
		Columns: []catalog.Column{
			{Name: "id", Type: catalog.TypeNumber},
			{Name: "status", Type: catalog.TypeString},
			{Name: "total", Label: "Order Total", Type: catalog.TypeCurrency},
			{Name: "created_at", Type: catalog.TypeDateTime},
			{Name: "metadata", Type: catalog.TypeJSON},
			{Name: "customer_uuid", Type: catalog.TypeString, Hidden: true},
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

	return NewCompiler(registry)
}

func intPtr(v int) *int { return &v }

func leaf(field string, op report.Operator, value interface{}) *report.Condition {
	return &report.Condition{Leaf: &report.Leaf{Field: field, Operator: op, Value: value}}
}

func TestCompileSimpleSelect(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}, {Name: "total"}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT orders.status AS status, orders.total AS total FROM orders",
		compiled.SQL)
	assert.Empty(t, compiled.Bindings)
	require.Len(t, compiled.Columns, 2)
	assert.Equal(t, "Order Total", compiled.Columns[1].Label)
	assert.Equal(t, catalog.TypeCurrency, compiled.Columns[1].Type)
}

func TestCompileAutoJoin(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "status"},
			{Name: "customer.name", Alias: "customer_name"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT orders.status AS status, orders_customer.name AS customer_name "+
			"FROM orders "+
			"LEFT JOIN customers AS orders_customer "+
			"ON orders.customer_uuid = orders_customer.uuid",
		compiled.SQL)

	require.Len(t, compiled.AutoJoins, 1)
	assert.Equal(t, "orders_customer", compiled.AutoJoins[0].Alias)
	assert.Equal(t, "orders_customer", compiled.AliasMap["customer"])

	require.Len(t, compiled.Columns, 2)
	assert.Empty(t, compiled.Columns[0].JoinPath)
	assert.Equal(t, "customer", compiled.Columns[1].JoinPath)
}

func TestCompileAutoJoinFromConditionOnly(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:      report.TableRef{Name: "orders"},
		Columns:    []report.SelectedColumn{{Name: "status"}},
		Conditions: leaf("customer.country", report.OpEq, "US"),
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "LEFT JOIN customers AS orders_customer")
	assert.Contains(t, compiled.SQL, "WHERE orders_customer.country = ?")
	assert.Equal(t, []interface{}{"US"}, compiled.Bindings)
}

func TestCompileJoinsOncePerRelationship(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "customer.name"},
			{Name: "customer.country"},
		},
		Conditions: leaf("customer.country", report.OpNeq, "DE"),
	})
	require.NoError(t, err)

	assert.Len(t, compiled.AutoJoins, 1)
	assert.Equal(t, 1, strings.Count(compiled.SQL, "LEFT JOIN customers"))
}

func TestDeclaredJoinSupersedesAutoJoin(t *testing.T) {
	c := testCompiler(t)

	// A relationship that is both declared in the join list and
	// referenced by a dotted field must still produce a single join,
	// under the declared alias.
	compiled, err := c.Compile(&report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "status"},
			{Name: "customer.name"},
		},
		Joins: []report.Join{{Name: "customer", Table: "customers"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(compiled.SQL, "JOIN customers"))
	assert.Empty(t, compiled.AutoJoins)
	require.Len(t, compiled.ManualJoins, 1)
	assert.Equal(t, "customers", compiled.ManualJoins[0].Alias)
	assert.Equal(t, "customers", compiled.AliasMap["customer"])
	assert.Contains(t, compiled.SQL, "customers.name AS customer_name")
	assert.NotContains(t, compiled.SQL, "orders_customer")
}

func TestCompileManualJoin(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}},
		Joins: []report.Join{{
			Name: "items", Table: "order_items", Type: "inner",
			SelectedColumns: []report.SelectedColumn{{Name: "sku"}},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL,
		"INNER JOIN order_items AS order_items ON orders.id = order_items.order_id")
	assert.Contains(t, compiled.SQL, "order_items.sku AS order_items_sku")
	require.Len(t, compiled.ManualJoins, 1)
	assert.Equal(t, "order_items", compiled.ManualJoins[0].Alias)
}

func TestManualAliasCannotCollideWithAutoAlias(t *testing.T) {
	c := testCompiler(t)

	_, err := c.Compile(&report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "customer.name"},
		},
		Joins: []report.Join{{
			Name: "items", Table: "order_items", Alias: AutoJoinAlias("orders", "customer"),
		}},
	})
	require.Error(t, err)
	assert.True(t, enginerrors.IsType(err, enginerrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "collides")
}

func TestCompileConditionTree(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}},
		Conditions: &report.Condition{Group: &report.Group{
			Boolean: report.BoolOr,
			Children: []report.Condition{
				*leaf("status", report.OpEq, "shipped"),
				{Group: &report.Group{
					Boolean: report.BoolAnd,
					Children: []report.Condition{
						*leaf("total", report.OpGt, 100),
						*leaf("total", report.OpLte, 500),
					},
				}},
			},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL,
		"WHERE (orders.status = ? OR (orders.total > ? AND orders.total <= ?))")
	assert.Equal(t, []interface{}{"shipped", 100, 500}, compiled.Bindings)
}

func TestCompileOperators(t *testing.T) {
	c := testCompiler(t)

	tests := []struct {
		name     string
		cond     *report.Condition
		fragment string
		bindings []interface{}
	}{
		{
			"contains wraps wildcards",
			leaf("status", report.OpContains, "ship"),
			"orders.status LIKE ?",
			[]interface{}{"%ship%"},
		},
		{
			"starts_with trailing wildcard",
			leaf("status", report.OpStartsWith, "ship"),
			"orders.status LIKE ?",
			[]interface{}{"ship%"},
		},
		{
			"ends_with leading wildcard",
			leaf("status", report.OpEndsWith, "ped"),
			"orders.status LIKE ?",
			[]interface{}{"%ped"},
		},
		{
			"in with array",
			leaf("status", report.OpIn, []interface{}{"shipped", "pending"}),
			"orders.status IN (?,?)",
			[]interface{}{"shipped", "pending"},
		},
		{
			"in with comma string",
			leaf("status", report.OpIn, "shipped, pending"),
			"orders.status IN (?,?)",
			[]interface{}{"shipped", "pending"},
		},
		{
			"between",
			leaf("total", report.OpBetween, []interface{}{100, 500}),
			"orders.total BETWEEN ? AND ?",
			[]interface{}{100, 500},
		},
		{
			"is_null",
			leaf("customer_uuid", report.OpIsNull, nil),
			"orders.customer_uuid IS NULL",
			nil,
		},
		{
			"is_not_null",
			leaf("customer_uuid", report.OpIsNotNull, nil),
			"orders.customer_uuid IS NOT NULL",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := c.Compile(&report.QueryConfig{
				Table:      report.TableRef{Name: "orders"},
				Columns:    []report.SelectedColumn{{Name: "status"}},
				Conditions: tt.cond,
			})
			require.NoError(t, err)
			assert.Contains(t, compiled.SQL, tt.fragment)

			if tt.bindings == nil {
				assert.Empty(t, compiled.Bindings)
			} else {
				assert.Equal(t, tt.bindings, compiled.Bindings)
			}
		})
	}
}

func TestCompileJSONSubfield(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "metadata.source"}},
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL,
		"json_extract_string(orders.metadata, '$.source') AS metadata_source")
	assert.Empty(t, compiled.AutoJoins)
}

func TestCompileGrouping(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}},
		GroupBy: []report.GroupBy{{
			GroupBy:     report.FieldRef{Name: "status"},
			AggregateFn: &report.ValueRef{Value: "count"},
			AggregateBy: &report.FieldRef{Name: "*"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT orders.status AS status, COUNT(*) AS count_all "+
			"FROM orders GROUP BY orders.status",
		compiled.SQL)
}

func TestCompileAggregateOverColumn(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}},
		GroupBy: []report.GroupBy{{
			GroupBy:     report.FieldRef{Name: "status"},
			AggregateFn: &report.ValueRef{Value: "sum"},
			AggregateBy: &report.FieldRef{Name: "total"},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "SUM(orders.total) AS sum_total")
}

func TestCompileSortLimitOffset(t *testing.T) {
	c := testCompiler(t)

	compiled, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "status"}},
		SortBy: []report.SortBy{{
			Column:    report.FieldRef{Name: "created_at"},
			Direction: report.ValueRef{Value: "desc"},
		}},
		Limit:  intPtr(100),
		Offset: intPtr(20),
	})
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "ORDER BY orders.created_at DESC")
	assert.Contains(t, compiled.SQL, "LIMIT 100")
	assert.Contains(t, compiled.SQL, "OFFSET 20")
}

func TestCompileUnknownTable(t *testing.T) {
	c := testCompiler(t)

	_, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "ghosts"},
		Columns: []report.SelectedColumn{{Name: "status"}},
	})
	require.Error(t, err)
	assert.True(t, enginerrors.IsType(err, enginerrors.ErrTypeNotFound))
}

func TestCompileUnknownColumn(t *testing.T) {
	c := testCompiler(t)

	_, err := c.Compile(&report.QueryConfig{
		Table:   report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{{Name: "mystery"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestCompileIsDeterministic(t *testing.T) {
	c := testCompiler(t)

	cfg := &report.QueryConfig{
		Table: report.TableRef{Name: "orders"},
		Columns: []report.SelectedColumn{
			{Name: "status"},
			{Name: "customer.name"},
		},
		Conditions: leaf("total", report.OpGt, 50),
		Joins: []report.Join{{
			Name: "items", Table: "order_items",
			SelectedColumns: []report.SelectedColumn{{Name: "sku"}},
		}},
		Limit: intPtr(10),
	}

	first, err := c.Compile(cfg)
	require.NoError(t, err)

	for range 5 {
		again, err := c.Compile(cfg)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Bindings, again.Bindings)
	}
}
