package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectTableNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"single", "SELECT * FROM orders", []string{"orders"}},
		{"join_sorted", "SELECT * FROM orders o JOIN customers c ON o.customer_id = c.id", []string{"customers", "orders"}},
		{"dedup", "SELECT * FROM orders a JOIN orders b ON a.id = b.parent_id", []string{"orders"}},
		{"schema_qualified", "SELECT * FROM sales.orders", []string{"orders"}},
		{"where_subquery", "SELECT * FROM orders WHERE customer_id IN (SELECT id FROM customers)", []string{"customers", "orders"}},
		{"exists", "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM refunds r WHERE r.order_id = o.id)", []string{"orders", "refunds"}},
		{"scalar_in_select", "SELECT (SELECT MAX(amount) FROM payments) FROM orders", []string{"orders", "payments"}},
		{"derived", "SELECT * FROM (SELECT * FROM orders) s", []string{"orders"}},
		{"cte_excluded", "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", []string{"orders"}},
		{"cte_chain", "WITH a AS (SELECT * FROM orders), b AS (SELECT * FROM a) SELECT * FROM b", []string{"orders"}},
		{"cte_shadows_only_unqualified", "WITH orders AS (SELECT 1) SELECT * FROM sales.orders", []string{"orders"}},
		{"recursive_cte", "WITH RECURSIVE r AS (SELECT 1 AS n UNION ALL SELECT n + 1 FROM r) SELECT * FROM r", nil},
		{"union", "SELECT id FROM orders UNION SELECT id FROM archived_orders", []string{"archived_orders", "orders"}},
		{"join_condition_subquery", "SELECT * FROM a JOIN b ON b.id = (SELECT MIN(id) FROM c)", []string{"a", "b", "c"}},
		{"no_from", "SELECT 1", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := Parse(tc.sql)
			require.NoError(t, err)
			assert.Equal(t, tc.want, CollectTableNames(stmt))
		})
	}
}

func TestCollectBaseTables_AliasesAndNodes(t *testing.T) {
	stmt, err := Parse("SELECT * FROM sales.orders o JOIN customers ON o.customer_id = customers.id")
	require.NoError(t, err)

	tables := CollectBaseTables(stmt)
	require.Len(t, tables, 2)

	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, "o", tables[0].Alias)
	assert.Equal(t, "sales.orders", tables[0].QualifiedName)
	assert.Same(t, stmt.Body.Left.From.Source, tables[0].Node)

	assert.Equal(t, "customers", tables[1].Name)
	assert.Empty(t, tables[1].Alias)
}

func TestWalkSelects_VisitsEveryCore(t *testing.T) {
	stmt, err := Parse("WITH c AS (SELECT 1) SELECT * FROM (SELECT 2) d WHERE EXISTS (SELECT 3) UNION SELECT 4")
	require.NoError(t, err)

	count := 0
	WalkSelects(stmt, func(*SelectCore, *CTEScope) { count++ })
	assert.Equal(t, 5, count)
}

func TestWalkExpr_DoesNotEnterSubqueries(t *testing.T) {
	expr, err := ParseExpr("a + (SELECT b FROM t) + f(c)")
	require.NoError(t, err)

	var cols []string
	WalkExpr(expr, func(e Expr) bool {
		if ref, ok := e.(*ColumnRef); ok {
			cols = append(cols, ref.Column)
		}
		return true
	})
	assert.Equal(t, []string{"a", "c"}, cols)
}

func TestCTEScope_NilSafe(t *testing.T) {
	var scope *CTEScope
	assert.False(t, scope.Has("anything"))

	child := scope.child()
	child.names["x"] = true
	assert.True(t, child.Has("x"))
	assert.False(t, scope.Has("x"))
}
