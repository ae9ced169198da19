package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFormat_RoundTrip checks format(parse(sql)) and that the formatted text
// is a fixed point of parse+format.
func TestFormat_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"select_star", "select * from t", "SELECT * FROM t"},
		{"quoted_idents_kept", `SELECT "a", "Mixed Case" FROM "t"`, `SELECT "a", "Mixed Case" FROM "t"`},
		{"keyword_ident_quoted", `SELECT "select" FROM t`, `SELECT "select" FROM t`},
		{"alias", "SELECT x AS y FROM t", "SELECT x AS y FROM t"},
		{"implicit_alias", "SELECT x y FROM t", "SELECT x AS y FROM t"},
		{"aggregate_with_table_alias", "SELECT o.id, SUM(o.amount) AS total FROM orders o GROUP BY o.id", "SELECT o.id, SUM(o.amount) AS total FROM orders o GROUP BY o.id"},
		{"table_alias_as", "SELECT * FROM sales.orders AS o", "SELECT * FROM sales.orders o"},
		{"not_equal", "SELECT * FROM t WHERE x != 1", "SELECT * FROM t WHERE x <> 1"},
		{"order_by", "SELECT * FROM t ORDER BY x ASC, y DESC NULLS LAST", "SELECT * FROM t ORDER BY x, y DESC NULLS LAST"},
		{"limit_offset", "SELECT * FROM t LIMIT 10 OFFSET 5", "SELECT * FROM t LIMIT 10 OFFSET 5"},
		{"joins", "select * from a inner join b on a.id = b.a_id left outer join c using (id)", "SELECT * FROM a JOIN b ON a.id = b.a_id LEFT JOIN c USING (id)"},
		{"comma_join", "SELECT * FROM a, b", "SELECT * FROM a, b"},
		{"cross_join", "SELECT * FROM a CROSS JOIN b", "SELECT * FROM a CROSS JOIN b"},
		{"cte", "WITH x AS (SELECT 1 AS n) SELECT n FROM x", "WITH x AS (SELECT 1 AS n) SELECT n FROM x"},
		{"cte_columns", "WITH x(n) AS (SELECT 1) SELECT n FROM x", "WITH x(n) AS (SELECT 1) SELECT n FROM x"},
		{"union_all", "SELECT a FROM t UNION ALL SELECT a FROM u", "SELECT a FROM t UNION ALL SELECT a FROM u"},
		{"except", "SELECT a FROM t EXCEPT SELECT a FROM u", "SELECT a FROM t EXCEPT SELECT a FROM u"},
		{"case", "SELECT CASE WHEN a > 1 THEN 'big' ELSE 'small' END FROM t", "SELECT CASE WHEN a > 1 THEN 'big' ELSE 'small' END FROM t"},
		{"simple_case", "SELECT CASE a WHEN 1 THEN 'one' END FROM t", "SELECT CASE a WHEN 1 THEN 'one' END FROM t"},
		{"paren_kept", "SELECT (a + b) * 2 FROM t", "SELECT (a + b) * 2 FROM t"},
		{"interval", "SELECT * FROM t WHERE d > CURRENT_DATE - INTERVAL '30' DAY", "SELECT * FROM t WHERE d > CURRENT_DATE - INTERVAL '30' DAY"},
		{"typed_literal", "SELECT * FROM t WHERE ts >= timestamp '2024-01-01'", "SELECT * FROM t WHERE ts >= TIMESTAMP '2024-01-01'"},
		{"cast", "select cast(x as decimal(10,2)) from t", "SELECT CAST(x AS DECIMAL(10, 2)) FROM t"},
		{"postfix_cast", "SELECT x::int FROM t", "SELECT x::INT FROM t"},
		{"window", "SELECT ROW_NUMBER() OVER (PARTITION BY a ORDER BY b DESC) FROM t", "SELECT ROW_NUMBER() OVER (PARTITION BY a ORDER BY b DESC) FROM t"},
		{"window_frame", "SELECT SUM(x) OVER (ORDER BY d ROWS BETWEEN 6 PRECEDING AND CURRENT ROW) FROM t", "SELECT SUM(x) OVER (ORDER BY d ROWS BETWEEN 6 PRECEDING AND CURRENT ROW) FROM t"},
		{"named_window", "SELECT SUM(x) OVER w FROM t WINDOW w AS (PARTITION BY a)", "SELECT SUM(x) OVER w FROM t WINDOW w AS (PARTITION BY a)"},
		{"string_escape", "SELECT 'it''s' FROM t", "SELECT 'it''s' FROM t"},
		{"count_distinct_filter", "SELECT COUNT(DISTINCT id) FILTER (WHERE x > 0) FROM t", "SELECT COUNT(DISTINCT id) FILTER (WHERE x > 0) FROM t"},
		{"count_star", "SELECT count(*) FROM t", "SELECT count(*) FROM t"},
		{"subqueries", "SELECT * FROM t WHERE id IN (SELECT id FROM u) AND NOT EXISTS (SELECT 1 FROM v WHERE v.id = t.id)", "SELECT * FROM t WHERE id IN (SELECT id FROM u) AND NOT EXISTS (SELECT 1 FROM v WHERE v.id = t.id)"},
		{"in_list", "SELECT * FROM t WHERE region NOT IN ('EU', 'US')", "SELECT * FROM t WHERE region NOT IN ('EU', 'US')"},
		{"between_like", "SELECT * FROM t WHERE a NOT BETWEEN 1 AND 5 OR b ILIKE 'x%'", "SELECT * FROM t WHERE a NOT BETWEEN 1 AND 5 OR b ILIKE 'x%'"},
		{"is_not_null", "SELECT * FROM t WHERE a IS NOT NULL AND b IS TRUE", "SELECT * FROM t WHERE a IS NOT NULL AND b IS TRUE"},
		{"derived_table", "SELECT s.n FROM (SELECT 1 AS n) s", "SELECT s.n FROM (SELECT 1 AS n) s"},
		{"lateral", "SELECT * FROM t, LATERAL (SELECT t.a) AS l", "SELECT * FROM t, LATERAL (SELECT t.a) l"},
		{"scalar_subquery", "SELECT (SELECT MAX(x) FROM u) AS m FROM t", "SELECT (SELECT MAX(x) FROM u) AS m FROM t"},
		{"double_negation", "SELECT - -1", "SELECT - -1"},
		{"extract", "SELECT EXTRACT(year FROM d) FROM t", "SELECT EXTRACT(YEAR FROM d) FROM t"},
		{"concat", "SELECT a || '-' || b FROM t", "SELECT a || '-' || b FROM t"},
		{"table_star", "SELECT t.* FROM t", "SELECT t.* FROM t"},
		{"distinct", "SELECT DISTINCT a FROM t", "SELECT DISTINCT a FROM t"},
		{"trailing_semicolon", "SELECT 1;", "SELECT 1"},
		{"left_function", "SELECT LEFT(name, 3) FROM t", "SELECT LEFT(name, 3) FROM t"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := Parse(tc.sql)
			require.NoError(t, err)
			got := Format(stmt)
			assert.Equal(t, tc.want, got)

			again, err := Parse(got)
			require.NoError(t, err, "formatted output must re-parse: %s", got)
			assert.Equal(t, got, Format(again), "format must be a fixed point")
		})
	}
}

func TestFormatExpr(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"comparison", "orders.amount > 100", "orders.amount > 100"},
		{"function", "SUM(orders.amount)", "SUM(orders.amount)"},
		{"quoted_column", `o."Order Total" * 2`, `o."Order Total" * 2`},
		{"interval_no_unit", "INTERVAL '1 day'", "INTERVAL '1 day'"},
		{"bool_literal", "active = true", "active = TRUE"},
		{"not", "NOT (a OR b)", "NOT (a OR b)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := ParseExpr(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, FormatExpr(expr))
		})
	}
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		name  string
		table TableName
		want  string
	}{
		{"plain", TableName{Name: "orders"}, "orders"},
		{"schema", TableName{Schema: "sales", Name: "orders"}, "sales.orders"},
		{"catalog", TableName{Catalog: "db", Schema: "sales", Name: "orders"}, "db.sales.orders"},
		{"quoted", TableName{Name: "Orders", Quoted: true}, `"Orders"`},
		{"needs_quotes", TableName{Name: "order items"}, `"order items"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.table.QualifiedName())
		})
	}
}
