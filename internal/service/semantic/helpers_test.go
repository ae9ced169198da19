package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
)

func strPtr(s string) *string { return &s }

// testLayer is a small sales schema: orders belong to customers, order_items
// link orders and products.
func testLayer(t *testing.T) *domain.SemanticLayer {
	t.Helper()

	layer, err := domain.NewLayerBuilder().
		AddTable("orders", "id", "customer_id", "amount", "status", "created_at").
		AddTable("customers", "id", "name", "region").
		AddTable("products", "id", "name", "price").
		AddTable("order_items", "id", "order_id", "product_id", "quantity").
		AddRelationship(domain.Relationship{FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"}).
		AddRelationship(domain.Relationship{FromTable: "order_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id"}).
		AddRelationship(domain.Relationship{FromTable: "order_items", FromColumn: "product_id", ToTable: "products", ToColumn: "id"}).
		AddMetric(domain.Definition{
			Name:       "metric_Total",
			Table:      "orders",
			Expression: "SUM(orders.amount)",
		}).
		AddMetric(domain.Definition{
			Name:       "metric_OrdersLastNDays",
			Table:      "orders",
			Expression: "COUNT(CASE WHEN orders.created_at >= CURRENT_DATE - INTERVAL '{{n}}' DAY THEN orders.id END)",
			Parameters: []domain.Parameter{{Name: "n", Type: domain.ParamNumber, Default: strPtr("30")}},
		}).
		AddMetric(domain.Definition{
			Name:       "metric_AvgOrder",
			Table:      "orders",
			Expression: "metric_Total / COUNT(orders.id)",
		}).
		AddMetric(domain.Definition{
			Name:       "metric_AboveThreshold",
			Table:      "orders",
			Expression: "SUM(CASE WHEN orders.amount > {{threshold}} THEN 1 ELSE 0 END)",
			Parameters: []domain.Parameter{{Name: "threshold", Type: domain.ParamNumber}},
		}).
		AddMetric(domain.Definition{
			Name:       "metric_Double",
			Table:      "orders",
			Expression: "metric_Total + metric_Total",
		}).
		AddFilter(domain.Definition{
			Name:       "filter_Completed",
			Table:      "orders",
			Expression: "orders.status = 'completed'",
		}).
		AddFilter(domain.Definition{
			Name:       "filter_Region",
			Table:      "customers",
			Expression: "customers.region = {{region}}",
			Parameters: []domain.Parameter{{Name: "region", Type: domain.ParamString}},
		}).
		AddFilter(domain.Definition{
			Name:       "filter_Since",
			Table:      "orders",
			Expression: "orders.created_at >= {{since}}",
			Parameters: []domain.Parameter{{Name: "since", Type: domain.ParamDate, Default: strPtr("'2024-01-01'")}},
		}).
		AddFilter(domain.Definition{
			Name:       "filter_Large",
			Table:      "orders",
			Expression: "orders.amount > 1000 OR {{include_all}}",
			Parameters: []domain.Parameter{{Name: "include_all", Type: domain.ParamBoolean, Default: strPtr("false")}},
		}).
		Build()
	require.NoError(t, err)
	return layer
}

// layerWithMetrics builds a one-table layer holding the given metric expressions.
func layerWithMetrics(t *testing.T, exprs map[string]string) *domain.SemanticLayer {
	t.Helper()

	b := domain.NewLayerBuilder().AddTable("t", "x")
	for name, expr := range exprs {
		b.AddMetric(domain.Definition{Name: name, Table: "t", Expression: expr})
	}
	layer, err := b.Build()
	require.NoError(t, err)
	return layer
}
