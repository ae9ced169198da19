package engine_test

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
	"semsql/internal/engine"
)

func openVerifier(t *testing.T) *engine.DuckDBVerifier {
	t.Helper()
	v, err := engine.OpenDuckDBVerifier(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestDuckDBVerifier(t *testing.T) {
	v := openVerifier(t)

	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"select", "SELECT 1", false},
		{"unknown_table_still_parses", "SELECT (SUM(orders.amount)) FROM orders", false},
		{"cte", "WITH filtered_orders AS (SELECT * FROM orders WHERE amount > 0) SELECT id FROM filtered_orders", false},
		{"syntax_error", "SELECT FROM WHERE", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(ctx, tc.sql)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.KindSubstitution, domain.KindOf(err))
				assert.Contains(t, err.Error(), "invalid generated SQL")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDuckDBVerifier_SharedConnection(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := newEngine(t, engine.WithVerifier(engine.NewDuckDBVerifier(db)))
	got, err := e.Prepare(ctx, engine.PrepareRequest{
		SQL:        "SELECT metric_Total FROM orders WHERE filter_Completed",
		RowFilters: map[string]string{"orders": "orders.amount > 0"},
	})
	require.NoError(t, err)
	assert.True(t, got.Verified)
}
