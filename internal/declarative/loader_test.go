package declarative

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
)

// testdataDir returns the absolute path to testdata relative to this test file.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	return filepath.Join(filepath.Dir(filename), "testdata")
}

func TestLoadLayerFile(t *testing.T) {
	layer, err := LoadLayerFile(filepath.Join(testdataDir(t), "layer.yaml"), LoadOptions{})
	require.NoError(t, err)

	t.Run("tables loaded", func(t *testing.T) {
		assert.Equal(t, []string{"customers", "orders"}, layer.TableNames())
		assert.True(t, layer.HasColumn("orders", "created_at"))
	})

	t.Run("relationships loaded", func(t *testing.T) {
		assert.True(t, layer.AreTablesRelated("customers", "orders"))
	})

	t.Run("metrics loaded", func(t *testing.T) {
		m, ok := layer.Metric("metric_OrdersLastNDays")
		require.True(t, ok)
		require.Len(t, m.Parameters, 1)
		assert.Equal(t, domain.ParamNumber, m.Parameters[0].Type)
		require.NotNil(t, m.Parameters[0].Default)
		assert.Equal(t, "30", *m.Parameters[0].Default)

		revenue, ok := layer.Metric("metric_Revenue")
		require.True(t, ok)
		assert.Equal(t, "Gross order value", revenue.Description)
	})

	t.Run("filters loaded", func(t *testing.T) {
		f, ok := layer.Filter("filter_Region")
		require.True(t, ok)
		assert.Equal(t, "'EU'", *f.Parameters[0].Default)
	})
}

func TestLoadLayerFile_Missing(t *testing.T) {
	_, err := LoadLayerFile("/nonexistent/layer.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read /nonexistent/layer.yaml")
}

func TestParseLayer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		opts    LoadOptions
		wantErr string
	}{
		{
			name:    "wrong api version",
			yaml:    "apiVersion: v0\nkind: SemanticLayer\ntables: [{name: t, columns: [a]}]\n",
			wantErr: "unsupported apiVersion",
		},
		{
			name:    "wrong kind",
			yaml:    "apiVersion: semsql/v1\nkind: RowFilterList\n",
			wantErr: "unexpected kind",
		},
		{
			name:    "unknown field",
			yaml:    "apiVersion: semsql/v1\nkind: SemanticLayer\ntables: [{name: t, columns: [a], owner: x}]\n",
			wantErr: "field owner not found",
		},
		{
			name:    "no tables",
			yaml:    "apiVersion: semsql/v1\nkind: SemanticLayer\ntables: []\n",
			wantErr: "at least one table is required",
		},
		{
			name:    "bad relationship endpoint",
			yaml:    "apiVersion: semsql/v1\nkind: SemanticLayer\ntables: [{name: t, columns: [a]}]\nrelationships: [{from: t, to: t.a}]\n",
			wantErr: "from must be table.column",
		},
		{
			name:    "bad parameter type",
			yaml:    "apiVersion: semsql/v1\nkind: SemanticLayer\ntables: [{name: t, columns: [a]}]\nmetrics: [{name: metric_X, table: t, expression: '{{p}}', parameters: [{name: p, type: money}]}]\n",
			wantErr: `parameter "p": invalid type "money"`,
		},
		{
			name:    "builder rejects unknown owning table",
			yaml:    "apiVersion: semsql/v1\nkind: SemanticLayer\ntables: [{name: t, columns: [a]}]\nmetrics: [{name: metric_X, table: missing, expression: COUNT(*)}]\n",
			wantErr: "missing",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLayer([]byte(tc.yaml), "layer.yaml", tc.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseLayer_AllowUnknownFields(t *testing.T) {
	data := []byte("apiVersion: semsql/v1\nkind: SemanticLayer\nowner: data-team\ntables: [{name: t, columns: [a]}]\n")
	layer, err := ParseLayer(data, "layer.yaml", LoadOptions{AllowUnknownFields: true})
	require.NoError(t, err)
	assert.True(t, layer.HasTable("t"))
}

func TestParseLayer_ValidationErrorKind(t *testing.T) {
	_, err := ParseLayer([]byte("apiVersion: semsql/v1\nkind: SemanticLayer\ntables: []\n"), "layer.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

// === Row filters ===

func TestLoadRowFilterFile(t *testing.T) {
	set, err := LoadRowFilterFile(filepath.Join(testdataDir(t), "filters.yaml"), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	tests := []struct {
		principal string
		want      map[string]string
	}{
		{"", map[string]string{"orders": "status <> 'void'"}},
		{"analyst", map[string]string{"orders": "status <> 'void'", "customers": "region = 'EU'"}},
		{"customer42", map[string]string{"orders": "(customer_id = 42) OR (status <> 'void')"}},
	}

	for _, tc := range tests {
		t.Run("principal_"+tc.principal, func(t *testing.T) {
			got, err := set.ForPrincipal(tc.principal)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRowFilterSet_Nil(t *testing.T) {
	var set *RowFilterSet
	assert.Equal(t, 0, set.Len())
	got, err := set.ForPrincipal("anyone")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRowFilters_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing table", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, filter_sql: x = 1}]\n", "table is required"},
		{"missing sql", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, table: t}]\n", "filter_sql is required"},
		{"unparseable sql", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, table: t, filter_sql: 'x ='}]\n", "filter[a]: filter_sql"},
		{"duplicate name", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, table: t, filter_sql: x = 1}, {name: a, table: t, filter_sql: x = 2}]\n", "duplicate filter name"},
		{"empty binding", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, table: t, filter_sql: x = 1, bindings: [{principal: ''}]}]\n", "binding principal is required"},
		{"unknown field", "apiVersion: semsql/v1\nkind: RowFilterList\nfilters: [{name: a, table: t, filter: x = 1}]\n", "field filter not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRowFilters([]byte(tc.yaml), "filters.yaml", LoadOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// === Export ===

func TestMarshalLayer_RoundTrip(t *testing.T) {
	layer, err := LoadLayerFile(filepath.Join(testdataDir(t), "layer.yaml"), LoadOptions{})
	require.NoError(t, err)

	out, err := MarshalLayer(layer)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "exported.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	reloaded, err := LoadLayerFile(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, ExportLayer(layer), ExportLayer(reloaded))
}
