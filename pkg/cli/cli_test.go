package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/declarative"
	"semsql/internal/domain"
	"semsql/internal/engine"
)

const layerYAML = `apiVersion: semsql/v1
kind: SemanticLayer
tables:
  - name: orders
    columns: [id, customer_id, amount, status, created_at]
  - name: customers
    columns: [id, name, region]
  - name: products
    columns: [id, name]
relationships:
  - from: orders.customer_id
    to: customers.id
metrics:
  - name: metric_Revenue
    table: orders
    expression: SUM(orders.amount)
    description: Gross order value
  - name: metric_OrdersLastNDays
    table: orders
    expression: COUNT(CASE WHEN orders.created_at >= CURRENT_DATE - INTERVAL '{{n}}' DAY THEN orders.id END)
    parameters:
      - name: n
        type: number
        default: "30"
filters:
  - name: filter_Completed
    table: orders
    expression: orders.status = 'completed'
`

const filtersYAML = `apiVersion: semsql/v1
kind: RowFilterList
filters:
  - name: hide_void
    table: orders
    filter_sql: status <> 'void'
  - name: eu_analysts
    table: customers
    filter_sql: region = 'EU'
    bindings:
      - principal: analyst
`

// === Test helpers ===

type cliEnv struct {
	dir     string
	layer   string
	filters string
}

// newCLIEnv writes the layer and filter documents to a temp dir and clears
// the environment variables the CLI reads.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, key := range []string{
		"SEMSQL_LAYER_FILE", "SEMSQL_FILTERS_FILE", "SEMSQL_MODE", "SEMSQL_OUTPUT",
		"SEMSQL_VERIFY_SQL", "LOG_LEVEL", "ENV", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := &cliEnv{
		dir:     dir,
		layer:   filepath.Join(dir, "layer.yaml"),
		filters: filepath.Join(dir, "filters.yaml"),
	}
	require.NoError(t, os.WriteFile(env.layer, []byte(layerYAML), 0o600))
	require.NoError(t, os.WriteFile(env.filters, []byte(filtersYAML), 0o600))
	return env
}

type cliResult struct {
	stdout string
	stderr string
	err    error
	opts   *rootOptions
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	opts := &rootOptions{}
	cmd := newRootCmd(opts)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(e.dir, "missing.env")))

	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err, opts: opts}
}

// === version ===

func TestVersionCmd(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "version", "-o", "text")
	require.NoError(t, res.err)
	assert.Equal(t, "semsql version dev (commit: none)\n", res.stdout)

	res = env.run(t, "", "version")
	require.NoError(t, res.err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, "dev", got["version"])
}

func TestRootCmd_OutputFormat(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "version", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unsupported output format "yaml"`)

	t.Setenv("SEMSQL_OUTPUT", "text")
	res = env.run(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, outputText, res.opts.output)

	// Non-terminal writers default to json.
	t.Setenv("SEMSQL_OUTPUT", "")
	res = env.run(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, outputJSON, res.opts.output)
}

func TestRootCmd_Precedence(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("SEMSQL_MODE", "strict")
	t.Setenv("SEMSQL_LAYER_FILE", env.layer)

	const calculated = "SELECT SUM(orders.amount) - 100 FROM orders"

	res := env.run(t, "", "validate", "--sql", calculated)
	require.Error(t, res.err)
	assert.Equal(t, domain.ModeStrict, res.opts.cfg.Mode)
	assert.Equal(t, domain.KindSemanticValidation, domain.KindOf(res.err))

	res = env.run(t, "", "validate", "--mode", "flexible", "--sql", calculated)
	require.NoError(t, res.err)
	assert.Equal(t, domain.ModeFlexible, res.opts.cfg.Mode)

	res = env.run(t, "", "validate", "--mode", "loose", "--sql", calculated)
	require.Error(t, res.err)
}

// === validate ===

func TestValidateCmd(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name     string
		args     []string
		stdin    string
		wantOut  string
		wantKind domain.ErrorKind
		wantErr  string
	}{
		{
			name:    "valid query",
			args:    []string{"--sql", "SELECT metric_Revenue FROM orders WHERE filter_Completed"},
			wantOut: "Query is valid.\n",
		},
		{
			name:    "from stdin",
			stdin:   "SELECT customers.name FROM orders JOIN customers ON orders.customer_id = customers.id\n",
			wantOut: "Query is valid.\n",
		},
		{
			name:     "unrelated join",
			args:     []string{"--sql", "SELECT orders.id FROM orders JOIN products ON orders.id = products.id"},
			wantKind: domain.KindSemanticValidation,
			wantErr:  "Invalid join: no relationship between orders and products",
		},
		{
			name:     "unknown metric",
			args:     []string{"--sql", "SELECT metric_Profit FROM orders"},
			wantKind: domain.KindSemanticValidation,
			wantErr:  "Unknown metric: metric_Profit",
		},
		{
			name:     "no input",
			wantKind: domain.KindValidation,
			wantErr:  "no SQL given",
		},
		{
			name:     "sql and file",
			args:     []string{"--sql", "SELECT 1", "--file", "q.sql"},
			wantKind: domain.KindValidation,
			wantErr:  "mutually exclusive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"validate", "-o", "text", "--layer", env.layer}, tc.args...)
			res := env.run(t, tc.stdin, args...)
			if tc.wantErr != "" {
				require.Error(t, res.err)
				assert.Equal(t, tc.wantKind, domain.KindOf(res.err))
				assert.Contains(t, res.err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, res.err)
			assert.Equal(t, tc.wantOut, res.stdout)
		})
	}
}

func TestValidateCmd_FromFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "query.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT metric_OrdersLastNDays(7) FROM orders;\n"), 0o600))

	res := env.run(t, "", "validate", "-o", "json", "--layer", env.layer, "-f", path)
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"valid": true}`, res.stdout)
}

func TestValidateCmd_NoLayer(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "validate", "--sql", "SELECT 1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no semantic layer")
}

func TestValidateCmd_EachLine(t *testing.T) {
	env := newCLIEnv(t)
	queries := "SELECT metric_Revenue FROM orders\n\nSELECT id FROM invoices\nSELECT id FROM customers\n"

	t.Run("json", func(t *testing.T) {
		res := env.run(t, queries, "validate", "-o", "json", "--layer", env.layer, "--each-line")
		require.Error(t, res.err)
		assert.Equal(t, "1 of 3 queries failed validation", res.err.Error())

		var got struct {
			Results []struct {
				Index int    `json:"index"`
				Valid bool   `json:"valid"`
				Kind  string `json:"kind"`
				Error string `json:"error"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		require.Len(t, got.Results, 3)
		assert.True(t, got.Results[0].Valid)
		assert.False(t, got.Results[1].Valid)
		assert.Equal(t, "semantic_validation", got.Results[1].Kind)
		assert.Equal(t, "Unknown table: invoices", got.Results[1].Error)
		assert.True(t, got.Results[2].Valid)
	})

	t.Run("text", func(t *testing.T) {
		res := env.run(t, queries, "validate", "-o", "text", "--layer", env.layer, "--each-line")
		require.Error(t, res.err)

		lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "LINE")
		assert.Contains(t, lines[2], "Unknown table: invoices")
	})
}

// === substitute ===

func TestSubstituteCmd(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name     string
		args     []string
		want     string
		wantKind domain.ErrorKind
	}{
		{
			name: "metric and filter",
			args: []string{"--sql", "SELECT metric_Revenue FROM orders WHERE filter_Completed"},
			want: "SELECT (SUM(orders.amount)) FROM orders WHERE (orders.status = 'completed')\n",
		},
		{
			name: "plain sql is normalized",
			args: []string{"--sql", "select id from orders"},
			want: "SELECT id FROM orders\n",
		},
		{
			name:     "validate first",
			args:     []string{"--validate", "--sql", "SELECT metric_Revenue FROM invoices"},
			wantKind: domain.KindSemanticValidation,
		},
		{
			name:     "bad parameter",
			args:     []string{"--sql", "SELECT metric_OrdersLastNDays('soon') FROM orders"},
			wantKind: domain.KindInvalidParameter,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"substitute", "-o", "text", "--layer", env.layer}, tc.args...)
			res := env.run(t, "", args...)
			if tc.wantKind != "" {
				require.Error(t, res.err)
				assert.Equal(t, tc.wantKind, domain.KindOf(res.err))
				return
			}
			require.NoError(t, res.err)
			assert.Equal(t, tc.want, res.stdout)
		})
	}
}

func TestSubstituteCmd_Parameter(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "substitute", "-o", "json", "--layer", env.layer, "--sql", "SELECT metric_OrdersLastNDays(90) FROM orders")
	require.NoError(t, res.err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Contains(t, got["sql"], "INTERVAL '90' DAY")
	assert.NotContains(t, got["sql"], "metric_")
}

// === prepare ===

func TestPrepareCmd(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "prepare", "-o", "json", "--layer", env.layer, "--filters", env.filters,
		"--sql", "SELECT metric_Revenue FROM orders")
	require.NoError(t, res.err)

	var got engine.Prepared
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t,
		"WITH filtered_orders AS (SELECT * FROM orders WHERE status <> 'void') SELECT (SUM(filtered_orders.amount)) FROM filtered_orders",
		got.SQL)
	assert.Equal(t, []string{"orders"}, got.Tables)
	assert.False(t, got.Verified)
}

func TestPrepareCmd_Principal(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("SEMSQL_FILTERS_FILE", env.filters)

	const query = "SELECT customers.name FROM customers"

	res := env.run(t, "", "prepare", "-o", "text", "--layer", env.layer, "--sql", query)
	require.NoError(t, res.err)
	assert.Equal(t, "SELECT customers.name FROM customers\n", res.stdout)

	res = env.run(t, "", "prepare", "-o", "text", "--layer", env.layer, "--principal", "analyst", "--sql", query)
	require.NoError(t, res.err)
	assert.Equal(t,
		"WITH filtered_customers AS (SELECT * FROM customers WHERE region = 'EU') SELECT filtered_customers.name FROM filtered_customers\n",
		res.stdout)
}

// === rls ===

func TestRLSCmd(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "inline filter",
			args: []string{"--filter", "orders=orders.amount > 100", "--sql", "SELECT id FROM orders"},
			want: "WITH filtered_orders AS (SELECT * FROM orders WHERE orders.amount > 100) SELECT id FROM filtered_orders\n",
		},
		{
			name: "repeated filter for one table",
			args: []string{"--filter", "orders=amount > 100", "--filter", "orders=status = 'paid'", "--sql", "SELECT id FROM orders"},
			want: "WITH filtered_orders AS (SELECT * FROM orders WHERE (amount > 100) AND (status = 'paid')) SELECT id FROM filtered_orders\n",
		},
		{
			name: "no filters keeps text",
			args: []string{"--sql", "select  id from orders"},
			want: "select  id from orders\n",
		},
		{
			name: "filters file",
			args: []string{"--filters", env.filters, "--sql", "SELECT o.id FROM orders o"},
			want: "WITH filtered_o AS (SELECT * FROM orders WHERE status <> 'void') SELECT filtered_o.id FROM filtered_o\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"rls", "-o", "text"}, tc.args...)
			res := env.run(t, "", args...)
			require.NoError(t, res.err)
			assert.Equal(t, tc.want, res.stdout)
		})
	}
}

func TestRLSCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run(t, "", "rls", "-o", "json", "--filter", "orders=amount > 0", "--sql", "SELECT o.id FROM orders o")
	require.NoError(t, res.err)

	var got struct {
		SQL    string `json:"sql"`
		Tables []struct {
			Table string `json:"table"`
			Alias string `json:"alias"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Contains(t, got.SQL, "filtered_o AS")
	require.Len(t, got.Tables, 1)
	assert.Equal(t, "orders", got.Tables[0].Table)
	assert.Equal(t, "o", got.Tables[0].Alias)
}

func TestFilterFlag(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", "orders=amount > 0", false},
		{"predicate with equals", "orders=status = 'paid'", false},
		{"missing equals", "orders", true},
		{"empty table", "=amount > 0", true},
		{"empty predicate", "orders=", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f filterFlag
			err := f.Set(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.value, f.String())
		})
	}
}

// === layer ===

func TestLayerCmd(t *testing.T) {
	env := newCLIEnv(t)

	t.Run("text", func(t *testing.T) {
		res := env.run(t, "", "layer", "-o", "text", "--layer", env.layer)
		require.NoError(t, res.err)

		lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
		require.Len(t, lines, 7, "header + 3 tables + 2 metrics + 1 filter")
		assert.Contains(t, lines[0], "KIND")
		assert.Contains(t, res.stdout, "metric_OrdersLastNDays")
		assert.Contains(t, res.stdout, "(n number = 30)")
		assert.Contains(t, res.stdout, "Gross order value")
	})

	t.Run("json", func(t *testing.T) {
		res := env.run(t, "", "layer", "-o", "json", "--layer", env.layer)
		require.NoError(t, res.err)

		var doc declarative.SemanticLayerDoc
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
		assert.Len(t, doc.Tables, 3)
		assert.Len(t, doc.Metrics, 2)
	})

	t.Run("export round trip", func(t *testing.T) {
		res := env.run(t, "", "layer", "--export", "--layer", env.layer)
		require.NoError(t, res.err)

		layer, err := declarative.ParseLayer([]byte(res.stdout), "export.yaml", declarative.LoadOptions{})
		require.NoError(t, err)
		assert.True(t, layer.HasMetric("metric_Revenue"))
		assert.True(t, layer.AreTablesRelated("customers", "orders"))
	})
}

// === error output ===

func TestPrintError(t *testing.T) {
	semErr := &domain.SemanticValidationError{Messages: []string{"Unknown table: invoices", "Unknown metric: metric_X"}}

	t.Run("json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		printError(&stdout, &stderr, outputJSON, semErr)
		assert.Empty(t, stderr.String())

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
		assert.Equal(t, "semantic_validation", got["kind"])
		assert.Equal(t, []interface{}{"Unknown table: invoices", "Unknown metric: metric_X"}, got["messages"])
	})

	t.Run("text", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		printError(&stdout, &stderr, outputText, domain.ErrValidation("bad input"))
		assert.Empty(t, stdout.String())
		assert.Equal(t, "Error: bad input\n", stderr.String())
	})

	t.Run("already reported", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		printError(&stdout, &stderr, outputJSON, &errReported{msg: "1 of 2 queries failed validation"})
		assert.Empty(t, stdout.String())
		assert.Empty(t, stderr.String())
	})
}
