package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"semsql/internal/declarative"
	"semsql/internal/domain"
	"semsql/internal/engine"
)

// sqlInput reads one statement from --sql, --file or stdin.
type sqlInput struct {
	sql  string
	file string
}

func (in *sqlInput) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&in.sql, "sql", "s", "", "SQL text")
	fs.StringVarP(&in.file, "file", "f", "", "File containing SQL (use - for stdin)")
}

func (in *sqlInput) read(cmd *cobra.Command) (string, error) {
	if in.sql != "" && in.file != "" {
		return "", domain.ErrValidation("--sql and --file are mutually exclusive")
	}
	if in.sql != "" {
		return in.sql, nil
	}

	var (
		data []byte
		err  error
	)
	switch in.file {
	case "", "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(in.file)
	}
	if err != nil {
		return "", fmt.Errorf("read sql: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", domain.ErrValidation("no SQL given: use --sql, --file or stdin")
	}
	return text, nil
}

// filterFlag collects repeated --filter table=predicate values.
type filterFlag struct {
	filters map[string]string
}

var _ pflag.Value = (*filterFlag)(nil)

func (f *filterFlag) String() string {
	if f == nil || len(f.filters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f.filters))
	for _, table := range slices.Sorted(maps.Keys(f.filters)) {
		parts = append(parts, table+"="+f.filters[table])
	}
	return strings.Join(parts, ",")
}

func (f *filterFlag) Set(v string) error {
	table, predicate, ok := strings.Cut(v, "=")
	table = strings.TrimSpace(table)
	predicate = strings.TrimSpace(predicate)
	if !ok || table == "" || predicate == "" {
		return fmt.Errorf("expected table=predicate, got %q", v)
	}
	if f.filters == nil {
		f.filters = make(map[string]string)
	}
	if existing, dup := f.filters[table]; dup {
		predicate = "(" + existing + ") AND (" + predicate + ")"
	}
	f.filters[table] = predicate
	return nil
}

func (f *filterFlag) Type() string { return "table=predicate" }

// filterInput resolves row filters from --filter values or a filters file.
type filterInput struct {
	file      string
	principal string
	inline    filterFlag
}

func (in *filterInput) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&in.file, "filters", "", "Row filter YAML file (env: SEMSQL_FILTERS_FILE)")
	fs.StringVar(&in.principal, "principal", "", "Principal whose bound filters apply")
	fs.Var(&in.inline, "filter", "Row filter as table=predicate (repeatable)")
}

// resolve returns inline filters when any were given, otherwise the file's
// filters for the principal. No filters at all yields an empty map.
func (in *filterInput) resolve(opts *rootOptions) (map[string]string, error) {
	if len(in.inline.filters) > 0 {
		return in.inline.filters, nil
	}
	path := in.file
	if path == "" {
		path = opts.cfg.FiltersFile
	}
	if path == "" {
		return map[string]string{}, nil
	}
	set, err := declarative.LoadRowFilterFile(path, declarative.LoadOptions{AllowUnknownFields: opts.allowUnknownFields})
	if err != nil {
		return nil, err
	}
	return set.ForPrincipal(in.principal)
}

// loadLayer reads the configured semantic layer file.
func (o *rootOptions) loadLayer() (*domain.SemanticLayer, error) {
	if o.cfg.LayerFile == "" {
		return nil, domain.ErrValidation("no semantic layer: set --layer or SEMSQL_LAYER_FILE")
	}
	return declarative.LoadLayerFile(o.cfg.LayerFile, declarative.LoadOptions{AllowUnknownFields: o.allowUnknownFields})
}

// newEngine builds an engine over the configured layer. When verify is set a
// DuckDB verifier is attached; the returned close func releases it.
func (o *rootOptions) newEngine(ctx context.Context, verify bool) (*engine.Engine, func(), error) {
	layer, err := o.loadLayer()
	if err != nil {
		return nil, nil, err
	}

	engOpts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithMode(o.cfg.Mode),
		engine.WithBatchConcurrency(o.cfg.BatchConcurrency),
	}
	closeFn := func() {}
	if verify {
		v, err := engine.OpenDuckDBVerifier(ctx)
		if err != nil {
			return nil, nil, err
		}
		engOpts = append(engOpts, engine.WithVerifier(v))
		closeFn = func() { _ = v.Close() }
	}
	return engine.New(layer, engOpts...), closeFn, nil
}
