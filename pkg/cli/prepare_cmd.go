package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"semsql/internal/engine"
)

func newPrepareCmd(opts *rootOptions) *cobra.Command {
	var (
		in      sqlInput
		filters filterInput
		verify  bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Validate, substitute and row-filter a query in one step",
		Long: "Runs the full pipeline used before execution. With --verify the result is " +
			"parse-checked by an in-memory DuckDB.",
		Example: `  semsql prepare --layer layer.yaml --filters filters.yaml --principal analyst \
    --sql "SELECT metric_Total FROM orders"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			rowFilters, err := filters.resolve(opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("verify") {
				verify = opts.cfg.VerifySQL
			}

			eng, closeFn, err := opts.newEngine(cmd.Context(), verify)
			if err != nil {
				return err
			}
			defer closeFn()

			prepared, err := eng.Prepare(cmd.Context(), engine.PrepareRequest{SQL: text, RowFilters: rowFilters})
			if err != nil {
				return err
			}

			if opts.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), prepared)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), prepared.SQL)
			return nil
		},
	}

	in.addFlags(cmd.Flags())
	filters.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&verify, "verify", false, "Parse-check the result with DuckDB (env: SEMSQL_VERIFY_SQL)")
	return cmd
}
