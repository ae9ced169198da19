package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"semsql/internal/sqlrewrite"
)

func newRLSCmd(opts *rootOptions) *cobra.Command {
	var (
		in      sqlInput
		filters filterInput
	)

	cmd := &cobra.Command{
		Use:   "rls",
		Short: "Inject row-level security filters as CTEs",
		Long: "Rewrites every reference to a filtered table to read from a filtered_<name> " +
			"CTE. Does not need a semantic layer.",
		Example: `  semsql rls --filter "orders=orders.amount > 100" --sql "SELECT id FROM orders"
  semsql rls --filters filters.yaml --principal analyst -f query.sql`,
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

			out, err := sqlrewrite.ApplyRowLevelFilters(text, rowFilters)
			if err != nil {
				return err
			}

			if opts.output == outputJSON {
				refs, err := sqlrewrite.ExtractTableRefs(text)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"sql":    out,
					"tables": refs,
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	in.addFlags(cmd.Flags())
	filters.addFlags(cmd.Flags())
	return cmd
}
