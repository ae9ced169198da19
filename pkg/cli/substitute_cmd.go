package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubstituteCmd(opts *rootOptions) *cobra.Command {
	var (
		in       sqlInput
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "substitute",
		Short: "Expand metric_ and filter_ references into SQL",
		Example: `  semsql substitute --layer layer.yaml --sql "SELECT metric_OrdersLastNDays(90) FROM orders"
  echo "SELECT metric_Total FROM orders WHERE filter_Completed" | semsql substitute --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			eng, closeFn, err := opts.newEngine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			var out string
			if validate {
				out, err = eng.ValidateAndSubstitute(cmd.Context(), text)
			} else {
				out, err = eng.Substitute(cmd.Context(), text)
			}
			if err != nil {
				return err
			}

			if opts.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"sql": out})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	in.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate before substituting")
	return cmd
}
