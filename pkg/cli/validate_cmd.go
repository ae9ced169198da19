package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"semsql/internal/domain"
)

// errReported marks a failure whose details were already printed.
type errReported struct{ msg string }

func (e *errReported) Error() string { return e.msg }

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		in       sqlInput
		eachLine bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a query against the semantic layer",
		Long: "Reports unknown tables, columns, metrics and filters, joins between unrelated " +
			"tables, and (in strict mode) calculated expressions.",
		Example: `  semsql validate --layer layer.yaml --sql "SELECT metric_Total FROM orders"
  semsql validate --layer layer.yaml --each-line -f queries.sql`,
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

			if !eachLine {
				if err := eng.Validate(cmd.Context(), text); err != nil {
					return err
				}
				if opts.output == outputJSON {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"valid": true})
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Query is valid.")
				return nil
			}

			var queries []string
			for _, line := range strings.Split(text, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					queries = append(queries, line)
				}
			}
			results, err := eng.ValidateBatch(cmd.Context(), queries)
			if err != nil {
				return err
			}

			failed := 0
			items := make([]map[string]interface{}, len(results))
			rows := make([][]string, len(results))
			for i, r := range results {
				item := map[string]interface{}{"index": r.Index, "valid": r.Err == nil}
				errText := ""
				if r.Err != nil {
					failed++
					item["kind"] = domain.KindOf(r.Err)
					item["error"] = r.Err.Error()
					errText = strings.ReplaceAll(r.Err.Error(), "\n", "; ")
				}
				items[i] = item
				rows[i] = []string{strconv.Itoa(r.Index + 1), strconv.FormatBool(r.Err == nil), errText}
			}

			if opts.output == outputJSON {
				if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{"results": items}); err != nil {
					return err
				}
			} else {
				printTable(cmd.OutOrStdout(), []string{"line", "valid", "error"}, rows)
			}
			if failed > 0 {
				return &errReported{msg: fmt.Sprintf("%d of %d queries failed validation", failed, len(results))}
			}
			return nil
		},
	}

	in.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&eachLine, "each-line", false, "Treat each non-empty input line as a separate query")
	return cmd
}
