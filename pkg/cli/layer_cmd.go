package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"semsql/internal/declarative"
	"semsql/internal/domain"
)

func newLayerCmd(opts *rootOptions) *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "layer",
		Short: "List the tables, metrics and filters of the semantic layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layer, err := opts.loadLayer()
			if err != nil {
				return err
			}

			if export {
				out, err := declarative.MarshalLayer(layer)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if opts.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), declarative.ExportLayer(layer))
			}

			var rows [][]string
			for _, name := range layer.TableNames() {
				rows = append(rows, []string{"table", name, "", strings.Join(layer.Columns(name), ", ")})
			}
			for _, d := range append(layer.Metrics(), layer.Filters()...) {
				rows = append(rows, []string{string(d.Kind), d.Name, d.Table, describeDefinition(d)})
			}
			printTable(cmd.OutOrStdout(), []string{"kind", "name", "table", "details"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Print the layer as a YAML document")
	return cmd
}

// describeDefinition renders a definition's signature, e.g. "(n number = 30)".
func describeDefinition(d *domain.Definition) string {
	if len(d.Parameters) == 0 {
		return d.Description
	}
	params := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		params[i] = p.Name + " " + string(p.Type)
		if p.Default != nil {
			params[i] += " = " + *p.Default
		}
	}
	sig := "(" + strings.Join(params, ", ") + ")"
	if d.Description != "" {
		sig += " " + d.Description
	}
	return sig
}
