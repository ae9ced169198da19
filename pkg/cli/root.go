// Package cli implements the semsql command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"semsql/internal/config"
	"semsql/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions holds values resolved from persistent flags and the environment.
type rootOptions struct {
	layerFile          string
	mode               string
	output             string
	logLevel           string
	envFile            string
	allowUnknownFields bool

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI.
func Execute() int {
	opts := &rootOptions{}
	rootCmd := newRootCmd(opts)
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stdout, os.Stderr, opts.output, err)
		return 1
	}
	return 0
}

// printError reports err as a JSON object on stdout in json mode, or as a
// plain line on stderr otherwise. JSON output is skipped for failures whose
// details were already printed.
func printError(stdout, stderr io.Writer, output string, err error) {
	var reported *errReported
	if output == outputJSON && errors.As(err, &reported) {
		return
	}
	if output == outputJSON {
		errObj := map[string]interface{}{
			"error": err.Error(),
			"kind":  domain.KindOf(err),
		}
		var semErr *domain.SemanticValidationError
		if errors.As(err, &semErr) {
			errObj["messages"] = semErr.Messages
		}
		_ = printJSON(stdout, errObj)
		return
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "semsql",
		Short: "Semantic-layer SQL validator and rewriter",
		Long: "Validates SQL against a semantic layer, expands metric_ and filter_ " +
			"references, and injects row-level security filters.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.layerFile, "layer", "l", "", "Semantic layer YAML file (env: SEMSQL_LAYER_FILE)")
	pf.StringVar(&opts.mode, "mode", "", "Validation mode: strict or flexible (env: SEMSQL_MODE)")
	pf.StringVarP(&opts.output, "output", "o", "", "Output format: text or json (default: text on a terminal, json otherwise)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.BoolVar(&opts.allowUnknownFields, "allow-unknown-fields", false, "Allow unknown fields in YAML documents")

	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newSubstituteCmd(opts))
	rootCmd.AddCommand(newPrepareCmd(opts))
	rootCmd.AddCommand(newRLSCmd(opts))
	rootCmd.AddCommand(newLayerCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}

// resolve applies precedence flag > env > default and builds the logger.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if err := validateOutputFormat(o.output); err != nil {
		return err
	}
	if !cmd.Flags().Changed("output") {
		if v := os.Getenv("SEMSQL_OUTPUT"); v != "" {
			o.output = v
		} else {
			o.output = defaultOutputFormat(cmd.OutOrStdout())
		}
		if err := validateOutputFormat(o.output); err != nil {
			return fmt.Errorf("SEMSQL_OUTPUT: %w", err)
		}
	}

	if err := config.LoadDotEnv(o.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("layer") {
		cfg.LayerFile = o.layerFile
	}
	if cmd.Flags().Changed("mode") {
		mode, err := domain.ParseValidationMode(o.mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	o.cfg = cfg
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		o.logger.Debug("config warning", "warning", w)
	}
	return nil
}
