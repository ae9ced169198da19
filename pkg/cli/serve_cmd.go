package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"semsql/internal/api"
	"semsql/internal/declarative"
	"semsql/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listenAddr  string
		filtersFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("filters") {
				cfg.FiltersFile = filtersFile
			}
			for _, w := range cfg.Warnings {
				opts.logger.Warn("config warning", "warning", w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, closeFn, err := opts.newEngine(ctx, cfg.VerifySQL)
			if err != nil {
				return err
			}
			defer closeFn()

			var filters *declarative.RowFilterSet
			if cfg.FiltersFile != "" {
				filters, err = declarative.LoadRowFilterFile(cfg.FiltersFile, declarative.LoadOptions{AllowUnknownFields: opts.allowUnknownFields})
				if err != nil {
					return err
				}
			}

			handler := api.NewRouter(ctx, api.NewHandler(eng, filters, opts.logger), api.RouterConfig{
				Logger: opts.logger,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
				CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			})

			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
			}

			opts.logger.Info("semsql listening",
				"addr", ln.Addr().String(),
				"mode", eng.Mode(),
				"tables", len(eng.Layer().TableNames()),
				"row_filters", filters.Len(),
				"verify_sql", cfg.VerifySQL,
			)
			return serveHTTP(ctx, ln, handler, opts)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Listen address (env: LISTEN_ADDR)")
	cmd.Flags().StringVar(&filtersFile, "filters", "", "Row filter YAML file (env: SEMSQL_FILTERS_FILE)")
	return cmd
}

// serveHTTP serves until ctx is done, then shuts down gracefully. It returns
// only after in-flight requests have finished or the shutdown timeout expired.
func serveHTTP(ctx context.Context, ln net.Listener, handler http.Handler, opts *rootOptions) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	opts.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
