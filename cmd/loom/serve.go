package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/loom/internal/adapters/http"
	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/internal/metrics"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only inspection server",
	Long:  `Serves stored sessions, their object trees and Mermaid graphs as JSON over HTTP, plus Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Address = addr
		}

		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		jsonLogger := logging.NewJSON(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))
		m := metrics.New()
		server := &httpAdapter.Server{
			Sessions:     sessions,
			Metrics:      m.Handler(),
			Logger:       jsonLogger,
			NewWorkspace: newWorkspaceWith(m.Hooks()),
		}
		srv := &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			jsonLogger.Info("starting loom server", "addr", srv.Addr, "backend", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			jsonLogger.Info("shutting down", "signal", fmt.Sprint(ctx.Signal()))

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				jsonLogger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			jsonLogger.Info("loom server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
}
