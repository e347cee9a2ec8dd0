package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/config"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/persistence"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom inspects and replays reactive session histories",
	Long:  `Loom records the state of a session graph as undoable history and stores it in memory, files or Redis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Store.Dir = dir
		}
		logger = cli.CreateLogger(cfg.LogLevel, debug)
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "loom.yaml", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("dir", "", "Session directory of the file store (overrides config)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log history events at debug level")
}

// openSessions opens the configured store. The returned func closes it.
func openSessions() (*persistence.Manager, func(), error) {
	sessions, closer, err := cli.OpenSessions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return sessions, func() {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}, nil
}

func newWorkspace() *loom.Workspace {
	return cli.NewWorkspace(cfg, logger, cli.DebugHooks(logger))
}

func newWorkspaceWith(hooks domain.LogHooks) func() *loom.Workspace {
	return func() *loom.Workspace {
		return cli.NewWorkspace(cfg, logger, cli.DebugHooks(logger).Merge(hooks))
	}
}
