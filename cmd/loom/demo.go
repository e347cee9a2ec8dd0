package main

import (
	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo [session-id]",
	Short: "Record a sample session",
	Long:  `Builds a small document over a few frames, undoes the last edit and stores the history. A random session ID is used when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := uuid.NewString()
		if len(args) == 1 {
			sessionID = args[0]
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		ws := newWorkspace()
		defer ws.Dispose()

		if !quiet {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		if err := cli.RunDemo(cmd.Context(), sessions, sessionID, ws); err != nil {
			return err
		}
		logger.Info("demo session stored", "session_id", sessionID)

		if !quiet {
			tui.NewTreePrinter(cmd.OutOrStdout(), ws.Manager()).Print(ws.Tree())
		}
		cli.PrintSystemMessage(cmd.OutOrStdout(), "Session '%s' saved.", sessionID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().BoolP("quiet", "q", false, "Only print the session ID")
}
