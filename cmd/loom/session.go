package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/presentation/graph"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long:  `List, inspect, replay and remove sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		ids, err := sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		snap, err := sessions.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}

		if asJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		render, err := tui.NewRenderer(0)
		if err != nil {
			return err
		}
		out, err := render(tui.InspectMarkdown(sessionID, snap))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var sessionTreeCmd = &cobra.Command{
	Use:   "tree <session-id>",
	Short: "Print the object tree of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		ws, err := cli.Restore(cmd.Context(), sessions, args[0], newWorkspace)
		if err != nil {
			return err
		}
		defer ws.Dispose()

		if mermaid {
			var overlay *graph.GraphOverlay
			if undo := ws.Log().UndoHistory(); len(undo) > 0 {
				overlay = graph.OverlayFromDiff(undo[len(undo)-1].Forward)
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(ws.Tree(), overlay))
			return nil
		}
		tui.NewTreePrinter(cmd.OutOrStdout(), ws.Manager()).Print(ws.Tree())
		return nil
	},
}

func replayCmd(use, short string, sign int) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session-id> [steps]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[1])
				}
				steps = n
			}

			sessions, closeStore, err := openSessions()
			if err != nil {
				return err
			}
			defer closeStore()

			applied, err := cli.Replay(cmd.Context(), sessions, args[0], sign*steps, newWorkspace)
			if err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "%s: %d step(s) applied to '%s'.", use, applied, args[0])
			return nil
		},
	}
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, closeStore, err := openSessions()
		if err != nil {
			return err
		}
		defer closeStore()

		failed := 0
		for _, sessionID := range args {
			if err := sessions.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", sessionID, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionTreeCmd)
	sessionCmd.AddCommand(replayCmd("undo", "Undo steps of a stored session", -1))
	sessionCmd.AddCommand(replayCmd("redo", "Redo steps of a stored session", 1))
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("json", false, "Print the raw snapshot as JSON")
	sessionTreeCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart instead of a text tree")
}
