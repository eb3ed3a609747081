package main

import (
	"fmt"
	"io"
	"strconv"

	"atelier/pkg/backend"
	"atelier/pkg/config"
	"atelier/pkg/protocol"
	"atelier/pkg/revert"
	"atelier/pkg/session"

	"github.com/spf13/cobra"
)

// newRevertCmd creates the "atelier revert" subcommand.
func newRevertCmd() *cobra.Command {
	var site, contextTag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "revert <message-index>",
		Short: "Revert conversation and document to before a message",
		Long: "Loads the persisted history for the scope, then reverts to the\n" +
			"state before the message at the given zero-based index. For\n" +
			"checkpointed contexts this restores the matching document\n" +
			"checkpoint; a position with no matching checkpoint aborts with\n" +
			"no change.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("message index must be an integer: %w", err)
			}

			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			cfg, err := config.LoadDir(paths.Home)
			if err != nil {
				return err
			}
			db, err := openStateDB(paths.StateDBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			api := backend.New(cfg.BackendURL, cfg.ClientKey)
			manager := session.NewManager(session.NewSQLiteKV(db), api, nil)
			scope := scopeFromFlags(cfg, site, contextTag)

			agentID, err := manager.ResolveAgent(cmd.Context(), scope)
			if err != nil {
				return err
			}
			agentID, messages, err := manager.LoadHistory(cmd.Context(), scope, agentID, cfg.HistoryLimit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if index < 0 || index >= len(messages) {
				return fmt.Errorf("index %d out of range (history has %d messages)", index, len(messages))
			}

			out := cmd.OutOrStdout()
			if dryRun {
				printRevertPlan(out, scope, messages, index)
				return nil
			}

			outcome, err := revert.NewCoordinator(api, nil).RevertTo(cmd.Context(), scope, agentID, messages, index)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "reverted: %d message(s) remain\n", len(outcome.Messages))
			if outcome.LocalOnly {
				fmt.Fprintln(out, "turn was never committed; no server state touched")
			}
			if outcome.Restored != nil {
				fmt.Fprintf(out, "restored checkpoint %s (%s)\n",
					outcome.Restored.ID, outcome.Restored.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			if outcome.RecallText != "" {
				fmt.Fprintf(out, "recalled prompt: %s\n", outcome.RecallText)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site id (default from config)")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be undone without touching anything")

	return cmd
}

// printRevertPlan lists the tail that a revert at index would remove.
func printRevertPlan(out io.Writer, scope protocol.Scope, messages []protocol.Message, index int) {
	tail := messages[index:]
	fmt.Fprintf(out, "would remove %d message(s):\n", len(tail))
	for i, m := range tail {
		fmt.Fprintf(out, "  [%d] %s: %s\n", index+i, m.Sender, firstLine(m.Text))
	}
	if protocol.ContextFor(scope.Context).Checkpoints {
		n := revert.CommittedUserTurns(tail)
		fmt.Fprintf(out, "would restore checkpoint at position %d (%d committed user turn(s) undone)\n", n-1, n)
	}
}

// firstLine truncates a message body to a single display line.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
		if i > 72 {
			return s[:i] + "..."
		}
	}
	return s
}
