package main

import (
	"fmt"
	"time"

	"atelier/pkg/outbox"

	"github.com/spf13/cobra"
)

// newPendingCmd creates the "atelier pending" subcommand.
// Retrying happens inside a chat session, where the result can be
// reconciled; the CLI only lists and discards.
func newPendingCmd() *cobra.Command {
	var discard string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List or discard unacknowledged requests",
		Long:  "Shows the durable outbox of requests that never received\na terminal result. Use --discard to drop an entry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			db, err := openStateDB(paths.StateDBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			store := outbox.New(db)
			w := cmd.OutOrStdout()

			if discard != "" {
				if _, err := store.Get(ctx, discard); err != nil {
					return err
				}
				if err := store.Delete(ctx, discard); err != nil {
					return err
				}
				fmt.Fprintf(w, "discarded %s\n", discard)
				return nil
			}

			entries, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "no pending requests")
				return nil
			}
			for _, p := range entries {
				age := time.Since(p.SubmittedAt).Round(time.Second)
				fmt.Fprintf(w, "%s  %-20s  %s (%s ago)\n", p.ID, p.Scope().Key(), p.Text, age)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&discard, "discard", "", "pending message id to drop")

	return cmd
}
