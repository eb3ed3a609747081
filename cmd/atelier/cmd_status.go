package main

import (
	"fmt"

	"atelier/pkg/config"
	"atelier/pkg/outbox"
	"atelier/pkg/protocol"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "atelier status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show coordinator state",
		Long:  "Displays the configured backend, the default scope,\npending request count, and cached agents.",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "backend:  %s\n", cfg.BackendURL)
			if cfg.ChannelURL != "" {
				fmt.Fprintf(w, "channel:  %s\n", cfg.ChannelURL)
			} else {
				fmt.Fprintf(w, "channel:  (polling fallback, every %s)\n", cfg.PollInterval())
			}
			fmt.Fprintf(w, "scope:    %s\n", cfg.Scope().Key())

			n, err := outbox.New(db).Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "pending:  %d\n", n)

			rows, err := db.QueryContext(ctx,
				`SELECT scope_key, agent_id, updated_at FROM agent_cache ORDER BY scope_key`)
			if err != nil {
				return fmt.Errorf("query agent cache: %w", err)
			}
			defer rows.Close()
			fmt.Fprintln(w, "agents:")
			any := false
			for rows.Next() {
				var row protocol.AgentCacheRow
				if err := rows.Scan(&row.ScopeKey, &row.AgentID, &row.UpdatedAt); err != nil {
					return fmt.Errorf("scan agent cache: %w", err)
				}
				fmt.Fprintf(w, "  %-30s %s\n", row.ScopeKey, row.AgentID)
				any = true
			}
			if err := rows.Err(); err != nil {
				return err
			}
			if !any {
				fmt.Fprintln(w, "  (none)")
			}
			return nil
		},
	}
}
