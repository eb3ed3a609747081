package main

import (
	"fmt"
	"os"
	"path/filepath"

	"atelier/pkg/config"
	"atelier/pkg/protocol"

	"github.com/spf13/cobra"
)

// exampleConfig is written on first init so users have something to edit.
const exampleConfig = `# Atelier coordinator configuration.
backend_url: https://api.atelier.build
# channel_url: wss://api.atelier.build/assistant/channel
# client_key: set-me
# site_id: your-site-id
context: studio
history_limit: 50
reconnect_delay_seconds: 2
poll_interval_seconds: 5
`

// newInitCmd creates the "atelier init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the state directory, database, and config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			if err := os.MkdirAll(paths.Home, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", paths.Home, err)
			}

			db, err := openStateDB(paths.StateDBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "state database: %s\n", paths.StateDBPath)

			if _, ok := config.Locate(paths.Home); !ok {
				cfgPath := filepath.Join(paths.Home, protocol.ConfigYAMLName)
				if err := os.WriteFile(cfgPath, []byte(exampleConfig), 0o600); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(w, "wrote example config: %s\n", cfgPath)
			} else {
				fmt.Fprintln(w, "config already present, left untouched")
			}
			return nil
		},
	}
}
