package main

import (
	"encoding/json"
	"fmt"

	"atelier/pkg/backend"
	"atelier/pkg/config"
	"atelier/pkg/protocol"
	"atelier/pkg/revert"

	"github.com/spf13/cobra"
)

// newCheckpointsCmd creates the "atelier checkpoints" subcommand group.
func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List document checkpoints and preview restores",
	}
	cmd.AddCommand(
		newCheckpointsListCmd(),
		newCheckpointsDiffCmd(),
	)
	return cmd
}

func newCheckpointsListCmd() *cobra.Command {
	var site, contextTag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints for a scope, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, api, err := newBackendEnv()
			if err != nil {
				return err
			}
			scope := scopeFromFlags(cfg, site, contextTag)
			if !protocol.ContextFor(scope.Context).Checkpoints {
				return fmt.Errorf("context %q has no checkpointed document", scope.Context)
			}

			cps, err := api.ListCheckpoints(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if len(cps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
				return nil
			}
			for i, cp := range cps {
				label := cp.Label
				if label == "" {
					label = "(no label)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s  %s  %s\n",
					i, cp.ID, cp.CreatedAt.Format("2006-01-02 15:04:05"), label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site id (default from config)")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (default from config)")

	return cmd
}

func newCheckpointsDiffCmd() *cobra.Command {
	var site, contextTag string

	cmd := &cobra.Command{
		Use:   "diff <checkpoint-id>",
		Short: "Show what restoring a checkpoint would change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, api, err := newBackendEnv()
			if err != nil {
				return err
			}
			scope := scopeFromFlags(cfg, site, contextTag)

			current, err := api.GetDocument(cmd.Context(), scope)
			if err != nil {
				return fmt.Errorf("load current document: %w", err)
			}
			snapshot, err := api.GetCheckpointDocument(cmd.Context(), scope, args[0])
			if err != nil {
				return fmt.Errorf("load checkpoint document: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), revert.DiffPreview(prettyJSON(current), prettyJSON(snapshot)))
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site id (default from config)")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (default from config)")

	return cmd
}

// newBackendEnv loads config and builds an API client, for commands that do
// not touch local state.
func newBackendEnv() (config.Config, *backend.Client, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.LoadDir(paths.Home)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, backend.New(cfg.BackendURL, cfg.ClientKey), nil
}

// prettyJSON re-indents a raw document so the line diff works on one field
// per line instead of one opaque blob.
func prettyJSON(raw json.RawMessage) string {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	buf, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(buf) + "\n"
}
