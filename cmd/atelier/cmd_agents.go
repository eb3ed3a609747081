package main

import (
	"fmt"

	"atelier/pkg/backend"
	"atelier/pkg/config"
	"atelier/pkg/protocol"
	"atelier/pkg/session"

	"github.com/spf13/cobra"
)

// newAgentsCmd creates the "atelier agents" subcommand group.
func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and manage conversation agents",
	}
	cmd.AddCommand(
		newAgentsResolveCmd(),
		newAgentsSwitchCmd(),
		newAgentsResetCmd(),
	)
	return cmd
}

// agentEnv bundles the pieces every agents subcommand needs.
type agentEnv struct {
	cfg     config.Config
	manager *session.Manager
	close   func()
}

func newAgentEnv() (*agentEnv, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.LoadDir(paths.Home)
	if err != nil {
		return nil, err
	}
	db, err := openStateDB(paths.StateDBPath)
	if err != nil {
		return nil, err
	}
	api := backend.New(cfg.BackendURL, cfg.ClientKey)
	manager := session.NewManager(session.NewSQLiteKV(db), api, nil)
	return &agentEnv{cfg: cfg, manager: manager, close: func() { _ = db.Close() }}, nil
}

// scopeFromFlags builds a scope from --site/--context flags, falling back to
// the configured defaults.
func scopeFromFlags(cfg config.Config, site, contextTag string) protocol.Scope {
	scope := cfg.Scope()
	if site != "" {
		scope.SiteID = site
	}
	if contextTag != "" {
		scope.Context = contextTag
	}
	return scope
}

// newAgentsResolveCmd creates "atelier agents resolve".
func newAgentsResolveCmd() *cobra.Command {
	var site, contextTag string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve (or create) the agent for a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAgentEnv()
			if err != nil {
				return err
			}
			defer env.close()

			scope := scopeFromFlags(env.cfg, site, contextTag)
			agentID, err := env.manager.ResolveAgent(cmd.Context(), scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", scope.Key(), agentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site id (default from config)")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (default from config)")

	return cmd
}

// newAgentsSwitchCmd creates "atelier agents switch".
func newAgentsSwitchCmd() *cobra.Command {
	var site, contextTag string

	cmd := &cobra.Command{
		Use:   "switch <agent-id>",
		Short: "Point a scope at a different agent",
		Long:  "Overwrites the cached agent for the scope. The target is not\nvalidated here; the next history load falls back if it is gone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAgentEnv()
			if err != nil {
				return err
			}
			defer env.close()

			scope := scopeFromFlags(env.cfg, site, contextTag)
			if err := env.manager.SwitchAgent(cmd.Context(), scope, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", scope.Key(), args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site id (default from config)")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (default from config)")

	return cmd
}

// newAgentsResetCmd creates "atelier agents reset".
func newAgentsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <agent-id>",
		Short: "Clear an agent's history (the agent identity survives)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAgentEnv()
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.manager.ResetHistory(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "history cleared for %s\n", args[0])
			return nil
		},
	}
}
