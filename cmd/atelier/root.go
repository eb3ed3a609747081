package main

import (
	"fmt"

	"atelier/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root atelier command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "atelier",
		Short:         "Atelier studio assistant coordinator",
		Long:          "atelier manages the studio assistant's task pipeline:\npending requests, agents, checkpoints, and conversation reverts.",
		Version:       fmt.Sprintf("atelier %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newStatusCmd(),
		newPendingCmd(),
		newAgentsCmd(),
		newCheckpointsCmd(),
		newRevertCmd(),
		newLogsCmd(),
		newChatCmd(),
	)

	return cmd
}
