package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// newChatCmd creates the "atelier chat" subcommand.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Launch the interactive chat client",
		Long:  "Opens the atelier chat TUI: submit prompts, watch results arrive\nand revert to earlier points in the conversation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			chat := exec.CommandContext(cmd.Context(), "atelier-chat")
			chat.Stdin = os.Stdin
			chat.Stdout = os.Stdout
			chat.Stderr = os.Stderr

			if err := chat.Run(); err != nil {
				return fmt.Errorf("run atelier-chat: %w", err)
			}

			return nil
		},
	}
}
