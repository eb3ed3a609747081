// Package main implements the atelier-chat interactive client: a terminal
// chat session against the studio assistant, with durable pending requests
// and checkpoint-based revert.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "atelier-chat requires an interactive terminal; use `atelier` for scripting")
		os.Exit(1)
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "atelier-chat: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	p := tea.NewProgram(newModel(app), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "atelier-chat: %v\n", err)
		os.Exit(1)
	}
}
